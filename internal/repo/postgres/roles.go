package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/staffline-labs/staffline-go/internal/platform/auth"
	"github.com/staffline-labs/staffline-go/internal/repo"
)

// RoleStore resolves roles from the user_roles table.
type RoleStore struct {
	db DB
}

func NewRoleStore(db DB) *RoleStore {
	if db == nil {
		return nil
	}
	return &RoleStore{db: db}
}

func (s *RoleStore) RoleOf(ctx context.Context, userID string) (auth.Role, error) {
	if s == nil || s.db == nil {
		return "", fmt.Errorf("role store not initialized")
	}
	var raw string
	err := s.db.QueryRowContext(
		ctx,
		`SELECT role FROM user_roles WHERE user_id = $1`,
		strings.TrimSpace(userID),
	).Scan(&raw)
	if err != nil {
		if errors.Is(handleNotFound(err), repo.ErrNotFound) {
			return "", auth.ErrUnknownSubject
		}
		return "", fmt.Errorf("lookup role: %w", err)
	}
	role, err := auth.ParseRole(raw)
	if err != nil {
		return "", fmt.Errorf("user %s: %w", userID, err)
	}
	return role, nil
}

func (s *RoleStore) SetRole(ctx context.Context, userID string, role auth.Role) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("role store not initialized")
	}
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id is required")
	}
	if !role.Valid() {
		return fmt.Errorf("role %q is invalid", role)
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO user_roles (user_id, role) VALUES ($1,$2)
		 ON CONFLICT (user_id) DO UPDATE SET role = EXCLUDED.role`,
		strings.TrimSpace(userID),
		string(role),
	)
	return mapWriteError("upsert role", err)
}
