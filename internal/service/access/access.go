// Package access turns role lookups into workflow authorization errors.
package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/staffline-labs/staffline-go/internal/domain"
	"github.com/staffline-labs/staffline-go/internal/platform/auth"
)

type Guard struct {
	Roles auth.RoleResolver
}

// RoleOf resolves userID. Blank and unknown users are authorization failures;
// resolver outages are returned wrapped.
func (g Guard) RoleOf(ctx context.Context, op, userID string) (auth.Role, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", domain.AuthorizationError(op, userID, "caller is required")
	}
	if g.Roles == nil {
		return "", fmt.Errorf("%s: role resolver not configured", op)
	}
	role, err := g.Roles.RoleOf(ctx, userID)
	if err != nil {
		if errors.Is(err, auth.ErrUnknownSubject) {
			return "", domain.AuthorizationError(op, userID, "unknown user")
		}
		return "", fmt.Errorf("%s: resolve role: %w", op, err)
	}
	return role, nil
}

func (g Guard) Require(ctx context.Context, op, userID string, min auth.Role) error {
	role, err := g.RoleOf(ctx, op, userID)
	if err != nil {
		return err
	}
	if !role.AtLeast(min) {
		return domain.AuthorizationError(op, userID, fmt.Sprintf("requires %s role, has %s", min, role))
	}
	return nil
}
