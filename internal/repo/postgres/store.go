package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/staffline-labs/staffline-go/internal/repo"
)

// Store implements repo.UnitOfWork with one database transaction per unit.
type Store struct {
	db   *sql.DB
	opts *sql.TxOptions
}

func NewStore(db *sql.DB) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db, opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted}}
}

func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, r repo.Repositories) error) error {
	if s == nil || s.db == nil {
		return errors.New("postgres store not initialized")
	}
	tx, err := s.db.BeginTx(ctx, s.opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, Repositories(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapWriteError("commit", err)
	}
	return nil
}

// Repositories binds every store to db, which is usually a *sql.Tx.
func Repositories(db DB) repo.Repositories {
	return repo.Repositories{
		Projects:  NewProjectStore(db),
		Approvals: NewApprovalStore(db),
		Contracts: NewContractStore(db),
		Staff:     NewStaffStore(db),
		Audit:     NewAuditAppender(db),
	}
}

// Ping reports whether the database answers; used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("postgres store not initialized")
	}
	return s.db.PingContext(ctx)
}
