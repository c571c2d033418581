// Package txn runs workflow operations inside a repository unit of work and
// ships the audit events they append once the unit has committed.
package txn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/staffline-labs/staffline-go/internal/auditexport"
	"github.com/staffline-labs/staffline-go/internal/domain"
	"github.com/staffline-labs/staffline-go/internal/repo"
)

// Tx is the view of one unit of work handed to an operation.
type Tx struct {
	repo.Repositories
	// Now is fixed for the whole unit so every timestamp written agrees.
	Now    time.Time
	meta   domain.RequestMeta
	events []domain.AuditEvent
}

// Record appends an audit event within the unit.
func (tx *Tx) Record(ctx context.Context, actor, action, resourceType, resourceID string, payload domain.Metadata) error {
	return tx.Append(ctx, domain.NewAuditEvent(tx.meta, tx.Now, actor, action, resourceType, resourceID, payload))
}

// Append stores a prepared event and queues it for export after commit.
func (tx *Tx) Append(ctx context.Context, event domain.AuditEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = tx.Now
	}
	stored, err := tx.Audit.Append(ctx, event)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	tx.events = append(tx.events, stored)
	return nil
}

type Runner struct {
	uow      repo.UnitOfWork
	exporter auditexport.Exporter
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Runner)

func WithExporter(exp auditexport.Exporter) Option {
	return func(r *Runner) {
		if exp != nil {
			r.exporter = exp
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRunner(uow repo.UnitOfWork, opts ...Option) *Runner {
	if uow == nil {
		return nil
	}
	r := &Runner{
		uow:      uow,
		exporter: auditexport.NoopExporter{},
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes fn atomically. Export failures after commit are logged and
// never undo the committed transition.
func (r *Runner) Run(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	var committed []domain.AuditEvent
	err := r.uow.Do(ctx, func(ctx context.Context, repos repo.Repositories) error {
		tx := &Tx{
			Repositories: repos,
			Now:          r.now().UTC(),
			meta:         domain.RequestMetaFromContext(ctx),
		}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		committed = tx.events
		return nil
	})
	if err != nil {
		return err
	}
	for _, event := range committed {
		if err := r.exporter.Export(ctx, event); err != nil {
			r.logger.Warn("audit export failed",
				"event_id", event.EventID,
				"action", event.Action,
				"resource_id", event.ResourceID,
				"error", err.Error(),
			)
		}
	}
	return nil
}

// Read runs fn in a unit of work without recording anything.
func (r *Runner) Read(ctx context.Context, fn func(ctx context.Context, repos repo.Repositories) error) error {
	return r.uow.Do(ctx, fn)
}

// MapError converts repository sentinels into workflow errors. Errors that
// are already *domain.Error pass through unchanged.
func MapError(op, entity, id string, err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return domain.NotFoundError(op, entity, id)
	case errors.Is(err, repo.ErrVersionConflict), errors.Is(err, repo.ErrDuplicate):
		return domain.ConcurrencyError(op, entity, id, err)
	default:
		return fmt.Errorf("%s %s %s: %w", op, entity, id, err)
	}
}
