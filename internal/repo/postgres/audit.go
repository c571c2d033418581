package postgres

import (
	"context"
	"errors"

	"github.com/staffline-labs/staffline-go/internal/domain"
	"github.com/staffline-labs/staffline-go/internal/platform/auditlog"
)

type AuditAppender struct {
	db auditlog.QueryRower
}

func NewAuditAppender(db auditlog.QueryRower) *AuditAppender {
	if db == nil {
		return nil
	}
	return &AuditAppender{db: db}
}

func (a *AuditAppender) Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if a == nil || a.db == nil {
		return domain.AuditEvent{}, errors.New("audit appender not initialized")
	}
	id, integrity, err := auditlog.Insert(ctx, a.db, event)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	event.EventID = id
	event.IntegritySHA256 = integrity
	return event, nil
}
