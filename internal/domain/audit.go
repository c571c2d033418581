package domain

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// AuditEvent is an immutable audit record of a successful transition.
type AuditEvent struct {
	EventID         int64
	OccurredAt      time.Time
	Actor           string
	Action          string
	ResourceType    string
	ResourceID      string
	RequestID       string
	IP              net.IP
	UserAgent       string
	Payload         Metadata
	IntegritySHA256 string
}

func (e AuditEvent) Validate() error {
	if e.OccurredAt.IsZero() {
		return errors.New("occurred_at is required")
	}
	if strings.TrimSpace(e.Actor) == "" {
		return errors.New("actor is required")
	}
	if strings.TrimSpace(e.Action) == "" {
		return errors.New("action is required")
	}
	if strings.TrimSpace(e.ResourceType) == "" {
		return errors.New("resource_type is required")
	}
	if strings.TrimSpace(e.ResourceID) == "" {
		return errors.New("resource_id is required")
	}
	return nil
}

// RequestMeta carries request provenance into audit events.
type RequestMeta struct {
	RequestID string
	IP        net.IP
	UserAgent string
	Service   string
}

// NewAuditEvent stamps request provenance onto a transition event.
func NewAuditEvent(meta RequestMeta, at time.Time, actor, action, resourceType, resourceID string, payload Metadata) AuditEvent {
	payload = payload.Clone()
	if meta.Service != "" {
		payload["service"] = meta.Service
	}
	return AuditEvent{
		OccurredAt:   at.UTC(),
		Actor:        strings.TrimSpace(actor),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		RequestID:    meta.RequestID,
		IP:           meta.IP,
		UserAgent:    meta.UserAgent,
		Payload:      payload,
	}
}

type ctxKeyRequestMeta struct{}

// ContextWithRequestMeta attaches request provenance for audit events.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, ctxKeyRequestMeta{}, meta)
}

func RequestMetaFromContext(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(ctxKeyRequestMeta{}).(RequestMeta)
	return meta
}
