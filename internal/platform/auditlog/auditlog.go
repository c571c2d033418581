// Package auditlog writes append-only audit rows. Each row carries a SHA-256
// over its canonical JSON so tampering with a stored event is detectable.
package auditlog

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/staffline-labs/staffline-go/internal/domain"
	"github.com/staffline-labs/staffline-go/internal/platform/auth"
)

type QueryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const insertEventSQL = `INSERT INTO audit_events (
	occurred_at,
	actor,
	action,
	resource_type,
	resource_id,
	request_id,
	ip,
	user_agent,
	payload,
	integrity_sha256
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING event_id`

// Insert stores the event and returns its id and integrity hash.
func Insert(ctx context.Context, q QueryRower, event domain.AuditEvent) (int64, string, error) {
	if q == nil {
		return 0, "", errors.New("queryer is required")
	}
	if err := event.Validate(); err != nil {
		return 0, "", err
	}
	payloadJSON, integrity, err := Seal(event)
	if err != nil {
		return 0, "", err
	}

	var id int64
	err = q.QueryRowContext(
		ctx,
		insertEventSQL,
		event.OccurredAt.UTC(),
		strings.TrimSpace(event.Actor),
		strings.TrimSpace(event.Action),
		strings.TrimSpace(event.ResourceType),
		strings.TrimSpace(event.ResourceID),
		nullString(event.RequestID),
		nullString(ipString(event.IP)),
		nullString(event.UserAgent),
		payloadJSON,
		integrity,
	).Scan(&id)
	if err != nil {
		return 0, "", fmt.Errorf("insert audit event: %w", err)
	}
	return id, integrity, nil
}

// Seal returns the payload JSON and integrity hash of an event.
func Seal(event domain.AuditEvent) ([]byte, string, error) {
	payload := event.Payload
	if payload == nil {
		payload = domain.Metadata{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("marshal payload: %w", err)
	}

	blob, err := json.Marshal(struct {
		OccurredAt   time.Time       `json:"occurred_at"`
		Actor        string          `json:"actor"`
		Action       string          `json:"action"`
		ResourceType string          `json:"resource_type"`
		ResourceID   string          `json:"resource_id"`
		RequestID    string          `json:"request_id,omitempty"`
		IP           string          `json:"ip,omitempty"`
		UserAgent    string          `json:"user_agent,omitempty"`
		Payload      json.RawMessage `json:"payload"`
	}{
		OccurredAt:   event.OccurredAt.UTC(),
		Actor:        strings.TrimSpace(event.Actor),
		Action:       strings.TrimSpace(event.Action),
		ResourceType: strings.TrimSpace(event.ResourceType),
		ResourceID:   strings.TrimSpace(event.ResourceID),
		RequestID:    strings.TrimSpace(event.RequestID),
		IP:           ipString(event.IP),
		UserAgent:    strings.TrimSpace(event.UserAgent),
		Payload:      payloadJSON,
	})
	if err != nil {
		return nil, "", fmt.Errorf("marshal integrity: %w", err)
	}
	sum := sha256.Sum256(blob)
	return payloadJSON, hex.EncodeToString(sum[:]), nil
}

// Verify recomputes the hash of a stored event.
func Verify(event domain.AuditEvent) error {
	_, integrity, err := Seal(event)
	if err != nil {
		return err
	}
	if integrity != event.IntegritySHA256 {
		return fmt.Errorf("audit event %d: integrity mismatch", event.EventID)
	}
	return nil
}

// FromDeny converts a refused request into an audit event.
func FromDeny(service string, event auth.DenyEvent) domain.AuditEvent {
	actor := "anonymous"
	if strings.TrimSpace(event.Subject) != "" {
		actor = strings.TrimSpace(event.Subject)
	}
	var ip net.IP
	if host, _, err := net.SplitHostPort(event.RemoteAddr); err == nil {
		ip = net.ParseIP(host)
	}
	return domain.AuditEvent{
		OccurredAt:   event.Time.UTC(),
		Actor:        actor,
		Action:       "auth." + strings.TrimSpace(event.Reason),
		ResourceType: "http",
		ResourceID:   event.Method + " " + event.Path,
		RequestID:    event.RequestID,
		IP:           ip,
		UserAgent:    event.UserAgent,
		Payload: domain.Metadata{
			"service": service,
			"status":  event.Status,
			"reason":  event.Reason,
			"error":   event.Error,
			"email":   event.Email,
		},
	}
}

func ipString(ip net.IP) string {
	if len(ip) == 0 {
		return ""
	}
	return ip.String()
}

func nullString(v string) sql.NullString {
	v = strings.TrimSpace(v)
	return sql.NullString{String: v, Valid: v != ""}
}
