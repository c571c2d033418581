package auditexport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/staffline-labs/staffline-go/internal/domain"
)

// Exporter ships committed audit events to an external sink.
type Exporter interface {
	Export(ctx context.Context, event domain.AuditEvent) error
}

type NoopExporter struct{}

func (NoopExporter) Export(ctx context.Context, event domain.AuditEvent) error {
	return nil
}

// NDJSONExporter writes one JSON document per line.
type NDJSONExporter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewNDJSONExporter(w io.Writer) *NDJSONExporter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	return &NDJSONExporter{enc: enc}
}

func (e *NDJSONExporter) Export(ctx context.Context, event domain.AuditEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enc.Encode(newRecord(event))
}

// Multi fans an event out to every exporter and joins their errors.
type Multi []Exporter

func (m Multi) Export(ctx context.Context, event domain.AuditEvent) error {
	var errs []error
	for _, exp := range m {
		if err := exp.Export(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type record struct {
	EventID         int64           `json:"event_id"`
	OccurredAt      string          `json:"occurred_at"`
	Actor           string          `json:"actor"`
	Action          string          `json:"action"`
	ResourceType    string          `json:"resource_type"`
	ResourceID      string          `json:"resource_id"`
	RequestID       string          `json:"request_id,omitempty"`
	IP              string          `json:"ip,omitempty"`
	UserAgent       string          `json:"user_agent,omitempty"`
	Payload         json.RawMessage `json:"payload"`
	IntegritySHA256 string          `json:"integrity_sha256"`
}

func newRecord(event domain.AuditEvent) record {
	payload := event.Payload
	if payload == nil {
		payload = domain.Metadata{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte(`{}`)
	}
	return record{
		EventID:         event.EventID,
		OccurredAt:      event.OccurredAt.UTC().Format(time.RFC3339Nano),
		Actor:           event.Actor,
		Action:          event.Action,
		ResourceType:    event.ResourceType,
		ResourceID:      event.ResourceID,
		RequestID:       event.RequestID,
		IP:              ipString(event.IP),
		UserAgent:       event.UserAgent,
		Payload:         raw,
		IntegritySHA256: event.IntegritySHA256,
	}
}

func ipString(ip net.IP) string {
	if len(ip) == 0 {
		return ""
	}
	return ip.String()
}
