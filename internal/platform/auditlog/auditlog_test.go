package auditlog

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/staffline-labs/staffline-go/internal/domain"
	"github.com/staffline-labs/staffline-go/internal/platform/auth"
)

func sampleEvent() domain.AuditEvent {
	return domain.AuditEvent{
		OccurredAt:   time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC),
		Actor:        "u2",
		Action:       "project.approved",
		ResourceType: "project",
		ResourceID:   "p-1",
		RequestID:    "rid-1",
		IP:           net.ParseIP("10.0.0.1"),
		Payload:      domain.Metadata{"from": "pending_approval", "to": "recruiting"},
	}
}

func TestSealIsDeterministic(t *testing.T) {
	_, a, err := Seal(sampleEvent())
	if err != nil {
		t.Fatalf("Seal() err=%v", err)
	}
	_, b, err := Seal(sampleEvent())
	if err != nil {
		t.Fatalf("Seal() err=%v", err)
	}
	if a != b || len(a) != 64 {
		t.Fatalf("hashes %q %q", a, b)
	}

	changed := sampleEvent()
	changed.Actor = "u1"
	_, c, _ := Seal(changed)
	if c == a {
		t.Fatalf("hash should change with actor")
	}
}

func TestVerify(t *testing.T) {
	event := sampleEvent()
	_, event.IntegritySHA256, _ = Seal(event)
	if err := Verify(event); err != nil {
		t.Fatalf("Verify() err=%v", err)
	}
	event.Payload["to"] = "rejected"
	if err := Verify(event); err == nil {
		t.Fatalf("expected integrity mismatch")
	}
}

func TestInsertValidates(t *testing.T) {
	if _, _, err := Insert(context.Background(), nil, sampleEvent()); err == nil {
		t.Fatalf("expected error for nil queryer")
	}
}

func TestFromDeny(t *testing.T) {
	event := FromDeny("staffline", auth.DenyEvent{
		Time:       time.Now(),
		Status:     403,
		Reason:     "forbidden",
		Error:      "forbidden",
		Method:     "POST",
		Path:       "/projects/p-1/approve",
		RemoteAddr: "192.0.2.4:5555",
	})
	if event.Actor != "anonymous" || event.Action != "auth.forbidden" {
		t.Fatalf("event=%+v", event)
	}
	if event.IP.String() != "192.0.2.4" {
		t.Fatalf("IP=%v", event.IP)
	}
	if err := event.Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}
}
