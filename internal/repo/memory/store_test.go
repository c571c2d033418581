package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/staffline-labs/staffline-go/internal/domain"
	"github.com/staffline-labs/staffline-go/internal/repo"
)

func testProject(id string) domain.Project {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return domain.Project{
		ID:                id,
		Name:              "ERP migration",
		Period:            domain.NewDateRange(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)),
		Budget:            1000,
		RequiredHeadcount: 1,
		Status:            domain.ProjectStatusDraft,
		RequesterID:       "u1",
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func TestStore_FailedUnitLeavesNoTrace(t *testing.T) {
	s := NewStore()
	boom := errors.New("boom")
	err := s.Do(context.Background(), func(ctx context.Context, r repo.Repositories) error {
		if err := r.Projects.CreateProject(ctx, testProject("p-1")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Do() err=%v", err)
	}
	if _, ok := s.Project("p-1"); ok {
		t.Fatalf("project visible after failed unit")
	}
}

func TestStore_SaveChecksVersion(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	if err := s.Do(ctx, func(ctx context.Context, r repo.Repositories) error {
		return r.Projects.CreateProject(ctx, testProject("p-1"))
	}); err != nil {
		t.Fatalf("create err=%v", err)
	}

	err := s.Do(ctx, func(ctx context.Context, r repo.Repositories) error {
		p, err := r.Projects.GetProject(ctx, "p-1")
		if err != nil {
			return err
		}
		p.Name = "renamed"
		if err := r.Projects.SaveProject(ctx, p, p.Version); err != nil {
			return err
		}
		return r.Projects.SaveProject(ctx, p, p.Version)
	})
	if !errors.Is(err, repo.ErrVersionConflict) {
		t.Fatalf("stale save err=%v", err)
	}
	p, _ := s.Project("p-1")
	if p.Name != "ERP migration" || p.Version != 1 {
		t.Fatalf("project=%+v", p)
	}
}

func TestStore_SingleOpenApprovalRequest(t *testing.T) {
	s := NewStore()
	at := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)
	err := s.Do(context.Background(), func(ctx context.Context, r repo.Repositories) error {
		if err := r.Approvals.CreateApprovalRequest(ctx, domain.ApprovalRequest{ID: "a-1", ProjectID: "p-1", RequesterID: "u1", RequestedAt: at}); err != nil {
			return err
		}
		return r.Approvals.CreateApprovalRequest(ctx, domain.ApprovalRequest{ID: "a-2", ProjectID: "p-1", RequesterID: "u1", RequestedAt: at})
	})
	if !errors.Is(err, repo.ErrDuplicate) {
		t.Fatalf("second open request err=%v", err)
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := NewStore()
	err := s.Do(context.Background(), func(ctx context.Context, r repo.Repositories) error {
		if _, err := r.Contracts.GetContract(ctx, "c-1"); !errors.Is(err, repo.ErrNotFound) {
			t.Fatalf("GetContract err=%v", err)
		}
		if _, err := r.Staff.GetStaff(ctx, "s-1"); !errors.Is(err, repo.ErrNotFound) {
			t.Fatalf("GetStaff err=%v", err)
		}
		if _, err := r.Approvals.GetOpenApprovalRequest(ctx, "p-1"); !errors.Is(err, repo.ErrNotFound) {
			t.Fatalf("GetOpenApprovalRequest err=%v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() err=%v", err)
	}
}

func TestStore_AuditAppendAssignsIDs(t *testing.T) {
	s := NewStore()
	at := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)
	err := s.Do(context.Background(), func(ctx context.Context, r repo.Repositories) error {
		for i := 0; i < 2; i++ {
			ev, err := r.Audit.Append(ctx, domain.AuditEvent{
				OccurredAt:   at,
				Actor:        "u1",
				Action:       "project.created",
				ResourceType: "project",
				ResourceID:   "p-1",
			})
			if err != nil {
				return err
			}
			if ev.EventID != int64(i+1) || ev.IntegritySHA256 == "" {
				t.Fatalf("event=%+v", ev)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() err=%v", err)
	}
	if got := len(s.Events()); got != 2 {
		t.Fatalf("events=%d", got)
	}
}
