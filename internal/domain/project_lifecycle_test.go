package domain

import (
	"errors"
	"testing"
	"time"
)

func TestProjectTransitionTableIsExhaustive(t *testing.T) {
	for _, status := range ProjectStatuses {
		if _, ok := projectTransitions[status]; !ok {
			t.Fatalf("status %q missing from transition table", status)
		}
	}
	if len(projectTransitions) != len(ProjectStatuses) {
		t.Fatalf("transition table has %d entries, want %d", len(projectTransitions), len(ProjectStatuses))
	}
	for from, targets := range projectTransitions {
		for _, to := range targets {
			if !to.Valid() {
				t.Fatalf("transition %s -> %s targets unknown status", from, to)
			}
		}
	}
}

func TestCanTransitionProject(t *testing.T) {
	cases := []struct {
		from ProjectStatus
		to   ProjectStatus
		want bool
	}{
		{ProjectStatusDraft, ProjectStatusPendingApproval, true},
		{ProjectStatusDraft, ProjectStatusRecruiting, false},
		{ProjectStatusPendingApproval, ProjectStatusRecruiting, true},
		{ProjectStatusPendingApproval, ProjectStatusRejected, true},
		{ProjectStatusPendingApproval, ProjectStatusPendingApproval, false},
		{ProjectStatusRejected, ProjectStatusPendingApproval, true},
		{ProjectStatusRecruiting, ProjectStatusInProgress, true},
		{ProjectStatusInProgress, ProjectStatusRecruiting, false},
		{ProjectStatusFulfilled, ProjectStatusCompleted, true},
		{ProjectStatusCompleted, ProjectStatusCancelled, false},
		{ProjectStatusCancelled, ProjectStatusDraft, false},
	}
	for _, tc := range cases {
		if got := CanTransitionProject(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransitionProject(%s, %s)=%v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestEveryNonTerminalStateCanBeCancelled(t *testing.T) {
	for _, status := range ProjectStatuses {
		got := CanTransitionProject(status, ProjectStatusCancelled)
		if status.Terminal() && got {
			t.Fatalf("terminal %s must not be cancellable", status)
		}
		if !status.Terminal() && !got {
			t.Fatalf("%s must be cancellable", status)
		}
	}
}

func TestProjectTransitionErrorNamesStates(t *testing.T) {
	err := ProjectTransitionError("approve", Project{ID: "p-1", Status: ProjectStatusDraft}, ProjectStatusRecruiting)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	var de *Error
	if !errors.As(err, &de) {
		t.Fatalf("expected *Error")
	}
	if de.From != "draft" || de.To != "recruiting" {
		t.Fatalf("from=%q to=%q", de.From, de.To)
	}
}

func TestDeriveProjectProgress(t *testing.T) {
	base := Project{RequiredHeadcount: 2}

	p := base
	p.Status = ProjectStatusRecruiting
	if got, hc := DeriveProjectProgress(p, ContractCounts{}); got != ProjectStatusRecruiting || hc != 0 {
		t.Fatalf("no contracts: got %s/%d", got, hc)
	}
	if got, _ := DeriveProjectProgress(p, ContractCounts{Active: 1}); got != ProjectStatusInProgress {
		t.Fatalf("one contract: got %s", got)
	}
	if got, hc := DeriveProjectProgress(p, ContractCounts{Active: 2}); got != ProjectStatusFulfilled || hc != 2 {
		t.Fatalf("full: got %s/%d", got, hc)
	}

	p.Status = ProjectStatusFulfilled
	if got, _ := DeriveProjectProgress(p, ContractCounts{Active: 1, Terminated: 1}); got != ProjectStatusFulfilled {
		t.Fatalf("fulfilled must not regress, got %s", got)
	}
	if got, _ := DeriveProjectProgress(p, ContractCounts{Renewed: 1, Terminated: 2}); got != ProjectStatusCompleted {
		t.Fatalf("all closed: got %s", got)
	}

	p.Status = ProjectStatusInProgress
	if got, hc := DeriveProjectProgress(p, ContractCounts{Terminated: 1}); got != ProjectStatusInProgress || hc != 0 {
		t.Fatalf("understaffed project whose contracts ended: got %s/%d", got, hc)
	}
	if !CanTransitionProject(ProjectStatusInProgress, ProjectStatusCancelled) {
		t.Fatalf("in_progress must be cancellable")
	}

	p.Status = ProjectStatusPendingApproval
	if got, _ := DeriveProjectProgress(p, ContractCounts{Active: 5}); got != ProjectStatusPendingApproval {
		t.Fatalf("pending project must not be derived, got %s", got)
	}
}

func TestProjectValidateRejectionReason(t *testing.T) {
	p := Project{
		ID:                "p-1",
		Name:              "ERP migration",
		RequesterID:       "u1",
		Status:            ProjectStatusRejected,
		Period:            NewDateRange(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)),
		RequiredHeadcount: 1,
	}
	if err := p.Validate(); err == nil {
		t.Fatalf("expected error for rejected without reason")
	}
	p.RejectionReason = "budget too low"
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}
	p.Status = ProjectStatusDraft
	if err := p.Validate(); err == nil {
		t.Fatalf("expected error for draft carrying a rejection reason")
	}
}
