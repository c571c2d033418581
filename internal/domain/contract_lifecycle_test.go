package domain

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestContractTransitions(t *testing.T) {
	for _, status := range ContractStatuses {
		if !status.Valid() {
			t.Fatalf("status %q missing from transition table", status)
		}
	}
	if !CanTransitionContract(ContractStatusActive, ContractStatusRenewed) {
		t.Fatalf("active -> renewed should be allowed")
	}
	if !CanTransitionContract(ContractStatusActive, ContractStatusTerminated) {
		t.Fatalf("active -> terminated should be allowed")
	}
	if CanTransitionContract(ContractStatusTerminated, ContractStatusActive) {
		t.Fatalf("terminated is final")
	}
	if CanTransitionContract(ContractStatusRenewed, ContractStatusTerminated) {
		t.Fatalf("renewed is read-only")
	}
}

func TestClassifyRenewal(t *testing.T) {
	prev := NewDateRange(day(2025, 4, 1), day(2025, 9, 30))

	got := ClassifyRenewal(prev, NewDateRange(day(2025, 10, 1), day(2026, 3, 31)))
	if got.Kind != ContinuityContiguous || got.Days != 0 {
		t.Fatalf("contiguous: got %+v", got)
	}
	got = ClassifyRenewal(prev, NewDateRange(day(2025, 10, 11), day(2026, 3, 31)))
	if got.Kind != ContinuityGap || got.Days != 10 {
		t.Fatalf("gap: got %+v", got)
	}
	got = ClassifyRenewal(prev, NewDateRange(day(2025, 9, 21), day(2026, 3, 31)))
	if got.Kind != ContinuityOverlap || got.Days != 10 {
		t.Fatalf("overlap: got %+v", got)
	}
}

func TestDateRange(t *testing.T) {
	if err := NewDateRange(day(2025, 1, 2), day(2025, 1, 2)).Validate(); err == nil {
		t.Fatalf("expected error for equal dates")
	}
	if err := NewDateRange(day(2025, 1, 3), day(2025, 1, 2)).Validate(); err == nil {
		t.Fatalf("expected error for inverted dates")
	}
	r, err := ParseDateRange("2025-10-01", "2026-03-31")
	if err != nil {
		t.Fatalf("ParseDateRange() err=%v", err)
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}
	if _, err := ParseDateRange("2025/10/01", "2026-03-31"); err == nil {
		t.Fatalf("expected parse error")
	}

	a := NewDateRange(day(2025, 1, 1), day(2025, 3, 31))
	if !a.Overlaps(NewDateRange(day(2025, 3, 31), day(2025, 6, 30))) {
		t.Fatalf("shared end day should overlap")
	}
	if a.Overlaps(NewDateRange(day(2025, 4, 1), day(2025, 6, 30))) {
		t.Fatalf("adjacent ranges should not overlap")
	}
}

func TestContractValidateTerminationFields(t *testing.T) {
	c := Contract{
		ID:           "c-1",
		ProjectID:    "p-1",
		StaffID:      "s-1",
		Period:       NewDateRange(day(2025, 4, 1), day(2025, 9, 30)),
		Rate:         800000,
		ContractType: ContractTypeTimeAndMaterials,
		Status:       ContractStatusActive,
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}
	c.Status = ContractStatusTerminated
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for terminated without fields")
	}
	at := day(2025, 9, 30)
	c.TerminationDate = &at
	c.TerminationReason = "early completion"
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}
}
