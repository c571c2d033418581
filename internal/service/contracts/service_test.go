package contracts

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/staffline-labs/staffline-go/internal/domain"
	"github.com/staffline-labs/staffline-go/internal/platform/auth"
	"github.com/staffline-labs/staffline-go/internal/platform/policy"
	"github.com/staffline-labs/staffline-go/internal/repo"
	"github.com/staffline-labs/staffline-go/internal/repo/memory"
	"github.com/staffline-labs/staffline-go/internal/service/approvals"
	"github.com/staffline-labs/staffline-go/internal/service/txn"
)

var testRoles = auth.StaticRoles{
	"u1":    auth.RoleRequester,
	"mgr":   auth.RoleApprover,
	"admin": auth.RoleAdmin,
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	store     *memory.Store
	approvals *approvals.Service
	contracts *Service
	project   domain.Project
}

func newFixture(t *testing.T, pol policy.Policy, headcount int) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.PutStaff(domain.Staff{ID: "s-1", PartnerID: "partner-a", DisplayName: "Sato", Available: true})
	store.PutStaff(domain.Staff{ID: "s-2", PartnerID: "partner-a", DisplayName: "Suzuki", Available: true})
	store.PutStaff(domain.Staff{ID: "s-3", PartnerID: "partner-b", DisplayName: "Tanaka", Available: false})

	runner := txn.NewRunner(store)
	appr := approvals.New(runner, testRoles, pol)
	svc := New(runner, testRoles, pol, appr)
	ids := 0
	svc.newID = func() string {
		ids++
		return fmt.Sprintf("c-%d", ids)
	}

	ctx := context.Background()
	p, err := appr.CreateProject(ctx, "u1", domain.ProjectDraft{
		Name:              "ERP migration",
		Period:            domain.NewDateRange(day(2025, 4, 1), day(2026, 3, 31)),
		Budget:            20000000,
		RequiredHeadcount: headcount,
	})
	if err != nil {
		t.Fatalf("CreateProject() err=%v", err)
	}
	if _, err := appr.SubmitForApproval(ctx, p.ID, "u1", ""); err != nil {
		t.Fatalf("SubmitForApproval() err=%v", err)
	}
	p, err = appr.Approve(ctx, p.ID, "mgr", "")
	if err != nil {
		t.Fatalf("Approve() err=%v", err)
	}
	return &fixture{store: store, approvals: appr, contracts: svc, project: p}
}

func (f *fixture) create(t *testing.T, staffID string, start, end time.Time) domain.Contract {
	t.Helper()
	c, err := f.contracts.CreateContract(context.Background(), "mgr", domain.ContractDraft{
		ProjectID:    f.project.ID,
		StaffID:      staffID,
		Period:       domain.NewDateRange(start, end),
		Rate:         800000,
		ContractType: domain.ContractTypeTimeAndMaterials,
	})
	if err != nil {
		t.Fatalf("CreateContract(%s) err=%v", staffID, err)
	}
	return c
}

func mustKind(t *testing.T, err error, want domain.ErrorKind) {
	t.Helper()
	if got := domain.KindOf(err); got != want {
		t.Fatalf("kind=%q, want %q (err=%v)", got, want, err)
	}
}

func TestRenewContiguous(t *testing.T) {
	f := newFixture(t, policy.Default(), 2)
	ctx := context.Background()
	c1 := f.create(t, "s-1", day(2025, 4, 1), day(2025, 9, 30))

	res, err := f.contracts.RenewContract(ctx, c1.ID, "mgr", domain.NewDateRange(day(2025, 10, 1), day(2026, 3, 31)), 880000, "extended")
	if err != nil {
		t.Fatalf("RenewContract() err=%v", err)
	}
	if res.Continuity.Kind != domain.ContinuityContiguous || res.Continuity.Flagged {
		t.Fatalf("continuity=%+v", res.Continuity)
	}

	prev, _ := f.store.Contract(c1.ID)
	if prev.Status != domain.ContractStatusRenewed {
		t.Fatalf("predecessor status=%s", prev.Status)
	}
	if prev.Rate != 800000 || !prev.Period.End.Equal(day(2025, 9, 30)) || !prev.Period.Start.Equal(day(2025, 4, 1)) {
		t.Fatalf("predecessor terms changed: %+v", prev)
	}

	next, ok := f.store.Contract(res.Successor.ID)
	if !ok || next.Status != domain.ContractStatusActive || next.OriginalContractID != c1.ID || next.Rate != 880000 {
		t.Fatalf("successor=%+v", next)
	}

	_, err = f.contracts.UpdateContract(ctx, c1.ID, "mgr", domain.ContractChanges{Remarks: ptr("late edit")})
	mustKind(t, err, domain.KindInvalidState)
	_, err = f.contracts.RenewContract(ctx, c1.ID, "mgr", domain.NewDateRange(day(2025, 10, 1), day(2026, 3, 31)), 880000, "")
	mustKind(t, err, domain.KindInvalidState)

	chain, err := f.contracts.RenewalChain(ctx, res.Successor.ID)
	if err != nil {
		t.Fatalf("RenewalChain() err=%v", err)
	}
	if len(chain) != 2 || chain[0].ID != c1.ID || chain[1].ID != res.Successor.ID {
		t.Fatalf("chain=%+v", chain)
	}
	chain, _ = f.contracts.RenewalChain(ctx, c1.ID)
	if len(chain) != 2 {
		t.Fatalf("chain from root=%d, want 2", len(chain))
	}

	p, _ := f.store.Project(f.project.ID)
	if p.CurrentHeadcount != 1 || p.Status != domain.ProjectStatusInProgress {
		t.Fatalf("project=%s/%d", p.Status, p.CurrentHeadcount)
	}
}

func TestRenewGapFlaggedByDefault(t *testing.T) {
	f := newFixture(t, policy.Default(), 1)
	c1 := f.create(t, "s-1", day(2025, 4, 1), day(2025, 9, 30))

	res, err := f.contracts.RenewContract(context.Background(), c1.ID, "mgr", domain.NewDateRange(day(2025, 10, 15), day(2026, 3, 31)), 800000, "")
	if err != nil {
		t.Fatalf("RenewContract() err=%v", err)
	}
	if res.Continuity.Kind != domain.ContinuityGap || res.Continuity.Days != 14 || !res.Continuity.Flagged {
		t.Fatalf("continuity=%+v", res.Continuity)
	}

	events := f.store.Events()
	var renewed domain.AuditEvent
	for _, e := range events {
		if e.Action == "contract.renewed" {
			renewed = e
		}
	}
	if renewed.Payload["continuity"] != "gap" || renewed.Payload["flagged"] != true {
		t.Fatalf("renewed payload=%v", renewed.Payload)
	}
}

func TestRenewRejectMode(t *testing.T) {
	pol := policy.Default()
	pol.Renewal.Mode = policy.RenewalModeReject
	pol.Renewal.MaxOverlapDays = 0
	f := newFixture(t, pol, 1)
	c1 := f.create(t, "s-1", day(2025, 4, 1), day(2025, 9, 30))
	before := len(f.store.Events())

	_, err := f.contracts.RenewContract(context.Background(), c1.ID, "mgr", domain.NewDateRange(day(2025, 9, 21), day(2026, 3, 31)), 800000, "")
	mustKind(t, err, domain.KindValidation)

	got, _ := f.store.Contract(c1.ID)
	if got.Status != domain.ContractStatusActive {
		t.Fatalf("rejected renewal must leave predecessor active, got %s", got.Status)
	}
	if len(f.store.Events()) != before {
		t.Fatalf("rejected renewal must not append events")
	}
}

func TestTerminateTwice(t *testing.T) {
	f := newFixture(t, policy.Default(), 1)
	ctx := context.Background()
	c1 := f.create(t, "s-1", day(2025, 4, 1), day(2025, 9, 30))

	_, err := f.contracts.TerminateContract(ctx, c1.ID, "mgr", day(2025, 9, 30), " ")
	mustKind(t, err, domain.KindValidation)

	got, err := f.contracts.TerminateContract(ctx, c1.ID, "mgr", day(2025, 9, 30), "early completion")
	if err != nil {
		t.Fatalf("TerminateContract() err=%v", err)
	}
	if got.Status != domain.ContractStatusTerminated || got.TerminationReason != "early completion" || got.TerminationDate == nil {
		t.Fatalf("contract=%+v", got)
	}

	_, err = f.contracts.TerminateContract(ctx, c1.ID, "mgr", day(2025, 8, 31), "again")
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	stored, _ := f.store.Contract(c1.ID)
	if stored.TerminationReason != "early completion" || !stored.TerminationDate.Equal(day(2025, 9, 30)) {
		t.Fatalf("second call changed termination fields: %+v", stored)
	}

	p, _ := f.store.Project(f.project.ID)
	if p.Status != domain.ProjectStatusCompleted || p.CurrentHeadcount != 0 {
		t.Fatalf("project=%s/%d, want completed/0", p.Status, p.CurrentHeadcount)
	}
}

func TestEarlyTermination(t *testing.T) {
	f := newFixture(t, policy.Default(), 2)
	c1 := f.create(t, "s-1", day(2025, 4, 1), day(2025, 9, 30))

	got, err := f.contracts.TerminateContract(context.Background(), c1.ID, "mgr", day(2025, 6, 15), "budget cut")
	if err != nil {
		t.Fatalf("TerminateContract() err=%v", err)
	}
	if !got.TerminationDate.Before(got.Period.End) {
		t.Fatalf("termination date=%v", got.TerminationDate)
	}
	events := f.store.Events()
	if last := events[len(events)-1]; last.Action != "contract.terminated" || last.Payload["early"] != true {
		t.Fatalf("last event=%+v", last)
	}
}

func TestCreateContractGuards(t *testing.T) {
	f := newFixture(t, policy.Default(), 3)
	ctx := context.Background()
	f.create(t, "s-1", day(2025, 4, 1), day(2025, 9, 30))

	draft := domain.ContractDraft{
		ProjectID:    f.project.ID,
		StaffID:      "s-1",
		Period:       domain.NewDateRange(day(2025, 9, 1), day(2025, 12, 31)),
		Rate:         800000,
		ContractType: domain.ContractTypeTimeAndMaterials,
	}
	_, err := f.contracts.CreateContract(ctx, "mgr", draft)
	mustKind(t, err, domain.KindInvalidState)

	adjacent := draft
	adjacent.Period = domain.NewDateRange(day(2025, 10, 1), day(2025, 12, 31))
	if _, err := f.contracts.CreateContract(ctx, "mgr", adjacent); err != nil {
		t.Fatalf("adjacent contract err=%v", err)
	}

	unavailable := draft
	unavailable.StaffID = "s-3"
	_, err = f.contracts.CreateContract(ctx, "mgr", unavailable)
	mustKind(t, err, domain.KindInvalidState)

	missing := draft
	missing.StaffID = "s-404"
	_, err = f.contracts.CreateContract(ctx, "mgr", missing)
	mustKind(t, err, domain.KindNotFound)

	inverted := draft
	inverted.StaffID = "s-2"
	inverted.Period = domain.NewDateRange(day(2025, 12, 31), day(2025, 4, 1))
	_, err = f.contracts.CreateContract(ctx, "mgr", inverted)
	mustKind(t, err, domain.KindValidation)

	free := draft
	free.StaffID = "s-2"
	free.Rate = 0
	_, err = f.contracts.CreateContract(ctx, "mgr", free)
	mustKind(t, err, domain.KindValidation)

	ok := draft
	ok.StaffID = "s-2"
	_, err = f.contracts.CreateContract(ctx, "u1", ok)
	mustKind(t, err, domain.KindAuthorization)
}

func TestCreateContractRequiresRecruitingProject(t *testing.T) {
	f := newFixture(t, policy.Default(), 1)
	ctx := context.Background()

	draft, err := f.approvals.CreateProject(ctx, "u1", domain.ProjectDraft{
		Name:              "Not yet approved",
		Period:            domain.NewDateRange(day(2025, 4, 1), day(2025, 9, 30)),
		RequiredHeadcount: 1,
	})
	if err != nil {
		t.Fatalf("CreateProject() err=%v", err)
	}
	_, err = f.contracts.CreateContract(ctx, "mgr", domain.ContractDraft{
		ProjectID:    draft.ID,
		StaffID:      "s-1",
		Period:       domain.NewDateRange(day(2025, 4, 1), day(2025, 9, 30)),
		Rate:         800000,
		ContractType: domain.ContractTypeDispatch,
	})
	mustKind(t, err, domain.KindInvalidState)

	f.create(t, "s-1", day(2025, 4, 1), day(2025, 9, 30))
	p, _ := f.store.Project(f.project.ID)
	if p.Status != domain.ProjectStatusFulfilled {
		t.Fatalf("status=%s, want fulfilled", p.Status)
	}
	_, err = f.contracts.CreateContract(ctx, "mgr", domain.ContractDraft{
		ProjectID:    f.project.ID,
		StaffID:      "s-2",
		Period:       domain.NewDateRange(day(2025, 4, 1), day(2025, 9, 30)),
		Rate:         800000,
		ContractType: domain.ContractTypeDispatch,
	})
	mustKind(t, err, domain.KindInvalidState)

	if _, err := f.approvals.CancelProject(ctx, f.project.ID, "admin", "scope dropped"); err != nil {
		t.Fatalf("CancelProject() err=%v", err)
	}
	_, err = f.contracts.CreateContract(ctx, "mgr", domain.ContractDraft{
		ProjectID:    f.project.ID,
		StaffID:      "s-2",
		Period:       domain.NewDateRange(day(2025, 4, 1), day(2025, 9, 30)),
		Rate:         800000,
		ContractType: domain.ContractTypeDispatch,
	})
	mustKind(t, err, domain.KindInvalidState)
}

func TestUpdateContract(t *testing.T) {
	f := newFixture(t, policy.Default(), 2)
	ctx := context.Background()
	c1 := f.create(t, "s-1", day(2025, 4, 1), day(2025, 9, 30))

	_, err := f.contracts.UpdateContract(ctx, c1.ID, "mgr", domain.ContractChanges{})
	mustKind(t, err, domain.KindValidation)

	bad := domain.NewDateRange(day(2025, 9, 30), day(2025, 4, 1))
	_, err = f.contracts.UpdateContract(ctx, c1.ID, "mgr", domain.ContractChanges{Period: &bad})
	mustKind(t, err, domain.KindValidation)

	rate := int64(900000)
	got, err := f.contracts.UpdateContract(ctx, c1.ID, "mgr", domain.ContractChanges{Rate: &rate})
	if err != nil {
		t.Fatalf("UpdateContract() err=%v", err)
	}
	if got.Rate != rate || got.Version != c1.Version+1 {
		t.Fatalf("contract=%+v", got)
	}

	if _, err := f.contracts.TerminateContract(ctx, c1.ID, "mgr", day(2025, 9, 30), "done"); err != nil {
		t.Fatalf("TerminateContract() err=%v", err)
	}
	_, err = f.contracts.UpdateContract(ctx, c1.ID, "mgr", domain.ContractChanges{Rate: &rate})
	mustKind(t, err, domain.KindInvalidState)
}

func TestReads(t *testing.T) {
	f := newFixture(t, policy.Default(), 2)
	ctx := context.Background()
	c1 := f.create(t, "s-1", day(2025, 4, 1), day(2025, 9, 30))
	f.create(t, "s-2", day(2025, 5, 1), day(2025, 9, 30))

	got, err := f.contracts.GetContract(ctx, c1.ID)
	if err != nil || got.ID != c1.ID {
		t.Fatalf("GetContract()=%+v err=%v", got, err)
	}
	_, err = f.contracts.GetContract(ctx, "missing")
	mustKind(t, err, domain.KindNotFound)

	list, err := f.contracts.ListContracts(ctx, repo.ContractFilter{ProjectID: f.project.ID})
	if err != nil || len(list) != 2 {
		t.Fatalf("ListContracts()=%d err=%v", len(list), err)
	}
	_, err = f.contracts.ListContracts(ctx, repo.ContractFilter{ProjectID: "missing"})
	mustKind(t, err, domain.KindNotFound)
	_, err = f.contracts.ListContracts(ctx, repo.ContractFilter{Status: "void"})
	mustKind(t, err, domain.KindValidation)
}

type conflictingContracts struct {
	repo.ContractRepository
}

func (c conflictingContracts) SaveContract(ctx context.Context, contract domain.Contract, expectedVersion int64) error {
	return repo.ErrVersionConflict
}

type conflictingUoW struct {
	inner repo.UnitOfWork
}

func (c conflictingUoW) Do(ctx context.Context, fn func(ctx context.Context, r repo.Repositories) error) error {
	return c.inner.Do(ctx, func(ctx context.Context, r repo.Repositories) error {
		r.Contracts = conflictingContracts{r.Contracts}
		return fn(ctx, r)
	})
}

func TestConcurrentRenewalReportsConcurrency(t *testing.T) {
	f := newFixture(t, policy.Default(), 1)
	c1 := f.create(t, "s-1", day(2025, 4, 1), day(2025, 9, 30))

	runner := txn.NewRunner(conflictingUoW{inner: f.store})
	svc := New(runner, testRoles, policy.Default(), approvals.New(runner, testRoles, policy.Default()))
	_, err := svc.RenewContract(context.Background(), c1.ID, "mgr", domain.NewDateRange(day(2025, 10, 1), day(2026, 3, 31)), 880000, "")
	if !errors.Is(err, domain.ErrConcurrency) {
		t.Fatalf("expected concurrency error, got %v", err)
	}
	got, _ := f.store.Contract(c1.ID)
	if got.Status != domain.ContractStatusActive {
		t.Fatalf("failed renewal must leave predecessor active")
	}
	list, _ := f.contracts.ListContracts(context.Background(), repo.ContractFilter{ProjectID: f.project.ID})
	if len(list) != 1 {
		t.Fatalf("failed renewal must not create a successor, contracts=%d", len(list))
	}
}

func TestChainOfStopsOnCycle(t *testing.T) {
	a := domain.Contract{ID: "a", OriginalContractID: "b"}
	b := domain.Contract{ID: "b", OriginalContractID: "a"}
	chain := chainOf(a, []domain.Contract{a, b})
	if len(chain) > 2 {
		t.Fatalf("chain=%d, cycle not cut", len(chain))
	}
}

func ptr[T any](v T) *T { return &v }
