// Package memory is an in-process repository used by tests and by
// STAFFLINE_STORE=memory deployments. Units of work are serialized by a single
// mutex and applied copy-on-write, so a failed unit leaves no trace.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/staffline-labs/staffline-go/internal/domain"
	"github.com/staffline-labs/staffline-go/internal/platform/auditlog"
	"github.com/staffline-labs/staffline-go/internal/repo"
)

type state struct {
	projects  map[string]domain.Project
	approvals map[string]domain.ApprovalRequest
	contracts map[string]domain.Contract
	staff     map[string]domain.Staff
	events    []domain.AuditEvent
}

func (s *state) clone() *state {
	out := &state{
		projects:  make(map[string]domain.Project, len(s.projects)),
		approvals: make(map[string]domain.ApprovalRequest, len(s.approvals)),
		contracts: make(map[string]domain.Contract, len(s.contracts)),
		staff:     make(map[string]domain.Staff, len(s.staff)),
		events:    append([]domain.AuditEvent(nil), s.events...),
	}
	for k, v := range s.projects {
		out.projects[k] = v
	}
	for k, v := range s.approvals {
		out.approvals[k] = v
	}
	for k, v := range s.contracts {
		out.contracts[k] = v
	}
	for k, v := range s.staff {
		out.staff[k] = v
	}
	return out
}

// Store implements repo.UnitOfWork in memory.
type Store struct {
	mu      sync.Mutex
	current *state
}

func NewStore() *Store {
	return &Store{current: &state{
		projects:  map[string]domain.Project{},
		approvals: map[string]domain.ApprovalRequest{},
		contracts: map[string]domain.Contract{},
		staff:     map[string]domain.Staff{},
	}}
}

func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, r repo.Repositories) error) error {
	if s == nil {
		return fmt.Errorf("memory store not initialized")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.current.clone()
	tx := &txStore{state: work}
	if err := fn(ctx, repo.Repositories{
		Projects:  tx,
		Approvals: tx,
		Contracts: tx,
		Staff:     tx,
		Audit:     tx,
	}); err != nil {
		return err
	}
	s.current = work
	return nil
}

// PutStaff registers a staff member.
func (s *Store) PutStaff(staff domain.Staff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.staff[staff.ID] = staff
}

// Events returns committed audit events in append order.
func (s *Store) Events() []domain.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditEvent(nil), s.current.events...)
}

// Project returns the committed snapshot of a project.
func (s *Store) Project(id string) (domain.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.current.projects[id]
	return p, ok
}

// Contract returns the committed snapshot of a contract.
func (s *Store) Contract(id string) (domain.Contract, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.current.contracts[id]
	return c, ok
}

type txStore struct {
	state *state
}

func (t *txStore) CreateProject(ctx context.Context, project domain.Project) error {
	if err := project.Validate(); err != nil {
		return err
	}
	if _, ok := t.state.projects[project.ID]; ok {
		return repo.ErrDuplicate
	}
	project.Version = 1
	t.state.projects[project.ID] = project
	return nil
}

func (t *txStore) GetProject(ctx context.Context, id string) (domain.Project, error) {
	p, ok := t.state.projects[strings.TrimSpace(id)]
	if !ok {
		return domain.Project{}, repo.ErrNotFound
	}
	return p, nil
}

func (t *txStore) ListProjects(ctx context.Context, filter repo.ProjectFilter) ([]domain.Project, error) {
	out := make([]domain.Project, 0)
	for _, p := range t.state.projects {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.RequesterID != "" && p.RequesterID != filter.RequesterID {
			continue
		}
		if filter.DepartmentID != "" && p.DepartmentID != filter.DepartmentID {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (t *txStore) SaveProject(ctx context.Context, project domain.Project, expectedVersion int64) error {
	if err := project.Validate(); err != nil {
		return err
	}
	stored, ok := t.state.projects[project.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return repo.ErrVersionConflict
	}
	project.Version = expectedVersion + 1
	t.state.projects[project.ID] = project
	return nil
}

func (t *txStore) CreateApprovalRequest(ctx context.Context, request domain.ApprovalRequest) error {
	if err := request.Validate(); err != nil {
		return err
	}
	if _, ok := t.state.approvals[request.ID]; ok {
		return repo.ErrDuplicate
	}
	if request.Open() {
		if _, err := t.GetOpenApprovalRequest(ctx, request.ProjectID); err == nil {
			return repo.ErrDuplicate
		}
	}
	request.Version = 1
	t.state.approvals[request.ID] = request
	return nil
}

func (t *txStore) GetOpenApprovalRequest(ctx context.Context, projectID string) (domain.ApprovalRequest, error) {
	for _, r := range t.state.approvals {
		if r.ProjectID == projectID && r.Open() {
			return r, nil
		}
	}
	return domain.ApprovalRequest{}, repo.ErrNotFound
}

func (t *txStore) ListApprovalRequests(ctx context.Context, projectID string) ([]domain.ApprovalRequest, error) {
	out := make([]domain.ApprovalRequest, 0)
	for _, r := range t.state.approvals {
		if r.ProjectID == projectID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	return out, nil
}

func (t *txStore) SaveApprovalRequest(ctx context.Context, request domain.ApprovalRequest, expectedVersion int64) error {
	if err := request.Validate(); err != nil {
		return err
	}
	stored, ok := t.state.approvals[request.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return repo.ErrVersionConflict
	}
	request.Version = expectedVersion + 1
	t.state.approvals[request.ID] = request
	return nil
}

func (t *txStore) CreateContract(ctx context.Context, contract domain.Contract) error {
	if err := contract.Validate(); err != nil {
		return err
	}
	if _, ok := t.state.contracts[contract.ID]; ok {
		return repo.ErrDuplicate
	}
	contract.Version = 1
	t.state.contracts[contract.ID] = contract
	return nil
}

func (t *txStore) GetContract(ctx context.Context, id string) (domain.Contract, error) {
	c, ok := t.state.contracts[strings.TrimSpace(id)]
	if !ok {
		return domain.Contract{}, repo.ErrNotFound
	}
	return c, nil
}

func (t *txStore) ListContracts(ctx context.Context, filter repo.ContractFilter) ([]domain.Contract, error) {
	out := make([]domain.Contract, 0)
	for _, c := range t.state.contracts {
		if filter.ProjectID != "" && c.ProjectID != filter.ProjectID {
			continue
		}
		if filter.StaffID != "" && c.StaffID != filter.StaffID {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Period.Start.Equal(out[j].Period.Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Period.Start.Before(out[j].Period.Start)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (t *txStore) SaveContract(ctx context.Context, contract domain.Contract, expectedVersion int64) error {
	if err := contract.Validate(); err != nil {
		return err
	}
	stored, ok := t.state.contracts[contract.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return repo.ErrVersionConflict
	}
	contract.Version = expectedVersion + 1
	t.state.contracts[contract.ID] = contract
	return nil
}

func (t *txStore) CountContracts(ctx context.Context, projectID string) (domain.ContractCounts, error) {
	var counts domain.ContractCounts
	for _, c := range t.state.contracts {
		if c.ProjectID != projectID {
			continue
		}
		switch c.Status {
		case domain.ContractStatusActive:
			counts.Active++
		case domain.ContractStatusRenewed:
			counts.Renewed++
		case domain.ContractStatusTerminated:
			counts.Terminated++
		}
	}
	return counts, nil
}

func (t *txStore) GetStaff(ctx context.Context, id string) (domain.Staff, error) {
	s, ok := t.state.staff[strings.TrimSpace(id)]
	if !ok {
		return domain.Staff{}, repo.ErrNotFound
	}
	return s, nil
}

func (t *txStore) Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if err := event.Validate(); err != nil {
		return domain.AuditEvent{}, err
	}
	_, integrity, err := auditlog.Seal(event)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	event.EventID = int64(len(t.state.events) + 1)
	event.IntegritySHA256 = integrity
	t.state.events = append(t.state.events, event)
	return event, nil
}
