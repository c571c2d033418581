package contracts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/staffline-labs/staffline-go/internal/domain"
	"github.com/staffline-labs/staffline-go/internal/platform/auth"
	"github.com/staffline-labs/staffline-go/internal/platform/policy"
	"github.com/staffline-labs/staffline-go/internal/repo"
	"github.com/staffline-labs/staffline-go/internal/service/access"
	"github.com/staffline-labs/staffline-go/internal/service/txn"
)

const (
	entityContract = "contract"
	entityProject  = "project"
	entityStaff    = "staff"
)

// ProgressSyncer re-derives a project's operational status after contract
// writes. approvals.Service satisfies it.
type ProgressSyncer interface {
	SyncProgress(ctx context.Context, tx *txn.Tx, projectID, actorID string) (domain.Project, error)
}

type Service struct {
	runner   *txn.Runner
	guard    access.Guard
	role     auth.Role
	renewal  policy.RenewalPolicy
	progress ProgressSyncer
	newID    func() string
}

func New(runner *txn.Runner, roles auth.RoleResolver, pol policy.Policy, progress ProgressSyncer) *Service {
	if runner == nil || roles == nil || progress == nil {
		return nil
	}
	return &Service{
		runner:   runner,
		guard:    access.Guard{Roles: roles},
		role:     pol.Roles.Contracts,
		renewal:  pol.Renewal,
		progress: progress,
		newID:    uuid.NewString,
	}
}

func (s *Service) CreateContract(ctx context.Context, actorID string, draft domain.ContractDraft) (domain.Contract, error) {
	const op = "create_contract"
	if strings.TrimSpace(draft.ProjectID) == "" {
		return domain.Contract{}, domain.ValidationError(op, "project_id", "is required")
	}
	if strings.TrimSpace(draft.StaffID) == "" {
		return domain.Contract{}, domain.ValidationError(op, "staff_id", "is required")
	}
	if err := validateTerms(op, draft.Period, draft.Rate, draft.ContractType); err != nil {
		return domain.Contract{}, err
	}
	if err := s.guard.Require(ctx, op, actorID, s.role); err != nil {
		return domain.Contract{}, err
	}

	var out domain.Contract
	err := s.runner.Run(ctx, func(ctx context.Context, tx *txn.Tx) error {
		project, err := tx.Projects.GetProject(ctx, draft.ProjectID)
		if err != nil {
			return txn.MapError(op, entityProject, draft.ProjectID, err)
		}
		if !project.Status.AcceptsContracts() {
			return domain.InvalidStateError(op, entityProject, project.ID, string(project.Status), "contracted")
		}
		staff, err := tx.Staff.GetStaff(ctx, draft.StaffID)
		if err != nil {
			return txn.MapError(op, entityStaff, draft.StaffID, err)
		}
		if !staff.Available {
			return domain.InvalidStateError(op, entityStaff, staff.ID, "unavailable", "contracted")
		}

		c := domain.Contract{
			ID:           s.newID(),
			ProjectID:    project.ID,
			StaffID:      staff.ID,
			Period:       domain.NewDateRange(draft.Period.Start, draft.Period.End),
			Rate:         draft.Rate,
			ContractType: draft.ContractType,
			Status:       domain.ContractStatusActive,
			Remarks:      strings.TrimSpace(draft.Remarks),
			CreatedBy:    actorID,
			CreatedAt:    tx.Now,
			UpdatedAt:    tx.Now,
			Version:      1,
		}
		if err := s.ensureNoOverlap(ctx, tx, op, c); err != nil {
			return err
		}
		if err := tx.Contracts.CreateContract(ctx, c); err != nil {
			return txn.MapError(op, entityContract, c.ID, err)
		}
		if err := tx.Record(ctx, actorID, "contract.created", entityContract, c.ID, domain.Metadata{
			"project_id":    c.ProjectID,
			"staff_id":      c.StaffID,
			"start_date":    domain.FormatDate(c.Period.Start),
			"end_date":      domain.FormatDate(c.Period.End),
			"rate":          c.Rate,
			"contract_type": string(c.ContractType),
		}); err != nil {
			return err
		}
		if _, err := s.progress.SyncProgress(ctx, tx, c.ProjectID, actorID); err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

func (s *Service) UpdateContract(ctx context.Context, contractID, actorID string, changes domain.ContractChanges) (domain.Contract, error) {
	const op = "update_contract"
	if changes.Empty() {
		return domain.Contract{}, domain.ValidationError(op, "changes", "nothing to update")
	}
	if err := s.guard.Require(ctx, op, actorID, s.role); err != nil {
		return domain.Contract{}, err
	}

	var out domain.Contract
	err := s.runner.Run(ctx, func(ctx context.Context, tx *txn.Tx) error {
		c, err := s.loadActive(ctx, tx, op, contractID, "edit")
		if err != nil {
			return err
		}
		updated := changes.Apply(c)
		if err := validateTerms(op, updated.Period, updated.Rate, updated.ContractType); err != nil {
			return err
		}
		if changes.Period != nil {
			if err := s.ensureNoOverlap(ctx, tx, op, updated); err != nil {
				return err
			}
		}
		updated.UpdatedAt = tx.Now
		if err := tx.Contracts.SaveContract(ctx, updated, c.Version); err != nil {
			return txn.MapError(op, entityContract, c.ID, err)
		}
		updated.Version = c.Version + 1

		payload := domain.Metadata{"project_id": c.ProjectID}
		if changes.Period != nil {
			payload["start_date"] = domain.FormatDate(updated.Period.Start)
			payload["end_date"] = domain.FormatDate(updated.Period.End)
		}
		if changes.Rate != nil {
			payload["previous_rate"] = c.Rate
			payload["rate"] = updated.Rate
		}
		if changes.ContractType != nil {
			payload["contract_type"] = string(updated.ContractType)
		}
		if err := tx.Record(ctx, actorID, "contract.updated", entityContract, c.ID, payload); err != nil {
			return err
		}
		out = updated
		return nil
	})
	return out, err
}

// RenewalResult is the outcome of RenewContract.
type RenewalResult struct {
	Predecessor domain.Contract
	Successor   domain.Contract
	Continuity  domain.RenewalContinuity
}

// RenewContract supersedes an active contract with a new one for the same
// staff member and project. The seam between the two periods is classified
// and, depending on the renewal policy, flagged or rejected.
func (s *Service) RenewContract(ctx context.Context, contractID, actorID string, period domain.DateRange, rate int64, remarks string) (RenewalResult, error) {
	const op = "renew_contract"
	if err := s.guard.Require(ctx, op, actorID, s.role); err != nil {
		return RenewalResult{}, err
	}

	var out RenewalResult
	err := s.runner.Run(ctx, func(ctx context.Context, tx *txn.Tx) error {
		prev, err := s.loadActive(ctx, tx, op, contractID, string(domain.ContractStatusRenewed))
		if err != nil {
			return err
		}
		if err := validateTerms(op, period, rate, prev.ContractType); err != nil {
			return err
		}
		project, err := tx.Projects.GetProject(ctx, prev.ProjectID)
		if err != nil {
			return txn.MapError(op, entityProject, prev.ProjectID, err)
		}
		if project.Status.Terminal() {
			return domain.InvalidStateError(op, entityProject, project.ID, string(project.Status), "renewed")
		}

		continuity, err := s.renewal.Assess(op, domain.ClassifyRenewal(prev.Period, period))
		if err != nil {
			return err
		}

		renewed := prev
		renewed.Status = domain.ContractStatusRenewed
		renewed.UpdatedAt = tx.Now
		if err := tx.Contracts.SaveContract(ctx, renewed, prev.Version); err != nil {
			return txn.MapError(op, entityContract, prev.ID, err)
		}
		renewed.Version = prev.Version + 1

		next := domain.Contract{
			ID:                 s.newID(),
			ProjectID:          prev.ProjectID,
			StaffID:            prev.StaffID,
			Period:             domain.NewDateRange(period.Start, period.End),
			Rate:               rate,
			ContractType:       prev.ContractType,
			Status:             domain.ContractStatusActive,
			Remarks:            strings.TrimSpace(remarks),
			OriginalContractID: prev.ID,
			CreatedBy:          actorID,
			CreatedAt:          tx.Now,
			UpdatedAt:          tx.Now,
			Version:            1,
		}
		if err := s.ensureNoOverlap(ctx, tx, op, next); err != nil {
			return err
		}
		if err := tx.Contracts.CreateContract(ctx, next); err != nil {
			return txn.MapError(op, entityContract, next.ID, err)
		}

		if err := tx.Record(ctx, actorID, "contract.renewed", entityContract, prev.ID, domain.Metadata{
			"project_id":      prev.ProjectID,
			"successor_id":    next.ID,
			"continuity":      string(continuity.Kind),
			"continuity_days": continuity.Days,
			"flagged":         continuity.Flagged,
			"previous_rate":   prev.Rate,
			"rate":            next.Rate,
			"start_date":      domain.FormatDate(next.Period.Start),
			"end_date":        domain.FormatDate(next.Period.End),
		}); err != nil {
			return err
		}
		if _, err := s.progress.SyncProgress(ctx, tx, prev.ProjectID, actorID); err != nil {
			return err
		}
		out = RenewalResult{Predecessor: renewed, Successor: next, Continuity: continuity}
		return nil
	})
	return out, err
}

// TerminateContract ends an active contract. The termination date may fall
// before the contract's end date.
func (s *Service) TerminateContract(ctx context.Context, contractID, actorID string, terminationDate time.Time, reason string) (domain.Contract, error) {
	const op = "terminate_contract"
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Contract{}, domain.ValidationError(op, "termination_reason", "is required")
	}
	if terminationDate.IsZero() {
		return domain.Contract{}, domain.ValidationError(op, "termination_date", "is required")
	}
	if err := s.guard.Require(ctx, op, actorID, s.role); err != nil {
		return domain.Contract{}, err
	}

	var out domain.Contract
	err := s.runner.Run(ctx, func(ctx context.Context, tx *txn.Tx) error {
		c, err := s.loadActive(ctx, tx, op, contractID, string(domain.ContractStatusTerminated))
		if err != nil {
			return err
		}
		at := domain.Day(terminationDate)
		terminated := c
		terminated.Status = domain.ContractStatusTerminated
		terminated.TerminationDate = &at
		terminated.TerminationReason = reason
		terminated.UpdatedAt = tx.Now
		if err := tx.Contracts.SaveContract(ctx, terminated, c.Version); err != nil {
			return txn.MapError(op, entityContract, c.ID, err)
		}
		terminated.Version = c.Version + 1

		if err := tx.Record(ctx, actorID, "contract.terminated", entityContract, c.ID, domain.Metadata{
			"project_id":       c.ProjectID,
			"termination_date": domain.FormatDate(at),
			"reason":           reason,
			"early":            at.Before(c.Period.End),
		}); err != nil {
			return err
		}
		if _, err := s.progress.SyncProgress(ctx, tx, c.ProjectID, actorID); err != nil {
			return err
		}
		out = terminated
		return nil
	})
	return out, err
}

func (s *Service) GetContract(ctx context.Context, contractID string) (domain.Contract, error) {
	var out domain.Contract
	err := s.runner.Read(ctx, func(ctx context.Context, r repo.Repositories) error {
		c, err := r.Contracts.GetContract(ctx, contractID)
		if err != nil {
			return txn.MapError("get_contract", entityContract, contractID, err)
		}
		out = c
		return nil
	})
	return out, err
}

func (s *Service) ListContracts(ctx context.Context, filter repo.ContractFilter) ([]domain.Contract, error) {
	const op = "list_contracts"
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.ValidationError(op, "status", "unknown status")
	}
	var out []domain.Contract
	err := s.runner.Read(ctx, func(ctx context.Context, r repo.Repositories) error {
		if filter.ProjectID != "" {
			if _, err := r.Projects.GetProject(ctx, filter.ProjectID); err != nil {
				return txn.MapError(op, entityProject, filter.ProjectID, err)
			}
		}
		contracts, err := r.Contracts.ListContracts(ctx, filter)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		out = contracts
		return nil
	})
	return out, err
}

// RenewalChain returns every contract linked to contractID through renewals,
// oldest first.
func (s *Service) RenewalChain(ctx context.Context, contractID string) ([]domain.Contract, error) {
	const op = "renewal_chain"
	var out []domain.Contract
	err := s.runner.Read(ctx, func(ctx context.Context, r repo.Repositories) error {
		c, err := r.Contracts.GetContract(ctx, contractID)
		if err != nil {
			return txn.MapError(op, entityContract, contractID, err)
		}
		siblings, err := r.Contracts.ListContracts(ctx, repo.ContractFilter{ProjectID: c.ProjectID, StaffID: c.StaffID})
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		out = chainOf(c, siblings)
		return nil
	})
	return out, err
}

func chainOf(c domain.Contract, siblings []domain.Contract) []domain.Contract {
	byID := make(map[string]domain.Contract, len(siblings))
	successor := make(map[string]domain.Contract, len(siblings))
	for _, sib := range siblings {
		byID[sib.ID] = sib
		if sib.OriginalContractID != "" {
			successor[sib.OriginalContractID] = sib
		}
	}

	root := c
	seen := map[string]bool{root.ID: true}
	for root.OriginalContractID != "" {
		prev, ok := byID[root.OriginalContractID]
		if !ok || seen[prev.ID] {
			break
		}
		seen[prev.ID] = true
		root = prev
	}

	chain := []domain.Contract{root}
	visited := map[string]bool{root.ID: true}
	for {
		next, ok := successor[chain[len(chain)-1].ID]
		if !ok || visited[next.ID] {
			break
		}
		visited[next.ID] = true
		chain = append(chain, next)
	}
	return chain
}

// loadActive fetches a contract and fails with InvalidStateError unless it
// is active. to names the state the caller was trying to reach.
func (s *Service) loadActive(ctx context.Context, tx *txn.Tx, op, contractID, to string) (domain.Contract, error) {
	contractID = strings.TrimSpace(contractID)
	if contractID == "" {
		return domain.Contract{}, domain.ValidationError(op, "contract_id", "is required")
	}
	c, err := tx.Contracts.GetContract(ctx, contractID)
	if err != nil {
		return domain.Contract{}, txn.MapError(op, entityContract, contractID, err)
	}
	if c.Status != domain.ContractStatusActive {
		return domain.Contract{}, domain.InvalidStateError(op, entityContract, c.ID, string(c.Status), to)
	}
	return c, nil
}

// ensureNoOverlap rejects a second active assignment of the same staff member
// to the same project over intersecting dates.
func (s *Service) ensureNoOverlap(ctx context.Context, tx *txn.Tx, op string, c domain.Contract) error {
	existing, err := tx.Contracts.ListContracts(ctx, repo.ContractFilter{
		ProjectID: c.ProjectID,
		StaffID:   c.StaffID,
		Status:    domain.ContractStatusActive,
	})
	if err != nil {
		return fmt.Errorf("%s: list active contracts: %w", op, err)
	}
	for _, other := range existing {
		if other.ID == c.ID {
			continue
		}
		if other.Period.Overlaps(c.Period) {
			return &domain.Error{
				Kind:    domain.KindInvalidState,
				Op:      op,
				Entity:  entityStaff,
				ID:      c.StaffID,
				From:    "assigned",
				To:      "assigned",
				Message: fmt.Sprintf("overlaps active contract %s", other.ID),
			}
		}
	}
	return nil
}

func validateTerms(op string, period domain.DateRange, rate int64, contractType domain.ContractType) error {
	if err := period.Validate(); err != nil {
		return domain.ValidationError(op, "period", err.Error())
	}
	if rate <= 0 {
		return domain.ValidationError(op, "rate", "must be positive")
	}
	if !contractType.Valid() {
		return domain.ValidationError(op, "contract_type", "unknown contract type")
	}
	return nil
}
