package approvals

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/staffline-labs/staffline-go/internal/domain"
	"github.com/staffline-labs/staffline-go/internal/platform/auth"
	"github.com/staffline-labs/staffline-go/internal/platform/policy"
	"github.com/staffline-labs/staffline-go/internal/repo"
	"github.com/staffline-labs/staffline-go/internal/service/access"
	"github.com/staffline-labs/staffline-go/internal/service/txn"
)

const (
	entityProject  = "project"
	entityApproval = "approval_request"
)

type Service struct {
	runner *txn.Runner
	guard  access.Guard
	policy policy.Roles
	newID  func() string
}

func New(runner *txn.Runner, roles auth.RoleResolver, pol policy.Policy) *Service {
	if runner == nil || roles == nil {
		return nil
	}
	return &Service{
		runner: runner,
		guard:  access.Guard{Roles: roles},
		policy: pol.Roles,
		newID:  uuid.NewString,
	}
}

// CreateProject stores a new draft owned by requesterID.
func (s *Service) CreateProject(ctx context.Context, requesterID string, draft domain.ProjectDraft) (domain.Project, error) {
	const op = "create_project"
	requesterID = strings.TrimSpace(requesterID)
	if requesterID == "" {
		return domain.Project{}, domain.ValidationError(op, "requester_id", "is required")
	}
	if err := validateFields(op, draft.Name, draft.Period, draft.Budget, draft.RequiredHeadcount); err != nil {
		return domain.Project{}, err
	}
	if err := s.guard.Require(ctx, op, requesterID, auth.RoleRequester); err != nil {
		return domain.Project{}, err
	}

	var out domain.Project
	err := s.runner.Run(ctx, func(ctx context.Context, tx *txn.Tx) error {
		p := domain.Project{
			ID:                s.newID(),
			Name:              strings.TrimSpace(draft.Name),
			Description:       strings.TrimSpace(draft.Description),
			DepartmentID:      strings.TrimSpace(draft.DepartmentID),
			Period:            domain.NewDateRange(draft.Period.Start, draft.Period.End),
			Budget:            draft.Budget,
			RequiredHeadcount: draft.RequiredHeadcount,
			Status:            domain.ProjectStatusDraft,
			RequesterID:       requesterID,
			CreatedAt:         tx.Now,
			UpdatedAt:         tx.Now,
			Version:           1,
		}
		if err := tx.Projects.CreateProject(ctx, p); err != nil {
			return txn.MapError(op, entityProject, p.ID, err)
		}
		if err := tx.Record(ctx, requesterID, "project.created", entityProject, p.ID, domain.Metadata{
			"to":   string(p.Status),
			"name": p.Name,
		}); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// UpdateProject edits a draft or rejected project.
func (s *Service) UpdateProject(ctx context.Context, projectID, actorID string, changes domain.ProjectChanges) (domain.Project, error) {
	const op = "update_project"
	if changes.Empty() {
		return domain.Project{}, domain.ValidationError(op, "changes", "nothing to update")
	}

	var out domain.Project
	err := s.runner.Run(ctx, func(ctx context.Context, tx *txn.Tx) error {
		p, err := s.loadProject(ctx, tx, op, projectID)
		if err != nil {
			return err
		}
		if err := s.requireEditor(ctx, op, actorID, p); err != nil {
			return err
		}
		if !p.Status.Editable() {
			return domain.InvalidStateError(op, entityProject, p.ID, string(p.Status), "edit")
		}

		updated := changes.Apply(p)
		if err := validateFields(op, updated.Name, updated.Period, updated.Budget, updated.RequiredHeadcount); err != nil {
			return err
		}
		updated.UpdatedAt = tx.Now
		if err := s.saveProject(ctx, tx, op, &updated, p.Version); err != nil {
			return err
		}
		if err := tx.Record(ctx, actorID, "project.updated", entityProject, p.ID, domain.Metadata{
			"fields": changedFields(changes),
		}); err != nil {
			return err
		}
		out = updated
		return nil
	})
	return out, err
}

// SubmitForApproval moves a draft or rejected project to pending_approval and
// opens an approval request.
func (s *Service) SubmitForApproval(ctx context.Context, projectID, requesterID, remarks string) (domain.Project, error) {
	return s.submit(ctx, "submit_for_approval", "project.submitted", projectID, requesterID, remarks,
		domain.ProjectStatusDraft, domain.ProjectStatusRejected)
}

// Resubmit sends a rejected project back for approval and clears the
// rejection reason.
func (s *Service) Resubmit(ctx context.Context, projectID, requesterID, remarks string) (domain.Project, error) {
	return s.submit(ctx, "resubmit", "project.resubmitted", projectID, requesterID, remarks,
		domain.ProjectStatusRejected)
}

func (s *Service) submit(ctx context.Context, op, action, projectID, requesterID, remarks string, from ...domain.ProjectStatus) (domain.Project, error) {
	requesterID = strings.TrimSpace(requesterID)
	if requesterID == "" {
		return domain.Project{}, domain.ValidationError(op, "requester_id", "is required")
	}

	var out domain.Project
	err := s.runner.Run(ctx, func(ctx context.Context, tx *txn.Tx) error {
		p, err := s.loadProject(ctx, tx, op, projectID)
		if err != nil {
			return err
		}
		if err := s.requireEditor(ctx, op, requesterID, p); err != nil {
			return err
		}
		if !statusIn(p.Status, from) {
			return domain.InvalidStateError(op, entityProject, p.ID, string(p.Status), string(domain.ProjectStatusPendingApproval))
		}
		if err := p.Period.Validate(); err != nil {
			return domain.ValidationError(op, "period", err.Error())
		}
		open, err := tx.Approvals.GetOpenApprovalRequest(ctx, p.ID)
		switch {
		case err == nil:
			return domain.InvalidStateError(op, entityApproval, open.ID, "open", "open")
		case !errors.Is(err, repo.ErrNotFound):
			return txn.MapError(op, entityApproval, p.ID, err)
		}

		prev := p
		p.Status = domain.ProjectStatusPendingApproval
		p.RejectionReason = ""
		p.ApproverID = ""
		p.ApprovedAt = nil
		p.UpdatedAt = tx.Now
		if err := s.saveProject(ctx, tx, op, &p, prev.Version); err != nil {
			return err
		}

		req := domain.ApprovalRequest{
			ID:          s.newID(),
			ProjectID:   p.ID,
			RequesterID: requesterID,
			Remarks:     strings.TrimSpace(remarks),
			RequestedAt: tx.Now,
			Version:     1,
		}
		if err := tx.Approvals.CreateApprovalRequest(ctx, req); err != nil {
			return txn.MapError(op, entityApproval, req.ID, err)
		}

		payload := transitionPayload(prev.Status, p.Status)
		payload["approval_request_id"] = req.ID
		payload["remarks"] = req.Remarks
		if prev.RejectionReason != "" {
			payload["previous_rejection_reason"] = prev.RejectionReason
		}
		if err := tx.Record(ctx, requesterID, action, entityProject, p.ID, payload); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// Approve accepts the open request and moves the project to recruiting.
func (s *Service) Approve(ctx context.Context, projectID, approverID, comment string) (domain.Project, error) {
	const op = "approve"
	return s.decide(ctx, op, projectID, approverID, func(tx *txn.Tx, p *domain.Project, req domain.ApprovalRequest) (domain.ApprovalRequest, error) {
		now := tx.Now
		p.Status = domain.ProjectStatusRecruiting
		p.ApprovedAt = &now
		return req.Close(approverID, domain.ApprovalDecisionApproved, comment, now), nil
	}, domain.ProjectStatusRecruiting)
}

// Reject closes the open request and stores the reason on the project.
func (s *Service) Reject(ctx context.Context, projectID, approverID, reason string) (domain.Project, error) {
	const op = "reject"
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Project{}, domain.ValidationError(op, "reason", "is required")
	}
	return s.decide(ctx, op, projectID, approverID, func(tx *txn.Tx, p *domain.Project, req domain.ApprovalRequest) (domain.ApprovalRequest, error) {
		p.Status = domain.ProjectStatusRejected
		p.RejectionReason = reason
		p.ApprovedAt = nil
		return req.Close(approverID, domain.ApprovalDecisionRejected, reason, tx.Now), nil
	}, domain.ProjectStatusRejected)
}

type decision func(tx *txn.Tx, p *domain.Project, req domain.ApprovalRequest) (domain.ApprovalRequest, error)

func (s *Service) decide(ctx context.Context, op, projectID, approverID string, apply decision, to domain.ProjectStatus) (domain.Project, error) {
	approverID = strings.TrimSpace(approverID)
	if approverID == "" {
		return domain.Project{}, domain.ValidationError(op, "approver_id", "is required")
	}

	var out domain.Project
	err := s.runner.Run(ctx, func(ctx context.Context, tx *txn.Tx) error {
		p, err := s.loadProject(ctx, tx, op, projectID)
		if err != nil {
			return err
		}
		req, err := tx.Approvals.GetOpenApprovalRequest(ctx, p.ID)
		hasOpen := err == nil
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return txn.MapError(op, entityApproval, p.ID, err)
		}

		if approverID == p.RequesterID || (hasOpen && approverID == req.RequesterID) {
			return domain.AuthorizationError(op, approverID, "self-approval is not allowed")
		}
		if err := s.guard.Require(ctx, op, approverID, s.policy.Approver); err != nil {
			return err
		}
		if err := domain.ProjectTransitionError(op, p, to); err != nil {
			return err
		}
		if !hasOpen {
			return domain.InvalidStateError(op, entityApproval, p.ID, "none", "open")
		}

		prev := p
		closed, err := apply(tx, &p, req)
		if err != nil {
			return err
		}
		p.ApproverID = approverID
		p.UpdatedAt = tx.Now
		if err := tx.Approvals.SaveApprovalRequest(ctx, closed, req.Version); err != nil {
			return txn.MapError(op, entityApproval, req.ID, err)
		}
		if err := s.saveProject(ctx, tx, op, &p, prev.Version); err != nil {
			return err
		}

		payload := transitionPayload(prev.Status, p.Status)
		payload["approval_request_id"] = req.ID
		payload["decision"] = string(closed.Decision)
		payload["comment"] = closed.DecisionComment
		if err := tx.Record(ctx, approverID, "project."+string(closed.Decision), entityProject, p.ID, payload); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// CancelProject stops a project from any state except completed and
// cancelled. An open approval request is withdrawn.
func (s *Service) CancelProject(ctx context.Context, projectID, actorID, reason string) (domain.Project, error) {
	const op = "cancel_project"
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Project{}, domain.ValidationError(op, "reason", "is required")
	}

	var out domain.Project
	err := s.runner.Run(ctx, func(ctx context.Context, tx *txn.Tx) error {
		p, err := s.loadProject(ctx, tx, op, projectID)
		if err != nil {
			return err
		}
		if err := s.guard.Require(ctx, op, actorID, s.policy.Cancel); err != nil {
			return err
		}
		if err := domain.ProjectTransitionError(op, p, domain.ProjectStatusCancelled); err != nil {
			return err
		}

		payload := transitionPayload(p.Status, domain.ProjectStatusCancelled)
		payload["reason"] = reason
		req, err := tx.Approvals.GetOpenApprovalRequest(ctx, p.ID)
		switch {
		case err == nil:
			withdrawn := req.Close(actorID, domain.ApprovalDecisionWithdrawn, reason, tx.Now)
			if err := tx.Approvals.SaveApprovalRequest(ctx, withdrawn, req.Version); err != nil {
				return txn.MapError(op, entityApproval, req.ID, err)
			}
			payload["withdrawn_request_id"] = req.ID
		case !errors.Is(err, repo.ErrNotFound):
			return txn.MapError(op, entityApproval, p.ID, err)
		}

		prev := p
		p.Status = domain.ProjectStatusCancelled
		p.CancellationReason = reason
		p.RejectionReason = ""
		p.UpdatedAt = tx.Now
		if err := s.saveProject(ctx, tx, op, &p, prev.Version); err != nil {
			return err
		}
		if err := tx.Record(ctx, actorID, "project.cancelled", entityProject, p.ID, payload); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// SyncProgress recomputes the operational status and headcount of a project
// from its contracts. It runs inside the caller's unit of work so contract
// writes and the derived project update commit together.
func (s *Service) SyncProgress(ctx context.Context, tx *txn.Tx, projectID, actorID string) (domain.Project, error) {
	const op = "sync_progress"
	p, err := s.loadProject(ctx, tx, op, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	counts, err := tx.Contracts.CountContracts(ctx, p.ID)
	if err != nil {
		return domain.Project{}, fmt.Errorf("%s: count contracts: %w", op, err)
	}
	status, headcount := domain.DeriveProjectProgress(p, counts)
	if status == p.Status && headcount == p.CurrentHeadcount {
		return p, nil
	}

	prev := p
	p.Status = status
	p.CurrentHeadcount = headcount
	p.UpdatedAt = tx.Now
	if err := s.saveProject(ctx, tx, op, &p, prev.Version); err != nil {
		return domain.Project{}, err
	}
	if status != prev.Status {
		payload := transitionPayload(prev.Status, status)
		payload["active_contracts"] = counts.Active
		payload["required_headcount"] = p.RequiredHeadcount
		if err := tx.Record(ctx, actorID, "project.progressed", entityProject, p.ID, payload); err != nil {
			return domain.Project{}, err
		}
	}
	return p, nil
}

// RefreshProgress runs SyncProgress in its own unit of work.
func (s *Service) RefreshProgress(ctx context.Context, projectID, actorID string) (domain.Project, error) {
	const op = "refresh_progress"
	if err := s.guard.Require(ctx, op, actorID, s.policy.Approver); err != nil {
		return domain.Project{}, err
	}
	var out domain.Project
	err := s.runner.Run(ctx, func(ctx context.Context, tx *txn.Tx) error {
		p, err := s.SyncProgress(ctx, tx, projectID, actorID)
		out = p
		return err
	})
	return out, err
}

func (s *Service) GetProject(ctx context.Context, projectID string) (domain.Project, error) {
	var out domain.Project
	err := s.runner.Read(ctx, func(ctx context.Context, r repo.Repositories) error {
		p, err := r.Projects.GetProject(ctx, projectID)
		if err != nil {
			return txn.MapError("get_project", entityProject, projectID, err)
		}
		out = p
		return nil
	})
	return out, err
}

func (s *Service) ListProjects(ctx context.Context, filter repo.ProjectFilter) ([]domain.Project, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.ValidationError("list_projects", "status", "unknown status")
	}
	var out []domain.Project
	err := s.runner.Read(ctx, func(ctx context.Context, r repo.Repositories) error {
		projects, err := r.Projects.ListProjects(ctx, filter)
		if err != nil {
			return fmt.Errorf("list projects: %w", err)
		}
		out = projects
		return nil
	})
	return out, err
}

// ListApprovalRequests returns every request of a project, oldest first.
func (s *Service) ListApprovalRequests(ctx context.Context, projectID string) ([]domain.ApprovalRequest, error) {
	const op = "list_approval_requests"
	var out []domain.ApprovalRequest
	err := s.runner.Read(ctx, func(ctx context.Context, r repo.Repositories) error {
		if _, err := r.Projects.GetProject(ctx, projectID); err != nil {
			return txn.MapError(op, entityProject, projectID, err)
		}
		requests, err := r.Approvals.ListApprovalRequests(ctx, projectID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		out = requests
		return nil
	})
	return out, err
}

func (s *Service) loadProject(ctx context.Context, tx *txn.Tx, op, projectID string) (domain.Project, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return domain.Project{}, domain.ValidationError(op, "project_id", "is required")
	}
	p, err := tx.Projects.GetProject(ctx, projectID)
	if err != nil {
		return domain.Project{}, txn.MapError(op, entityProject, projectID, err)
	}
	return p, nil
}

func (s *Service) saveProject(ctx context.Context, tx *txn.Tx, op string, p *domain.Project, expectedVersion int64) error {
	if err := tx.Projects.SaveProject(ctx, *p, expectedVersion); err != nil {
		return txn.MapError(op, entityProject, p.ID, err)
	}
	p.Version = expectedVersion + 1
	return nil
}

// requireEditor admits the project's requester or anyone holding the editing role.
func (s *Service) requireEditor(ctx context.Context, op, actorID string, p domain.Project) error {
	if strings.TrimSpace(actorID) != "" && strings.TrimSpace(actorID) == p.RequesterID {
		return nil
	}
	role, err := s.guard.RoleOf(ctx, op, actorID)
	if err != nil {
		return err
	}
	if !role.AtLeast(s.policy.Editor) {
		return domain.AuthorizationError(op, actorID, "only the requester or an editing role may change this project")
	}
	return nil
}

func validateFields(op, name string, period domain.DateRange, budget int64, headcount int) error {
	if strings.TrimSpace(name) == "" {
		return domain.ValidationError(op, "name", "is required")
	}
	if err := period.Validate(); err != nil {
		return domain.ValidationError(op, "period", err.Error())
	}
	if budget < 0 {
		return domain.ValidationError(op, "budget", "must be >= 0")
	}
	if headcount < 1 {
		return domain.ValidationError(op, "required_headcount", "must be >= 1")
	}
	return nil
}

func statusIn(status domain.ProjectStatus, allowed []domain.ProjectStatus) bool {
	for _, candidate := range allowed {
		if candidate == status {
			return true
		}
	}
	return false
}

func transitionPayload(from, to domain.ProjectStatus) domain.Metadata {
	return domain.Metadata{"from": string(from), "to": string(to)}
}

func changedFields(c domain.ProjectChanges) []string {
	fields := make([]string, 0, 6)
	if c.Name != nil {
		fields = append(fields, "name")
	}
	if c.Description != nil {
		fields = append(fields, "description")
	}
	if c.DepartmentID != nil {
		fields = append(fields, "department_id")
	}
	if c.Period != nil {
		fields = append(fields, "period")
	}
	if c.Budget != nil {
		fields = append(fields, "budget")
	}
	if c.RequiredHeadcount != nil {
		fields = append(fields, "required_headcount")
	}
	return fields
}
