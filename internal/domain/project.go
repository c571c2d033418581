package domain

import (
	"errors"
	"strings"
	"time"
)

// ProjectStatus is the closed set of project workflow states.
type ProjectStatus string

const (
	ProjectStatusDraft           ProjectStatus = "draft"
	ProjectStatusPendingApproval ProjectStatus = "pending_approval"
	ProjectStatusRecruiting      ProjectStatus = "recruiting"
	ProjectStatusInProgress      ProjectStatus = "in_progress"
	ProjectStatusFulfilled       ProjectStatus = "fulfilled"
	ProjectStatusCompleted       ProjectStatus = "completed"
	ProjectStatusRejected        ProjectStatus = "rejected"
	ProjectStatusCancelled       ProjectStatus = "cancelled"
)

// ProjectStatuses lists every state in workflow order.
var ProjectStatuses = []ProjectStatus{
	ProjectStatusDraft,
	ProjectStatusPendingApproval,
	ProjectStatusRecruiting,
	ProjectStatusInProgress,
	ProjectStatusFulfilled,
	ProjectStatusCompleted,
	ProjectStatusRejected,
	ProjectStatusCancelled,
}

func (s ProjectStatus) Valid() bool {
	_, ok := projectTransitions[s]
	return ok
}

func (s ProjectStatus) Terminal() bool {
	return s == ProjectStatusCompleted || s == ProjectStatusCancelled
}

// Editable reports whether the requester may change project fields.
func (s ProjectStatus) Editable() bool {
	return s == ProjectStatusDraft || s == ProjectStatusRejected
}

// AcceptsContracts reports whether new contracts may be created against the project.
func (s ProjectStatus) AcceptsContracts() bool {
	return s == ProjectStatusRecruiting || s == ProjectStatusInProgress
}

// ApprovalStatus is the approval-facing view of a project status.
type ApprovalStatus string

const (
	ApprovalStatusNotRequested ApprovalStatus = "not_requested"
	ApprovalStatusPending      ApprovalStatus = "pending"
	ApprovalStatusApproved     ApprovalStatus = "approved"
	ApprovalStatusRejected     ApprovalStatus = "rejected"
	ApprovalStatusWithdrawn    ApprovalStatus = "withdrawn"
)

// Project is a staffing request raised by a department.
type Project struct {
	ID                 string
	Name               string
	Description        string
	DepartmentID       string
	Period             DateRange
	Budget             int64
	RequiredHeadcount  int
	CurrentHeadcount   int
	Status             ProjectStatus
	RequesterID        string
	ApproverID         string
	ApprovedAt         *time.Time
	RejectionReason    string
	CancellationReason string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Version            int64
}

// ApprovalStatus derives the approval view from the workflow status.
func (p Project) ApprovalStatus() ApprovalStatus {
	switch p.Status {
	case ProjectStatusDraft:
		return ApprovalStatusNotRequested
	case ProjectStatusPendingApproval:
		return ApprovalStatusPending
	case ProjectStatusRejected:
		return ApprovalStatusRejected
	case ProjectStatusCancelled:
		if p.ApprovedAt != nil {
			return ApprovalStatusApproved
		}
		return ApprovalStatusWithdrawn
	default:
		return ApprovalStatusApproved
	}
}

func (p Project) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("project id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("project name is required")
	}
	if strings.TrimSpace(p.RequesterID) == "" {
		return errors.New("requester id is required")
	}
	if !p.Status.Valid() {
		return errors.New("project status is invalid")
	}
	if err := p.Period.Validate(); err != nil {
		return err
	}
	if p.Budget < 0 {
		return errors.New("budget must be >= 0")
	}
	if p.RequiredHeadcount < 1 {
		return errors.New("required headcount must be >= 1")
	}
	if p.CurrentHeadcount < 0 {
		return errors.New("current headcount must be >= 0")
	}
	if (p.Status == ProjectStatusRejected) != (strings.TrimSpace(p.RejectionReason) != "") {
		return errors.New("rejection reason must be set only while rejected")
	}
	return nil
}

// ProjectDraft carries the requester-editable fields of a new project.
type ProjectDraft struct {
	Name              string
	Description       string
	DepartmentID      string
	Period            DateRange
	Budget            int64
	RequiredHeadcount int
}

// ProjectChanges is a partial update; nil fields are left untouched.
type ProjectChanges struct {
	Name              *string
	Description       *string
	DepartmentID      *string
	Period            *DateRange
	Budget            *int64
	RequiredHeadcount *int
}

func (c ProjectChanges) Empty() bool {
	return c.Name == nil && c.Description == nil && c.DepartmentID == nil &&
		c.Period == nil && c.Budget == nil && c.RequiredHeadcount == nil
}

// Apply returns a copy of p with the changes applied.
func (c ProjectChanges) Apply(p Project) Project {
	if c.Name != nil {
		p.Name = strings.TrimSpace(*c.Name)
	}
	if c.Description != nil {
		p.Description = strings.TrimSpace(*c.Description)
	}
	if c.DepartmentID != nil {
		p.DepartmentID = strings.TrimSpace(*c.DepartmentID)
	}
	if c.Period != nil {
		p.Period = NewDateRange(c.Period.Start, c.Period.End)
	}
	if c.Budget != nil {
		p.Budget = *c.Budget
	}
	if c.RequiredHeadcount != nil {
		p.RequiredHeadcount = *c.RequiredHeadcount
	}
	return p
}
