package repo

import (
	"context"
	"errors"

	"github.com/staffline-labs/staffline-go/internal/domain"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned when a save's expected version no longer matches.
	ErrVersionConflict = errors.New("version conflict")
	// ErrDuplicate is returned when a uniqueness constraint rejects a write.
	ErrDuplicate = errors.New("duplicate")
)

type ProjectFilter struct {
	Status       domain.ProjectStatus
	RequesterID  string
	DepartmentID string
	Limit        int
}

type ContractFilter struct {
	ProjectID string
	StaffID   string
	Status    domain.ContractStatus
	Limit     int
}

// ProjectRepository manages projects. Save bumps Version by one and fails
// with ErrVersionConflict when the stored version differs from expectedVersion.
type ProjectRepository interface {
	CreateProject(ctx context.Context, project domain.Project) error
	GetProject(ctx context.Context, id string) (domain.Project, error)
	ListProjects(ctx context.Context, filter ProjectFilter) ([]domain.Project, error)
	SaveProject(ctx context.Context, project domain.Project, expectedVersion int64) error
}

// ApprovalRequestRepository manages approval audit records.
type ApprovalRequestRepository interface {
	CreateApprovalRequest(ctx context.Context, request domain.ApprovalRequest) error
	GetOpenApprovalRequest(ctx context.Context, projectID string) (domain.ApprovalRequest, error)
	ListApprovalRequests(ctx context.Context, projectID string) ([]domain.ApprovalRequest, error)
	SaveApprovalRequest(ctx context.Context, request domain.ApprovalRequest, expectedVersion int64) error
}

// ContractRepository manages contracts. Contracts are never deleted.
type ContractRepository interface {
	CreateContract(ctx context.Context, contract domain.Contract) error
	GetContract(ctx context.Context, id string) (domain.Contract, error)
	ListContracts(ctx context.Context, filter ContractFilter) ([]domain.Contract, error)
	SaveContract(ctx context.Context, contract domain.Contract, expectedVersion int64) error
	CountContracts(ctx context.Context, projectID string) (domain.ContractCounts, error)
}

// StaffDirectory resolves staff owned by the partner CRUD screens.
type StaffDirectory interface {
	GetStaff(ctx context.Context, id string) (domain.Staff, error)
}

// AuditEventAppender ensures append-only audit writes. It returns the stored
// event with its id and integrity hash filled in.
type AuditEventAppender interface {
	Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error)
}

// Repositories is the set of stores bound to one unit of work.
type Repositories struct {
	Projects  ProjectRepository
	Approvals ApprovalRequestRepository
	Contracts ContractRepository
	Staff     StaffDirectory
	Audit     AuditEventAppender
}

// UnitOfWork runs fn atomically: every write made through the provided
// Repositories commits together when fn returns nil and none do otherwise.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error
}
