package main

import (
	"time"

	"github.com/staffline-labs/staffline-go/internal/domain"
)

type projectResponse struct {
	ID                 string     `json:"project_id"`
	Name               string     `json:"name"`
	Description        string     `json:"description,omitempty"`
	DepartmentID       string     `json:"department_id,omitempty"`
	StartDate          string     `json:"start_date"`
	EndDate            string     `json:"end_date"`
	Budget             int64      `json:"budget"`
	RequiredHeadcount  int        `json:"required_headcount"`
	CurrentHeadcount   int        `json:"current_headcount"`
	Status             string     `json:"status"`
	ApprovalStatus     string     `json:"approval_status"`
	RequesterID        string     `json:"requester_id"`
	ApproverID         string     `json:"approver_id,omitempty"`
	ApprovedAt         *time.Time `json:"approved_at,omitempty"`
	RejectionReason    string     `json:"rejection_reason,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	Version            int64      `json:"version"`
}

func newProjectResponse(p domain.Project) projectResponse {
	return projectResponse{
		ID:                 p.ID,
		Name:               p.Name,
		Description:        p.Description,
		DepartmentID:       p.DepartmentID,
		StartDate:          domain.FormatDate(p.Period.Start),
		EndDate:            domain.FormatDate(p.Period.End),
		Budget:             p.Budget,
		RequiredHeadcount:  p.RequiredHeadcount,
		CurrentHeadcount:   p.CurrentHeadcount,
		Status:             string(p.Status),
		ApprovalStatus:     string(p.ApprovalStatus()),
		RequesterID:        p.RequesterID,
		ApproverID:         p.ApproverID,
		ApprovedAt:         p.ApprovedAt,
		RejectionReason:    p.RejectionReason,
		CancellationReason: p.CancellationReason,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
		Version:            p.Version,
	}
}

type approvalRequestResponse struct {
	ID              string     `json:"request_id"`
	ProjectID       string     `json:"project_id"`
	RequesterID     string     `json:"requester_id"`
	Remarks         string     `json:"remarks,omitempty"`
	RequestedAt     time.Time  `json:"requested_at"`
	ApproverID      string     `json:"approver_id,omitempty"`
	Decision        string     `json:"decision,omitempty"`
	DecisionComment string     `json:"decision_comment,omitempty"`
	DecidedAt       *time.Time `json:"decided_at,omitempty"`
}

func newApprovalRequestResponse(r domain.ApprovalRequest) approvalRequestResponse {
	return approvalRequestResponse{
		ID:              r.ID,
		ProjectID:       r.ProjectID,
		RequesterID:     r.RequesterID,
		Remarks:         r.Remarks,
		RequestedAt:     r.RequestedAt,
		ApproverID:      r.ApproverID,
		Decision:        string(r.Decision),
		DecisionComment: r.DecisionComment,
		DecidedAt:       r.DecidedAt,
	}
}

type contractResponse struct {
	ID                 string    `json:"contract_id"`
	ProjectID          string    `json:"project_id"`
	StaffID            string    `json:"staff_id"`
	StartDate          string    `json:"start_date"`
	EndDate            string    `json:"end_date"`
	Rate               int64     `json:"rate"`
	ContractType       string    `json:"contract_type"`
	Status             string    `json:"status"`
	Remarks            string    `json:"remarks,omitempty"`
	OriginalContractID string    `json:"original_contract_id,omitempty"`
	TerminationDate    string    `json:"termination_date,omitempty"`
	TerminationReason  string    `json:"termination_reason,omitempty"`
	CreatedBy          string    `json:"created_by,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	Version            int64     `json:"version"`
}

func newContractResponse(c domain.Contract) contractResponse {
	out := contractResponse{
		ID:                 c.ID,
		ProjectID:          c.ProjectID,
		StaffID:            c.StaffID,
		StartDate:          domain.FormatDate(c.Period.Start),
		EndDate:            domain.FormatDate(c.Period.End),
		Rate:               c.Rate,
		ContractType:       string(c.ContractType),
		Status:             string(c.Status),
		Remarks:            c.Remarks,
		OriginalContractID: c.OriginalContractID,
		TerminationReason:  c.TerminationReason,
		CreatedBy:          c.CreatedBy,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
		Version:            c.Version,
	}
	if c.TerminationDate != nil {
		out.TerminationDate = domain.FormatDate(*c.TerminationDate)
	}
	return out
}

func newContractResponses(list []domain.Contract) []contractResponse {
	out := make([]contractResponse, 0, len(list))
	for _, c := range list {
		out = append(out, newContractResponse(c))
	}
	return out
}
