package domain

import (
	"errors"
	"strings"
	"time"
)

// ApprovalDecision records how an approval request was closed.
type ApprovalDecision string

const (
	ApprovalDecisionApproved  ApprovalDecision = "approved"
	ApprovalDecisionRejected  ApprovalDecision = "rejected"
	ApprovalDecisionWithdrawn ApprovalDecision = "withdrawn"
)

func (d ApprovalDecision) Valid() bool {
	switch d {
	case ApprovalDecisionApproved, ApprovalDecisionRejected, ApprovalDecisionWithdrawn:
		return true
	default:
		return false
	}
}

// ApprovalRequest is the audit record of one submit/decide cycle.
type ApprovalRequest struct {
	ID              string
	ProjectID       string
	RequesterID     string
	Remarks         string
	RequestedAt     time.Time
	ApproverID      string
	Decision        ApprovalDecision
	DecisionComment string
	DecidedAt       *time.Time
	Version         int64
}

// Open reports whether the request is still awaiting a decision.
func (r ApprovalRequest) Open() bool {
	return r.Decision == ""
}

// Close returns a decided copy of the request.
func (r ApprovalRequest) Close(approverID string, decision ApprovalDecision, comment string, at time.Time) ApprovalRequest {
	decided := at.UTC()
	r.ApproverID = strings.TrimSpace(approverID)
	r.Decision = decision
	r.DecisionComment = strings.TrimSpace(comment)
	r.DecidedAt = &decided
	return r
}

func (r ApprovalRequest) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("approval request id is required")
	}
	if strings.TrimSpace(r.ProjectID) == "" {
		return errors.New("project id is required")
	}
	if strings.TrimSpace(r.RequesterID) == "" {
		return errors.New("requester id is required")
	}
	if r.RequestedAt.IsZero() {
		return errors.New("requested_at is required")
	}
	if r.Decision != "" {
		if !r.Decision.Valid() {
			return errors.New("decision is invalid")
		}
		if r.DecidedAt == nil {
			return errors.New("decided_at is required once decided")
		}
	}
	return nil
}
