package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/staffline-labs/staffline-go/internal/domain"
)

const approvalColumns = `request_id, project_id, requester_id, remarks, requested_at,
	approver_id, decision, decision_comment, decided_at, version`

type ApprovalStore struct {
	db DB
}

func NewApprovalStore(db DB) *ApprovalStore {
	if db == nil {
		return nil
	}
	return &ApprovalStore{db: db}
}

// CreateApprovalRequest relies on the approval_requests_one_open index, so a
// second open request for the same project fails with repo.ErrDuplicate.
func (s *ApprovalStore) CreateApprovalRequest(ctx context.Context, request domain.ApprovalRequest) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("approval store not initialized")
	}
	if err := request.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO approval_requests (`+approvalColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,1)`,
		strings.TrimSpace(request.ID),
		strings.TrimSpace(request.ProjectID),
		strings.TrimSpace(request.RequesterID),
		strings.TrimSpace(request.Remarks),
		request.RequestedAt.UTC(),
		nullString(request.ApproverID),
		nullString(string(request.Decision)),
		nullString(request.DecisionComment),
		nullTime(request.DecidedAt),
	)
	return mapWriteError("insert approval request", err)
}

func (s *ApprovalStore) GetOpenApprovalRequest(ctx context.Context, projectID string) (domain.ApprovalRequest, error) {
	if s == nil || s.db == nil {
		return domain.ApprovalRequest{}, fmt.Errorf("approval store not initialized")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+approvalColumns+` FROM approval_requests
		 WHERE project_id = $1 AND decision IS NULL`,
		strings.TrimSpace(projectID),
	)
	r, err := scanApproval(row)
	if err != nil {
		return domain.ApprovalRequest{}, handleNotFound(err)
	}
	return r, nil
}

func (s *ApprovalStore) ListApprovalRequests(ctx context.Context, projectID string) ([]domain.ApprovalRequest, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("approval store not initialized")
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+approvalColumns+` FROM approval_requests
		 WHERE project_id = $1
		 ORDER BY requested_at, request_id`,
		strings.TrimSpace(projectID),
	)
	if err != nil {
		return nil, fmt.Errorf("list approval requests: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ApprovalRequest, 0)
	for rows.Next() {
		r, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("scan approval request: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list approval requests: %w", err)
	}
	return out, nil
}

func (s *ApprovalStore) SaveApprovalRequest(ctx context.Context, request domain.ApprovalRequest, expectedVersion int64) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("approval store not initialized")
	}
	if err := request.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE approval_requests SET
			remarks = $2,
			approver_id = $3,
			decision = $4,
			decision_comment = $5,
			decided_at = $6,
			version = version + 1
		 WHERE request_id = $1 AND version = $7`,
		strings.TrimSpace(request.ID),
		strings.TrimSpace(request.Remarks),
		nullString(request.ApproverID),
		nullString(string(request.Decision)),
		nullString(request.DecisionComment),
		nullTime(request.DecidedAt),
		expectedVersion,
	)
	if err != nil {
		return mapWriteError("update approval request", err)
	}
	return checkVersioned(ctx, s.db, res, "approval_requests", "request_id", request.ID)
}

func scanApproval(row rowScanner) (domain.ApprovalRequest, error) {
	var (
		r        domain.ApprovalRequest
		approver sql.NullString
		decision sql.NullString
		comment  sql.NullString
		decided  sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.ProjectID, &r.RequesterID, &r.Remarks, &r.RequestedAt,
		&approver, &decision, &comment, &decided, &r.Version); err != nil {
		return domain.ApprovalRequest{}, err
	}
	r.ApproverID = approver.String
	r.Decision = domain.ApprovalDecision(decision.String)
	r.DecisionComment = comment.String
	r.DecidedAt = timePtr(decided)
	r.RequestedAt = r.RequestedAt.UTC()
	return r, nil
}
