package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/staffline-labs/staffline-go/internal/domain"
	"github.com/staffline-labs/staffline-go/internal/repo"
)

const projectColumns = `project_id, name, description, department_id, start_date, end_date,
	budget, required_headcount, current_headcount, status, requester_id, approver_id,
	approved_at, rejection_reason, cancellation_reason, created_at, updated_at, version`

type ProjectStore struct {
	db DB
}

func NewProjectStore(db DB) *ProjectStore {
	if db == nil {
		return nil
	}
	return &ProjectStore{db: db}
}

func (s *ProjectStore) CreateProject(ctx context.Context, project domain.Project) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("project store not initialized")
	}
	if err := project.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO projects (`+projectColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,1)`,
		strings.TrimSpace(project.ID),
		strings.TrimSpace(project.Name),
		strings.TrimSpace(project.Description),
		nullString(project.DepartmentID),
		project.Period.Start,
		project.Period.End,
		project.Budget,
		project.RequiredHeadcount,
		project.CurrentHeadcount,
		string(project.Status),
		strings.TrimSpace(project.RequesterID),
		nullString(project.ApproverID),
		nullTime(project.ApprovedAt),
		nullString(project.RejectionReason),
		nullString(project.CancellationReason),
		normalizeTime(project.CreatedAt),
		normalizeTime(project.UpdatedAt),
	)
	return mapWriteError("insert project", err)
}

func (s *ProjectStore) GetProject(ctx context.Context, id string) (domain.Project, error) {
	if s == nil || s.db == nil {
		return domain.Project{}, fmt.Errorf("project store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Project{}, fmt.Errorf("project id is required")
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE project_id = $1`, id)
	p, err := scanProject(row)
	if err != nil {
		return domain.Project{}, handleNotFound(err)
	}
	return p, nil
}

func (s *ProjectStore) ListProjects(ctx context.Context, filter repo.ProjectFilter) ([]domain.Project, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("project store not initialized")
	}
	query, args := buildProjectListQuery(filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]domain.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

func buildProjectListQuery(filter repo.ProjectFilter) (string, []any) {
	var w whereBuilder
	w.eq("status", string(filter.Status))
	w.eq("requester_id", filter.RequesterID)
	w.eq("department_id", filter.DepartmentID)
	return w.build(`SELECT `+projectColumns+` FROM projects`, "created_at DESC, project_id", filter.Limit)
}

func (s *ProjectStore) SaveProject(ctx context.Context, project domain.Project, expectedVersion int64) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("project store not initialized")
	}
	if err := project.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE projects SET
			name = $2,
			description = $3,
			department_id = $4,
			start_date = $5,
			end_date = $6,
			budget = $7,
			required_headcount = $8,
			current_headcount = $9,
			status = $10,
			approver_id = $11,
			approved_at = $12,
			rejection_reason = $13,
			cancellation_reason = $14,
			updated_at = $15,
			version = version + 1
		 WHERE project_id = $1 AND version = $16`,
		strings.TrimSpace(project.ID),
		strings.TrimSpace(project.Name),
		strings.TrimSpace(project.Description),
		nullString(project.DepartmentID),
		project.Period.Start,
		project.Period.End,
		project.Budget,
		project.RequiredHeadcount,
		project.CurrentHeadcount,
		string(project.Status),
		nullString(project.ApproverID),
		nullTime(project.ApprovedAt),
		nullString(project.RejectionReason),
		nullString(project.CancellationReason),
		normalizeTime(project.UpdatedAt),
		expectedVersion,
	)
	if err != nil {
		return mapWriteError("update project", err)
	}
	return checkVersioned(ctx, s.db, res, "projects", "project_id", project.ID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (domain.Project, error) {
	var (
		p                  domain.Project
		status             string
		department         sql.NullString
		approver           sql.NullString
		approvedAt         sql.NullTime
		rejectionReason    sql.NullString
		cancellationReason sql.NullString
	)
	if err := row.Scan(
		&p.ID, &p.Name, &p.Description, &department, &p.Period.Start, &p.Period.End,
		&p.Budget, &p.RequiredHeadcount, &p.CurrentHeadcount, &status, &p.RequesterID, &approver,
		&approvedAt, &rejectionReason, &cancellationReason, &p.CreatedAt, &p.UpdatedAt, &p.Version,
	); err != nil {
		return domain.Project{}, err
	}
	p.Status = domain.ProjectStatus(status)
	p.DepartmentID = department.String
	p.ApproverID = approver.String
	p.ApprovedAt = timePtr(approvedAt)
	p.RejectionReason = rejectionReason.String
	p.CancellationReason = cancellationReason.String
	p.Period = domain.NewDateRange(p.Period.Start, p.Period.End)
	return p, nil
}
