package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/staffline-labs/staffline-go/internal/domain"
	"github.com/staffline-labs/staffline-go/internal/repo"
)

const contractColumns = `contract_id, project_id, staff_id, start_date, end_date, rate,
	contract_type, status, remarks, original_contract_id, termination_date,
	termination_reason, created_by, created_at, updated_at, version`

type ContractStore struct {
	db DB
}

func NewContractStore(db DB) *ContractStore {
	if db == nil {
		return nil
	}
	return &ContractStore{db: db}
}

func (s *ContractStore) CreateContract(ctx context.Context, contract domain.Contract) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("contract store not initialized")
	}
	if err := contract.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO contracts (`+contractColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,1)`,
		strings.TrimSpace(contract.ID),
		strings.TrimSpace(contract.ProjectID),
		strings.TrimSpace(contract.StaffID),
		contract.Period.Start,
		contract.Period.End,
		contract.Rate,
		string(contract.ContractType),
		string(contract.Status),
		strings.TrimSpace(contract.Remarks),
		nullString(contract.OriginalContractID),
		nullTime(contract.TerminationDate),
		nullString(contract.TerminationReason),
		strings.TrimSpace(contract.CreatedBy),
		normalizeTime(contract.CreatedAt),
		normalizeTime(contract.UpdatedAt),
	)
	return mapWriteError("insert contract", err)
}

func (s *ContractStore) GetContract(ctx context.Context, id string) (domain.Contract, error) {
	if s == nil || s.db == nil {
		return domain.Contract{}, fmt.Errorf("contract store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Contract{}, fmt.Errorf("contract id is required")
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+contractColumns+` FROM contracts WHERE contract_id = $1`, id)
	c, err := scanContract(row)
	if err != nil {
		return domain.Contract{}, handleNotFound(err)
	}
	return c, nil
}

func (s *ContractStore) ListContracts(ctx context.Context, filter repo.ContractFilter) ([]domain.Contract, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("contract store not initialized")
	}
	query, args := buildContractListQuery(filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Contract, 0)
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	return out, nil
}

func buildContractListQuery(filter repo.ContractFilter) (string, []any) {
	var w whereBuilder
	w.eq("project_id", filter.ProjectID)
	w.eq("staff_id", filter.StaffID)
	w.eq("status", string(filter.Status))
	return w.build(`SELECT `+contractColumns+` FROM contracts`, "start_date, contract_id", filter.Limit)
}

func (s *ContractStore) SaveContract(ctx context.Context, contract domain.Contract, expectedVersion int64) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("contract store not initialized")
	}
	if err := contract.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE contracts SET
			start_date = $2,
			end_date = $3,
			rate = $4,
			contract_type = $5,
			status = $6,
			remarks = $7,
			termination_date = $8,
			termination_reason = $9,
			updated_at = $10,
			version = version + 1
		 WHERE contract_id = $1 AND version = $11`,
		strings.TrimSpace(contract.ID),
		contract.Period.Start,
		contract.Period.End,
		contract.Rate,
		string(contract.ContractType),
		string(contract.Status),
		strings.TrimSpace(contract.Remarks),
		nullTime(contract.TerminationDate),
		nullString(contract.TerminationReason),
		normalizeTime(contract.UpdatedAt),
		expectedVersion,
	)
	if err != nil {
		return mapWriteError("update contract", err)
	}
	return checkVersioned(ctx, s.db, res, "contracts", "contract_id", contract.ID)
}

func (s *ContractStore) CountContracts(ctx context.Context, projectID string) (domain.ContractCounts, error) {
	if s == nil || s.db == nil {
		return domain.ContractCounts{}, fmt.Errorf("contract store not initialized")
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT status, COUNT(*) FROM contracts WHERE project_id = $1 GROUP BY status`,
		strings.TrimSpace(projectID),
	)
	if err != nil {
		return domain.ContractCounts{}, fmt.Errorf("count contracts: %w", err)
	}
	defer rows.Close()

	var counts domain.ContractCounts
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return domain.ContractCounts{}, fmt.Errorf("scan contract count: %w", err)
		}
		switch domain.ContractStatus(status) {
		case domain.ContractStatusActive:
			counts.Active = n
		case domain.ContractStatusRenewed:
			counts.Renewed = n
		case domain.ContractStatusTerminated:
			counts.Terminated = n
		}
	}
	if err := rows.Err(); err != nil {
		return domain.ContractCounts{}, fmt.Errorf("count contracts: %w", err)
	}
	return counts, nil
}

func scanContract(row rowScanner) (domain.Contract, error) {
	var (
		c               domain.Contract
		contractType    string
		status          string
		original        sql.NullString
		terminationDate sql.NullTime
		reason          sql.NullString
	)
	if err := row.Scan(
		&c.ID, &c.ProjectID, &c.StaffID, &c.Period.Start, &c.Period.End, &c.Rate,
		&contractType, &status, &c.Remarks, &original, &terminationDate,
		&reason, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt, &c.Version,
	); err != nil {
		return domain.Contract{}, err
	}
	c.ContractType = domain.ContractType(contractType)
	c.Status = domain.ContractStatus(status)
	c.OriginalContractID = original.String
	c.TerminationDate = timePtr(terminationDate)
	c.TerminationReason = reason.String
	c.Period = domain.NewDateRange(c.Period.Start, c.Period.End)
	return c, nil
}
