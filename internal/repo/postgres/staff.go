package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/staffline-labs/staffline-go/internal/domain"
)

// StaffStore reads the staff table maintained by the partner screens.
type StaffStore struct {
	db DB
}

func NewStaffStore(db DB) *StaffStore {
	if db == nil {
		return nil
	}
	return &StaffStore{db: db}
}

func (s *StaffStore) GetStaff(ctx context.Context, id string) (domain.Staff, error) {
	if s == nil || s.db == nil {
		return domain.Staff{}, fmt.Errorf("staff store not initialized")
	}
	var (
		st      domain.Staff
		partner sql.NullString
	)
	err := s.db.QueryRowContext(
		ctx,
		`SELECT staff_id, partner_id, display_name, available FROM staff WHERE staff_id = $1`,
		strings.TrimSpace(id),
	).Scan(&st.ID, &partner, &st.DisplayName, &st.Available)
	if err != nil {
		return domain.Staff{}, handleNotFound(err)
	}
	st.PartnerID = partner.String
	return st, nil
}

// PutStaff upserts a staff row; used by seeding and tests against a live database.
func (s *StaffStore) PutStaff(ctx context.Context, st domain.Staff) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("staff store not initialized")
	}
	if strings.TrimSpace(st.ID) == "" {
		return fmt.Errorf("staff id is required")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO staff (staff_id, partner_id, display_name, available)
		 VALUES ($1,$2,$3,$4)
		 ON CONFLICT (staff_id) DO UPDATE SET
			partner_id = EXCLUDED.partner_id,
			display_name = EXCLUDED.display_name,
			available = EXCLUDED.available`,
		strings.TrimSpace(st.ID),
		nullString(st.PartnerID),
		strings.TrimSpace(st.DisplayName),
		st.Available,
	)
	return mapWriteError("upsert staff", err)
}
