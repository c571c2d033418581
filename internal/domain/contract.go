package domain

import (
	"errors"
	"strings"
	"time"
)

// ContractStatus is the closed set of contract lifecycle states.
type ContractStatus string

const (
	ContractStatusActive     ContractStatus = "active"
	ContractStatusRenewed    ContractStatus = "renewed"
	ContractStatusTerminated ContractStatus = "terminated"
)

var ContractStatuses = []ContractStatus{
	ContractStatusActive,
	ContractStatusRenewed,
	ContractStatusTerminated,
}

func (s ContractStatus) Valid() bool {
	_, ok := contractTransitions[s]
	return ok
}

// ContractType is the engagement form of a staffing contract.
type ContractType string

const (
	ContractTypeTimeAndMaterials ContractType = "time_and_materials"
	ContractTypeFixedPrice       ContractType = "fixed_price"
	ContractTypeDispatch         ContractType = "dispatch"
)

func (t ContractType) Valid() bool {
	switch t {
	case ContractTypeTimeAndMaterials, ContractTypeFixedPrice, ContractTypeDispatch:
		return true
	default:
		return false
	}
}

// Contract binds one staff member to one project for a period at a rate.
type Contract struct {
	ID                 string
	ProjectID          string
	StaffID            string
	Period             DateRange
	Rate               int64
	ContractType       ContractType
	Status             ContractStatus
	Remarks            string
	OriginalContractID string
	TerminationDate    *time.Time
	TerminationReason  string
	CreatedBy          string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Version            int64
}

func (c Contract) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("contract id is required")
	}
	if strings.TrimSpace(c.ProjectID) == "" {
		return errors.New("project id is required")
	}
	if strings.TrimSpace(c.StaffID) == "" {
		return errors.New("staff id is required")
	}
	if err := c.Period.Validate(); err != nil {
		return err
	}
	if c.Rate <= 0 {
		return errors.New("rate must be positive")
	}
	if !c.ContractType.Valid() {
		return errors.New("contract type is invalid")
	}
	if !c.Status.Valid() {
		return errors.New("contract status is invalid")
	}
	terminated := c.Status == ContractStatusTerminated
	if terminated != (c.TerminationDate != nil) || terminated != (strings.TrimSpace(c.TerminationReason) != "") {
		return errors.New("termination fields must be set only while terminated")
	}
	return nil
}

// ContractDraft carries the fields of a new contract.
type ContractDraft struct {
	ProjectID    string
	StaffID      string
	Period       DateRange
	Rate         int64
	ContractType ContractType
	Remarks      string
}

// ContractChanges is a partial update of an active contract.
type ContractChanges struct {
	Period       *DateRange
	Rate         *int64
	ContractType *ContractType
	Remarks      *string
}

func (c ContractChanges) Empty() bool {
	return c.Period == nil && c.Rate == nil && c.ContractType == nil && c.Remarks == nil
}

func (c ContractChanges) Apply(contract Contract) Contract {
	if c.Period != nil {
		contract.Period = NewDateRange(c.Period.Start, c.Period.End)
	}
	if c.Rate != nil {
		contract.Rate = *c.Rate
	}
	if c.ContractType != nil {
		contract.ContractType = *c.ContractType
	}
	if c.Remarks != nil {
		contract.Remarks = strings.TrimSpace(*c.Remarks)
	}
	return contract
}

// Staff is the minimal view of an externally managed staff member.
type Staff struct {
	ID          string
	PartnerID   string
	DisplayName string
	Available   bool
}
