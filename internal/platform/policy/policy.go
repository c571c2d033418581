// Package policy loads the workflow policy document: which role each gated
// operation needs and how renewal gaps or overlaps are treated.
package policy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/staffline-labs/staffline-go/internal/domain"
	"github.com/staffline-labs/staffline-go/internal/platform/auth"
)

const SchemaV1 = "staffline.policy.v1"

const (
	RenewalModeFlag   = "flag"
	RenewalModeReject = "reject"
)

type Policy struct {
	Schema  string        `yaml:"schema"`
	Roles   Roles         `yaml:"roles"`
	Renewal RenewalPolicy `yaml:"renewal"`
}

// Roles names the minimum role for each gated operation.
type Roles struct {
	Editor    auth.Role `yaml:"editor"`
	Approver  auth.Role `yaml:"approver"`
	Cancel    auth.Role `yaml:"cancel"`
	Contracts auth.Role `yaml:"contracts"`
}

// RenewalPolicy decides what happens when a renewal does not start the day
// after its predecessor ends.
type RenewalPolicy struct {
	Mode           string `yaml:"mode"`
	MaxGapDays     int    `yaml:"max_gap_days"`
	MaxOverlapDays int    `yaml:"max_overlap_days"`
}

func Default() Policy {
	return Policy{
		Schema: SchemaV1,
		Roles: Roles{
			Editor:    auth.RoleApprover,
			Approver:  auth.RoleApprover,
			Cancel:    auth.RoleAdmin,
			Contracts: auth.RoleApprover,
		},
		Renewal: RenewalPolicy{Mode: RenewalModeFlag},
	}
}

// Parse overlays the document on Default, so omitted sections keep their defaults.
func Parse(input []byte) (Policy, error) {
	p := Default()
	if err := yaml.Unmarshal(input, &p); err != nil {
		return Policy{}, fmt.Errorf("decode policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Load reads the policy file; an empty path yields Default.
func Load(path string) (Policy, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy: %w", err)
	}
	return Parse(data)
}

func (p Policy) Validate() error {
	if strings.TrimSpace(p.Schema) != SchemaV1 {
		return fmt.Errorf("policy.schema must be %q", SchemaV1)
	}
	for name, role := range map[string]auth.Role{
		"editor":    p.Roles.Editor,
		"approver":  p.Roles.Approver,
		"cancel":    p.Roles.Cancel,
		"contracts": p.Roles.Contracts,
	} {
		if !role.Valid() {
			return fmt.Errorf("policy.roles.%s unsupported: %q", name, role)
		}
	}
	if !p.Roles.Approver.AtLeast(auth.RoleApprover) {
		return fmt.Errorf("policy.roles.approver must be approver or admin")
	}
	return p.Renewal.Validate()
}

func (r RenewalPolicy) Validate() error {
	switch strings.ToLower(strings.TrimSpace(r.Mode)) {
	case RenewalModeFlag, RenewalModeReject:
	default:
		return fmt.Errorf("policy.renewal.mode unsupported: %q", r.Mode)
	}
	if r.MaxGapDays < 0 {
		return fmt.Errorf("policy.renewal.max_gap_days must be >= 0")
	}
	if r.MaxOverlapDays < 0 {
		return fmt.Errorf("policy.renewal.max_overlap_days must be >= 0")
	}
	return nil
}

// Assess marks continuity beyond the tolerated gap or overlap as flagged. In
// reject mode a flagged renewal is returned with a validation error.
func (r RenewalPolicy) Assess(op string, c domain.RenewalContinuity) (domain.RenewalContinuity, error) {
	switch c.Kind {
	case domain.ContinuityGap:
		c.Flagged = c.Days > r.MaxGapDays
	case domain.ContinuityOverlap:
		c.Flagged = c.Days > r.MaxOverlapDays
	default:
		c.Flagged = false
	}
	if c.Flagged && strings.EqualFold(strings.TrimSpace(r.Mode), RenewalModeReject) {
		return c, domain.ValidationError(op, "period", fmt.Sprintf("renewal leaves a %d day %s", c.Days, c.Kind))
	}
	return c, nil
}
