package policy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/staffline-labs/staffline-go/internal/domain"
	"github.com/staffline-labs/staffline-go/internal/platform/auth"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() err=%v", err)
	}
}

func TestParseOverlaysDefaults(t *testing.T) {
	p, err := Parse([]byte(`
schema: staffline.policy.v1
roles:
  editor: requester
renewal:
  mode: reject
  max_gap_days: 3
`))
	if err != nil {
		t.Fatalf("Parse() err=%v", err)
	}
	if p.Roles.Editor != auth.RoleRequester {
		t.Fatalf("Editor=%q, want requester", p.Roles.Editor)
	}
	if p.Roles.Cancel != auth.RoleAdmin {
		t.Fatalf("Cancel=%q, want admin default", p.Roles.Cancel)
	}
	if p.Renewal.Mode != RenewalModeReject || p.Renewal.MaxGapDays != 3 {
		t.Fatalf("Renewal=%+v", p.Renewal)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"schema":          "schema: other\n",
		"role":            "schema: staffline.policy.v1\nroles:\n  cancel: owner\n",
		"weak approver":   "schema: staffline.policy.v1\nroles:\n  approver: requester\n",
		"mode":            "schema: staffline.policy.v1\nrenewal:\n  mode: warn\n",
		"negative gap":    "schema: staffline.policy.v1\nrenewal:\n  max_gap_days: -1\n",
		"not yaml at all": "schema: [",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoad(t *testing.T) {
	p, err := Load("")
	if err != nil || p.Renewal.Mode != RenewalModeFlag {
		t.Fatalf("Load(\"\")=%+v err=%v", p, err)
	}
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("schema: staffline.policy.v1\nrenewal:\n  max_overlap_days: 5\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	p, err = Load(path)
	if err != nil {
		t.Fatalf("Load() err=%v", err)
	}
	if p.Renewal.MaxOverlapDays != 5 {
		t.Fatalf("MaxOverlapDays=%d, want 5", p.Renewal.MaxOverlapDays)
	}
}

func TestRenewalAssess(t *testing.T) {
	flag := RenewalPolicy{Mode: RenewalModeFlag, MaxGapDays: 2}

	got, err := flag.Assess("renew", domain.RenewalContinuity{Kind: domain.ContinuityContiguous})
	if err != nil || got.Flagged {
		t.Fatalf("contiguous: %+v err=%v", got, err)
	}
	got, err = flag.Assess("renew", domain.RenewalContinuity{Kind: domain.ContinuityGap, Days: 2})
	if err != nil || got.Flagged {
		t.Fatalf("tolerated gap: %+v err=%v", got, err)
	}
	got, err = flag.Assess("renew", domain.RenewalContinuity{Kind: domain.ContinuityGap, Days: 10})
	if err != nil || !got.Flagged {
		t.Fatalf("wide gap: %+v err=%v", got, err)
	}
	got, err = flag.Assess("renew", domain.RenewalContinuity{Kind: domain.ContinuityOverlap, Days: 1})
	if err != nil || !got.Flagged {
		t.Fatalf("overlap: %+v err=%v", got, err)
	}

	reject := RenewalPolicy{Mode: RenewalModeReject}
	if _, err := reject.Assess("renew", domain.RenewalContinuity{Kind: domain.ContinuityGap, Days: 1}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("reject gap err=%v, want validation", err)
	}
	if _, err := reject.Assess("renew", domain.RenewalContinuity{Kind: domain.ContinuityContiguous}); err != nil {
		t.Fatalf("reject contiguous err=%v", err)
	}
}
