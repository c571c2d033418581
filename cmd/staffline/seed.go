package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/staffline-labs/staffline-go/internal/domain"
)

const staffSeedSchemaVersion = "staffline.staff.v1"

// staffSeedDoc is the STAFFLINE_STAFF_FILE format:
//
//	schema_version: staffline.staff.v1
//	staff:
//	  - id: s-1
//	    partner_id: partner-a
//	    display_name: Sato
//	    available: true
type staffSeedDoc struct {
	SchemaVersion string `yaml:"schema_version"`
	Staff         []struct {
		ID          string `yaml:"id"`
		PartnerID   string `yaml:"partner_id"`
		DisplayName string `yaml:"display_name"`
		Available   *bool  `yaml:"available"`
	} `yaml:"staff"`
}

func parseStaffSeed(data []byte) ([]domain.Staff, error) {
	var doc staffSeedDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse staff seed: %w", err)
	}
	if strings.TrimSpace(doc.SchemaVersion) != staffSeedSchemaVersion {
		return nil, fmt.Errorf("staff seed schema_version must be %q", staffSeedSchemaVersion)
	}
	out := make([]domain.Staff, 0, len(doc.Staff))
	seen := make(map[string]struct{}, len(doc.Staff))
	for i, s := range doc.Staff {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			return nil, fmt.Errorf("staff[%d]: id is required", i)
		}
		if _, ok := seen[id]; ok {
			return nil, fmt.Errorf("staff[%d]: duplicate id %s", i, id)
		}
		seen[id] = struct{}{}
		available := true
		if s.Available != nil {
			available = *s.Available
		}
		out = append(out, domain.Staff{
			ID:          id,
			PartnerID:   strings.TrimSpace(s.PartnerID),
			DisplayName: strings.TrimSpace(s.DisplayName),
			Available:   available,
		})
	}
	return out, nil
}

func loadStaffSeed(path string) ([]domain.Staff, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("staff seed path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read staff seed: %w", err)
	}
	return parseStaffSeed(data)
}
