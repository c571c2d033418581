package auditexport

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/staffline-labs/staffline-go/internal/platform/env"
)

const (
	ModeNone        = "none"
	ModeNDJSON      = "ndjson"
	ModeObjectStore = "objectstore"
)

// Config selects where committed audit events are exported.
type Config struct {
	Mode    string
	Breaker BreakerConfig
}

func ConfigFromEnv() (Config, error) {
	maxRequests, err := env.Int("AUDIT_ARCHIVE_BREAKER_MAX_REQUESTS", 1)
	if err != nil {
		return Config{}, err
	}
	failures, err := env.Int("AUDIT_ARCHIVE_BREAKER_FAILURES", 3)
	if err != nil {
		return Config{}, err
	}
	openTimeout, err := env.Duration("AUDIT_ARCHIVE_BREAKER_TIMEOUT", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	if maxRequests < 0 || failures < 0 {
		return Config{}, errors.New("audit archive breaker settings must be >= 0")
	}
	cfg := Config{
		Mode: strings.ToLower(strings.TrimSpace(env.String("AUDIT_EXPORT_MODE", ModeNone))),
		Breaker: BreakerConfig{
			Name:                "audit-archive",
			MaxRequests:         uint32(maxRequests),
			OpenTimeout:         openTimeout,
			ConsecutiveFailures: uint32(failures),
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModeNone, ModeNDJSON:
		return nil
	case ModeObjectStore:
		if c.Breaker.ConsecutiveFailures == 0 {
			return errors.New("AUDIT_ARCHIVE_BREAKER_FAILURES must be >= 1")
		}
		return nil
	default:
		return fmt.Errorf("AUDIT_EXPORT_MODE must be one of: none, ndjson, objectstore (got %q)", c.Mode)
	}
}
