package objectstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/staffline-labs/staffline-go/internal/platform/env"
)

type Config struct {
	Endpoint    string
	AccessKey   string
	SecretKey   string
	Region      string
	UseSSL      bool
	BucketAudit string
	Prefix      string
}

func ConfigFromEnv() (Config, error) {
	useSSL, err := env.Bool("STAFFLINE_MINIO_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Endpoint:    env.String("STAFFLINE_MINIO_ENDPOINT", "localhost:9000"),
		AccessKey:   env.String("STAFFLINE_MINIO_ACCESS_KEY", "staffline"),
		SecretKey:   env.String("STAFFLINE_MINIO_SECRET_KEY", "stafflineminio"),
		Region:      env.String("STAFFLINE_MINIO_REGION", "us-east-1"),
		UseSSL:      useSSL,
		BucketAudit: env.String("STAFFLINE_MINIO_BUCKET_AUDIT", "audit"),
		Prefix:      strings.Trim(env.String("STAFFLINE_MINIO_AUDIT_PREFIX", "events"), "/"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	if strings.TrimSpace(c.AccessKey) == "" || strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("access key and secret key are required")
	}
	if strings.TrimSpace(c.Region) == "" {
		return errors.New("region is required")
	}
	if strings.TrimSpace(c.BucketAudit) == "" {
		return errors.New("audit bucket is required")
	}
	return nil
}
