package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/staffline-labs/staffline-go/internal/platform/env"
)

type Mode string

const (
	ModeOIDC    Mode = "oidc"
	ModeGateway Mode = "gateway"
	ModeDev     Mode = "dev"
)

// RoleSource selects where RoleOf looks up a user's role.
type RoleSource string

const (
	RoleSourceFile     RoleSource = "file"
	RoleSourcePostgres RoleSource = "postgres"
	RoleSourceClaims   RoleSource = "claims"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type Config struct {
	Mode Mode

	RoleSource RoleSource
	RoleFile   string

	RolesClaim string
	EmailClaim string

	SessionCookieName     string
	SessionCookieSecure   bool
	SessionCookieMaxAge   time.Duration
	SessionCookieSameSite string

	OIDCIssuerURL    string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string
	OIDCScopes       []string

	GatewaySecret  string
	GatewayMaxSkew time.Duration

	DevSubject string
	DevEmail   string
	DevRoles   []string
}

func ConfigFromEnv() (Config, error) {
	sessionCookieSecure, err := env.Bool("AUTH_SESSION_COOKIE_SECURE", true)
	if err != nil {
		return Config{}, err
	}
	maxAgeSeconds, err := env.Int("AUTH_SESSION_MAX_AGE_SECONDS", 3600)
	if err != nil {
		return Config{}, err
	}
	maxSkew, err := env.Duration("AUTH_GATEWAY_MAX_SKEW", 5*time.Minute)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Mode:                  Mode(strings.ToLower(strings.TrimSpace(env.String("AUTH_MODE", string(ModeOIDC))))),
		RoleSource:            RoleSource(strings.ToLower(strings.TrimSpace(env.String("AUTH_ROLE_SOURCE", string(RoleSourceFile))))),
		RoleFile:              env.String("AUTH_ROLE_FILE", "roles.yaml"),
		RolesClaim:            env.String("AUTH_ROLES_CLAIM", "roles"),
		EmailClaim:            env.String("AUTH_EMAIL_CLAIM", "email"),
		SessionCookieName:     env.String("AUTH_SESSION_COOKIE_NAME", "staffline_session"),
		SessionCookieSecure:   sessionCookieSecure,
		SessionCookieMaxAge:   time.Duration(maxAgeSeconds) * time.Second,
		SessionCookieSameSite: env.String("AUTH_SESSION_COOKIE_SAMESITE", "Lax"),
		OIDCIssuerURL:         env.String("OIDC_ISSUER_URL", ""),
		OIDCClientID:          env.String("OIDC_CLIENT_ID", ""),
		OIDCClientSecret:      env.String("OIDC_CLIENT_SECRET", ""),
		OIDCRedirectURL:       env.String("OIDC_REDIRECT_URL", ""),
		OIDCScopes:            parseScopes(env.String("OIDC_SCOPES", "openid profile email")),
		GatewaySecret:         env.String("STAFFLINE_INTERNAL_AUTH_SECRET", ""),
		GatewayMaxSkew:        maxSkew,
		DevSubject:            env.String("DEV_AUTH_SUBJECT", "dev-user"),
		DevEmail:              env.String("DEV_AUTH_EMAIL", "dev-user@example.local"),
		DevRoles:              parseCSV(env.String("DEV_AUTH_ROLES", "admin")),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.RolesClaim) == "" {
		return errors.New("AUTH_ROLES_CLAIM is required")
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		return errors.New("AUTH_SESSION_COOKIE_NAME is required")
	}
	if c.SessionCookieMaxAge <= 0 {
		return errors.New("AUTH_SESSION_MAX_AGE_SECONDS must be positive")
	}

	switch c.RoleSource {
	case RoleSourceFile:
		if strings.TrimSpace(c.RoleFile) == "" {
			return errors.New("AUTH_ROLE_FILE is required when AUTH_ROLE_SOURCE=file")
		}
	case RoleSourcePostgres, RoleSourceClaims:
	default:
		return fmt.Errorf("AUTH_ROLE_SOURCE must be one of: file, postgres, claims (got %q)", c.RoleSource)
	}

	switch c.Mode {
	case ModeOIDC:
		if strings.TrimSpace(c.OIDCIssuerURL) == "" {
			return errors.New("OIDC_ISSUER_URL is required when AUTH_MODE=oidc")
		}
		if strings.TrimSpace(c.OIDCClientID) == "" {
			return errors.New("OIDC_CLIENT_ID is required when AUTH_MODE=oidc")
		}
	case ModeGateway:
		if strings.TrimSpace(c.GatewaySecret) == "" {
			return errors.New("STAFFLINE_INTERNAL_AUTH_SECRET is required when AUTH_MODE=gateway")
		}
	case ModeDev:
		if strings.TrimSpace(c.DevSubject) == "" {
			return errors.New("DEV_AUTH_SUBJECT is required when AUTH_MODE=dev")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be one of: oidc, gateway, dev (got %q)", c.Mode)
	}
	return nil
}

// LoginEnabled reports whether the browser login endpoints can be served.
func (c Config) LoginEnabled() bool {
	return c.Mode == ModeOIDC && strings.TrimSpace(c.OIDCClientSecret) != "" && strings.TrimSpace(c.OIDCRedirectURL) != ""
}

func parseScopes(value string) []string {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return []string{"openid", "profile", "email"}
	}
	return fields
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		item := strings.ToLower(strings.TrimSpace(part))
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
