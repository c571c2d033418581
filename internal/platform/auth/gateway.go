package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Headers a fronting gateway sets after it has authenticated the caller.
const (
	HeaderSubject = "X-Staffline-Subject"
	HeaderEmail   = "X-Staffline-Email"
	HeaderRoles   = "X-Staffline-Roles"

	HeaderGatewayTimestamp = "X-Staffline-Auth-Ts"
	HeaderGatewaySignature = "X-Staffline-Auth-Sig"
)

// SignedHeaders is the signed portion of a gateway-forwarded request.
type SignedHeaders struct {
	Timestamp string
	Method    string
	Path      string
	RequestID string
	Subject   string
	Email     string
	Roles     string
}

func (h SignedHeaders) canonical() string {
	return strings.Join([]string{
		strings.TrimSpace(h.Timestamp),
		strings.ToUpper(strings.TrimSpace(h.Method)),
		strings.TrimSpace(h.Path),
		strings.TrimSpace(h.RequestID),
		strings.TrimSpace(h.Subject),
		strings.TrimSpace(h.Email),
		strings.TrimSpace(h.Roles),
	}, "\n")
}

// Sign returns the base64url HMAC-SHA256 of the canonical header block.
func (h SignedHeaders) Sign(secret string) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("gateway secret is required")
	}
	if strings.TrimSpace(h.Timestamp) == "" {
		return "", errors.New("timestamp is required")
	}
	mac := hmac.New(sha256.New, []byte(secret))
	if _, err := mac.Write([]byte(h.canonical())); err != nil {
		return "", fmt.Errorf("hmac: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}

func (h SignedHeaders) Verify(secret, signature string) error {
	expected, err := h.Sign(secret)
	if err != nil {
		return err
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return errors.New("signature is required")
	}
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return errors.New("invalid signature")
	}
	return nil
}

func checkSkew(ts string, now time.Time, maxSkew time.Duration) error {
	parsed, err := strconv.ParseInt(strings.TrimSpace(ts), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp: %w", err)
	}
	if maxSkew <= 0 {
		return nil
	}
	at := time.Unix(parsed, 0).UTC()
	if at.After(now.Add(maxSkew)) || at.Before(now.Add(-maxSkew)) {
		return errors.New("timestamp outside allowed skew")
	}
	return nil
}

// GatewayAuthenticator trusts identity headers signed with the shared secret.
type GatewayAuthenticator struct {
	secret  string
	maxSkew time.Duration
	now     func() time.Time
}

func NewGatewayAuthenticator(cfg Config) (*GatewayAuthenticator, error) {
	if strings.TrimSpace(cfg.GatewaySecret) == "" {
		return nil, errors.New("gateway secret is required")
	}
	return &GatewayAuthenticator{
		secret:  cfg.GatewaySecret,
		maxSkew: cfg.GatewayMaxSkew,
		now:     time.Now,
	}, nil
}

func (a *GatewayAuthenticator) Authenticate(ctx context.Context, r *http.Request) (Identity, error) {
	subject := strings.TrimSpace(r.Header.Get(HeaderSubject))
	if subject == "" {
		return Identity{}, ErrUnauthenticated
	}
	signed := SignedHeaders{
		Timestamp: r.Header.Get(HeaderGatewayTimestamp),
		Method:    r.Method,
		Path:      r.URL.Path,
		RequestID: r.Header.Get("X-Request-Id"),
		Subject:   subject,
		Email:     r.Header.Get(HeaderEmail),
		Roles:     r.Header.Get(HeaderRoles),
	}
	if strings.TrimSpace(signed.Timestamp) == "" {
		return Identity{}, errors.New("timestamp is required")
	}
	if err := checkSkew(signed.Timestamp, a.now().UTC(), a.maxSkew); err != nil {
		return Identity{}, err
	}
	if err := signed.Verify(a.secret, r.Header.Get(HeaderGatewaySignature)); err != nil {
		return Identity{}, err
	}
	return Identity{
		Subject: subject,
		Email:   strings.TrimSpace(signed.Email),
		Roles:   parseCSV(signed.Roles),
	}, nil
}
