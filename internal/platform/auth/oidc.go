package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const (
	loginFlowCookie = "staffline_login"
	loginFlowTTL    = 10 * time.Minute
	exchangeTimeout = 10 * time.Second
)

// OIDCAuthenticator verifies ID tokens from the Authorization header or the
// session cookie, and serves the browser login flow when a client secret and
// redirect URL are configured.
type OIDCAuthenticator struct {
	cfg      Config
	verifier *oidc.IDTokenVerifier
	oauth    oauth2.Config
}

func NewOIDCAuthenticator(ctx context.Context, cfg Config) (*OIDCAuthenticator, error) {
	if cfg.Mode != ModeOIDC {
		return nil, fmt.Errorf("auth mode must be oidc (got %q)", cfg.Mode)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc provider: %w", err)
	}
	return &OIDCAuthenticator{
		cfg:      cfg,
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.OIDCClientID}),
		oauth: oauth2.Config{
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.OIDCRedirectURL,
			Scopes:       cfg.OIDCScopes,
		},
	}, nil
}

func (a *OIDCAuthenticator) Authenticate(ctx context.Context, r *http.Request) (Identity, error) {
	raw := bearerToken(r)
	if raw == "" {
		raw = cookieValue(r, a.cfg.SessionCookieName)
	}
	if raw == "" {
		return Identity{}, ErrUnauthenticated
	}
	token, err := a.verifier.Verify(ctx, raw)
	if err != nil {
		return Identity{}, fmt.Errorf("verify id token: %w", err)
	}
	var claims map[string]any
	if err := token.Claims(&claims); err != nil {
		return Identity{}, fmt.Errorf("decode claims: %w", err)
	}
	return identityFromClaims(claims, a.cfg), nil
}

// loginFlow is the state kept in a short-lived cookie between /auth/login and /auth/callback.
type loginFlow struct {
	State    string `json:"s"`
	Verifier string `json:"v"`
	Nonce    string `json:"n"`
	ReturnTo string `json:"r"`
}

func newLoginFlow(returnTo string) (loginFlow, error) {
	var flow loginFlow
	for _, dst := range []*string{&flow.State, &flow.Verifier, &flow.Nonce} {
		v, err := randomToken(32)
		if err != nil {
			return loginFlow{}, err
		}
		*dst = v
	}
	flow.ReturnTo = localPath(returnTo)
	return flow, nil
}

func (f loginFlow) encode() (string, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func decodeLoginFlow(raw string) (loginFlow, error) {
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return loginFlow{}, err
	}
	var flow loginFlow
	if err := json.Unmarshal(b, &flow); err != nil {
		return loginFlow{}, err
	}
	if flow.State == "" || flow.Verifier == "" || flow.Nonce == "" {
		return loginFlow{}, errors.New("incomplete login flow")
	}
	return flow, nil
}

// Register mounts the login, callback, logout and session endpoints under /auth.
func (a *OIDCAuthenticator) Register(mux *http.ServeMux) {
	if a.cfg.LoginEnabled() {
		mux.HandleFunc("GET /auth/login", a.login)
		mux.HandleFunc("GET /auth/callback", a.callback)
	}
	mux.HandleFunc("POST /auth/logout", a.logout)
	mux.HandleFunc("GET /auth/session", a.session)
}

func (a *OIDCAuthenticator) login(w http.ResponseWriter, r *http.Request) {
	flow, err := newLoginFlow(r.URL.Query().Get("return_to"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal_error"})
		return
	}
	encoded, err := flow.encode()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal_error"})
		return
	}
	a.setCookie(w, loginFlowCookie, encoded, loginFlowTTL)

	sum := sha256.Sum256([]byte(flow.Verifier))
	target := a.oauth.AuthCodeURL(
		flow.State,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("code_challenge", base64.RawURLEncoding.EncodeToString(sum[:])),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("nonce", flow.Nonce),
	)
	http.Redirect(w, r, target, http.StatusFound)
}

func (a *OIDCAuthenticator) callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing_code_or_state"})
		return
	}
	flow, err := decodeLoginFlow(cookieValue(r, loginFlowCookie))
	if err != nil || flow.State != state {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_state"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), exchangeTimeout)
	defer cancel()

	token, err := a.oauth.Exchange(ctx, code, oauth2.SetAuthURLParam("code_verifier", flow.Verifier))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "token_exchange_failed"})
		return
	}
	rawIDToken, _ := token.Extra("id_token").(string)
	if rawIDToken == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "missing_id_token"})
		return
	}
	idToken, err := a.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid_id_token"})
		return
	}
	if idToken.Nonce == "" || idToken.Nonce != flow.Nonce {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid_nonce"})
		return
	}

	a.setCookie(w, a.cfg.SessionCookieName, rawIDToken, a.cfg.SessionCookieMaxAge)
	a.setCookie(w, loginFlowCookie, "", -1)
	http.Redirect(w, r, flow.ReturnTo, http.StatusFound)
}

func (a *OIDCAuthenticator) logout(w http.ResponseWriter, r *http.Request) {
	a.setCookie(w, a.cfg.SessionCookieName, "", -1)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (a *OIDCAuthenticator) session(w http.ResponseWriter, r *http.Request) {
	identity, err := a.Authenticate(r.Context(), r)
	if err != nil {
		reason := "invalid_token"
		if errors.Is(err, ErrUnauthenticated) {
			reason = "unauthorized"
		}
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": reason})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subject": identity.Subject,
		"email":   identity.Email,
		"roles":   identity.Roles,
	})
}

// setCookie writes an HttpOnly cookie; a negative ttl expires it.
func (a *OIDCAuthenticator) setCookie(w http.ResponseWriter, name, value string, ttl time.Duration) {
	maxAge := int(ttl.Seconds())
	if ttl < 0 {
		maxAge = -1
	}
	sameSite := http.SameSiteLaxMode
	switch strings.ToLower(strings.TrimSpace(a.cfg.SessionCookieSameSite)) {
	case "strict":
		sameSite = http.SameSiteStrictMode
	case "none":
		sameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   a.cfg.SessionCookieSecure,
		SameSite: sameSite,
	})
}

func identityFromClaims(claims map[string]any, cfg Config) Identity {
	identity := Identity{}
	identity.Subject, _ = claims["sub"].(string)
	identity.Email, _ = claims[cfg.EmailClaim].(string)
	switch v := claims[cfg.RolesClaim].(type) {
	case string:
		identity.Roles = parseCSV(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		identity.Roles = parseCSV(strings.Join(parts, ","))
	}
	return identity
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// localPath keeps redirects on this host.
func localPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || raw == "" || u.IsAbs() || u.Host != "" {
		return "/"
	}
	if !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return "/"
	}
	return u.Path
}
