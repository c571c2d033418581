package auth

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func TestSignedHeaders_Verify(t *testing.T) {
	h := SignedHeaders{
		Timestamp: "1700000000",
		Method:    "POST",
		Path:      "/projects/p-1/approve",
		RequestID: "rid-1",
		Subject:   "u2",
		Roles:     "approver",
	}
	sig, err := h.Sign("test-secret")
	if err != nil {
		t.Fatalf("Sign() err=%v", err)
	}
	if err := h.Verify("test-secret", sig); err != nil {
		t.Fatalf("Verify() err=%v", err)
	}
	tampered := h
	tampered.Subject = "u1"
	if err := tampered.Verify("test-secret", sig); err == nil {
		t.Fatalf("expected verification to fail when subject changes")
	}
	if _, err := h.Sign(""); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestCheckSkew(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	if err := checkSkew("1700000100", now, 5*time.Minute); err != nil {
		t.Fatalf("checkSkew() err=%v", err)
	}
	if err := checkSkew("1690000000", now, 5*time.Minute); err == nil {
		t.Fatalf("expected stale timestamp to be rejected")
	}
	if err := checkSkew("soon", now, 5*time.Minute); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestGatewayAuthenticator(t *testing.T) {
	authn, err := NewGatewayAuthenticator(Config{GatewaySecret: "test-secret", GatewayMaxSkew: time.Minute})
	if err != nil {
		t.Fatalf("NewGatewayAuthenticator() err=%v", err)
	}
	now := time.Unix(1700000000, 0).UTC()
	authn.now = func() time.Time { return now }

	req := httptest.NewRequest(http.MethodPost, "http://example.test/contracts", nil)
	req.Header.Set("X-Request-Id", "rid-2")
	req.Header.Set(HeaderSubject, "u2")
	req.Header.Set(HeaderEmail, "u2@example.test")
	req.Header.Set(HeaderRoles, "approver,viewer")

	ts := strconv.FormatInt(now.Unix(), 10)
	sig, err := SignedHeaders{
		Timestamp: ts,
		Method:    req.Method,
		Path:      req.URL.Path,
		RequestID: "rid-2",
		Subject:   "u2",
		Email:     "u2@example.test",
		Roles:     "approver,viewer",
	}.Sign("test-secret")
	if err != nil {
		t.Fatalf("Sign() err=%v", err)
	}
	req.Header.Set(HeaderGatewayTimestamp, ts)
	req.Header.Set(HeaderGatewaySignature, sig)

	identity, err := authn.Authenticate(req.Context(), req)
	if err != nil {
		t.Fatalf("Authenticate() err=%v", err)
	}
	if identity.Subject != "u2" || len(identity.Roles) != 2 {
		t.Fatalf("identity=%+v", identity)
	}

	req.Header.Set(HeaderGatewaySignature, "forged")
	if _, err := authn.Authenticate(req.Context(), req); err == nil {
		t.Fatalf("expected forged signature to fail")
	}
}
