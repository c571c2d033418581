package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"viewer":      RoleViewer,
		" Requester ": RoleRequester,
		"manager":     RoleApprover,
		"ADMIN":       RoleAdmin,
	}
	for in, want := range cases {
		got, err := ParseRole(in)
		if err != nil {
			t.Fatalf("ParseRole(%q) err=%v", in, err)
		}
		if got != want {
			t.Fatalf("ParseRole(%q)=%q, want %q", in, got, want)
		}
	}
	if _, err := ParseRole("owner"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func TestRoleAtLeast(t *testing.T) {
	if !RoleAdmin.AtLeast(RoleApprover) {
		t.Fatalf("admin should satisfy approver")
	}
	if RoleRequester.AtLeast(RoleApprover) {
		t.Fatalf("requester should not satisfy approver")
	}
	if Role("").AtLeast(RoleViewer) {
		t.Fatalf("empty role should satisfy nothing")
	}
	if got := HighestRole([]string{"viewer", "bogus", "approver"}); got != RoleApprover {
		t.Fatalf("HighestRole()=%q, want approver", got)
	}
}

func TestClaimsResolver(t *testing.T) {
	ctx := ContextWithIdentity(context.Background(), Identity{Subject: "u1", Roles: []string{"approver"}})
	role, err := ClaimsResolver{}.RoleOf(ctx, "u1")
	if err != nil || role != RoleApprover {
		t.Fatalf("RoleOf(u1)=%q err=%v", role, err)
	}
	if _, err := (ClaimsResolver{}).RoleOf(ctx, "u2"); !errors.Is(err, ErrUnknownSubject) {
		t.Fatalf("RoleOf(u2) err=%v, want ErrUnknownSubject", err)
	}
}

func TestResolverAuthorizer(t *testing.T) {
	authorize := ResolverAuthorizer(StaticRoles{"viewer-1": RoleViewer, "req-1": RoleRequester})

	get := httptest.NewRequest(http.MethodGet, "http://example.test/projects", nil)
	post := httptest.NewRequest(http.MethodPost, "http://example.test/projects", nil)

	if err := authorize(get, Identity{Subject: "viewer-1"}); err != nil {
		t.Fatalf("viewer GET err=%v", err)
	}
	if err := authorize(post, Identity{Subject: "viewer-1"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("viewer POST err=%v, want ErrForbidden", err)
	}
	if err := authorize(post, Identity{Subject: "req-1"}); err != nil {
		t.Fatalf("requester POST err=%v", err)
	}
	if err := authorize(get, Identity{Subject: "stranger"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("unknown GET err=%v, want ErrForbidden", err)
	}
}
