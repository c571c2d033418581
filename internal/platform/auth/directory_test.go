package auth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseDirectory(t *testing.T) {
	resolver, err := ParseDirectory([]byte(`
schema_version: staffline.roles.v1
users:
  u1: requester
  u2: manager
  root: admin
`))
	if err != nil {
		t.Fatalf("ParseDirectory() err=%v", err)
	}
	ctx := context.Background()
	if role, err := resolver.RoleOf(ctx, "u2"); err != nil || role != RoleApprover {
		t.Fatalf("RoleOf(u2)=%q err=%v", role, err)
	}
	if _, err := resolver.RoleOf(ctx, "nobody"); !errors.Is(err, ErrUnknownSubject) {
		t.Fatalf("RoleOf(nobody) err=%v, want ErrUnknownSubject", err)
	}
}

func TestParseDirectory_DefaultRole(t *testing.T) {
	resolver, err := ParseDirectory([]byte(`
schema_version: staffline.roles.v1
default_role: viewer
users:
  u1: requester
`))
	if err != nil {
		t.Fatalf("ParseDirectory() err=%v", err)
	}
	if role, err := resolver.RoleOf(context.Background(), "someone"); err != nil || role != RoleViewer {
		t.Fatalf("RoleOf(someone)=%q err=%v", role, err)
	}
}

func TestParseDirectory_Invalid(t *testing.T) {
	cases := map[string]string{
		"empty":        "",
		"wrong schema": "schema_version: v0\nusers: {u1: admin}\n",
		"bad role":     "schema_version: staffline.roles.v1\nusers: {u1: owner}\n",
		"bad default":  "schema_version: staffline.roles.v1\ndefault_role: root\n",
	}
	for name, doc := range cases {
		if _, err := ParseDirectory([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.yaml")
	if err := os.WriteFile(path, []byte("schema_version: staffline.roles.v1\nusers:\n  u1: admin\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	resolver, err := LoadDirectory(path)
	if err != nil {
		t.Fatalf("LoadDirectory() err=%v", err)
	}
	if role, _ := resolver.RoleOf(context.Background(), "u1"); role != RoleAdmin {
		t.Fatalf("RoleOf(u1)=%q, want admin", role)
	}
}
