package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const DirectorySchemaVersion = "staffline.roles.v1"

// Directory is a static role assignment loaded from YAML:
//
//	schema_version: staffline.roles.v1
//	users:
//	  u1: requester
//	  u2: approver
type Directory struct {
	roles map[string]Role
}

type directoryDoc struct {
	SchemaVersion string            `yaml:"schema_version"`
	DefaultRole   string            `yaml:"default_role"`
	Users         map[string]string `yaml:"users"`
}

type directoryWithDefault struct {
	Directory
	fallback Role
}

func ParseDirectory(data []byte) (RoleResolver, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.New("role directory is empty")
	}
	var doc directoryDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse role directory: %w", err)
	}
	if strings.TrimSpace(doc.SchemaVersion) != DirectorySchemaVersion {
		return nil, fmt.Errorf("role directory schema_version must be %q", DirectorySchemaVersion)
	}

	dir := Directory{roles: make(map[string]Role, len(doc.Users))}
	for user, raw := range doc.Users {
		user = strings.TrimSpace(user)
		if user == "" {
			return nil, errors.New("role directory has an empty user id")
		}
		role, err := ParseRole(raw)
		if err != nil {
			return nil, fmt.Errorf("user %s: %w", user, err)
		}
		dir.roles[user] = role
	}

	if strings.TrimSpace(doc.DefaultRole) == "" {
		return dir, nil
	}
	fallback, err := ParseRole(doc.DefaultRole)
	if err != nil {
		return nil, fmt.Errorf("default_role: %w", err)
	}
	return directoryWithDefault{Directory: dir, fallback: fallback}, nil
}

func LoadDirectory(path string) (RoleResolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read role directory: %w", err)
	}
	return ParseDirectory(data)
}

func (d Directory) RoleOf(ctx context.Context, userID string) (Role, error) {
	role, ok := d.roles[strings.TrimSpace(userID)]
	if !ok {
		return "", ErrUnknownSubject
	}
	return role, nil
}

func (d directoryWithDefault) RoleOf(ctx context.Context, userID string) (Role, error) {
	role, err := d.Directory.RoleOf(ctx, userID)
	if errors.Is(err, ErrUnknownSubject) && strings.TrimSpace(userID) != "" {
		return d.fallback, nil
	}
	return role, err
}

// StaticRoles is a fixed assignment, handy for dev mode and tests.
type StaticRoles map[string]Role

func (s StaticRoles) RoleOf(ctx context.Context, userID string) (Role, error) {
	role, ok := s[strings.TrimSpace(userID)]
	if !ok {
		return "", ErrUnknownSubject
	}
	return role, nil
}
