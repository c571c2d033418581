package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Role string

const (
	RoleViewer    Role = "viewer"
	RoleRequester Role = "requester"
	RoleApprover  Role = "approver"
	RoleAdmin     Role = "admin"
)

var (
	ErrForbidden      = errors.New("forbidden")
	ErrUnknownSubject = errors.New("unknown subject")
)

var roleLevels = map[Role]int{
	RoleViewer:    1,
	RoleRequester: 2,
	RoleApprover:  3,
	RoleAdmin:     4,
}

// ParseRole accepts the canonical names plus "manager" as an alias for approver.
func ParseRole(value string) (Role, error) {
	v := Role(strings.ToLower(strings.TrimSpace(value)))
	if v == "manager" {
		return RoleApprover, nil
	}
	if _, ok := roleLevels[v]; !ok {
		return "", fmt.Errorf("unknown role %q", value)
	}
	return v, nil
}

func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// AtLeast reports whether r grants everything required grants.
func (r Role) AtLeast(required Role) bool {
	have, ok := roleLevels[r]
	if !ok {
		return false
	}
	need, ok := roleLevels[required]
	if !ok {
		return false
	}
	return have >= need
}

// HighestRole returns the strongest known role in roles, or "" when none is known.
func HighestRole(roles []string) Role {
	var best Role
	for _, raw := range roles {
		role, err := ParseRole(raw)
		if err != nil {
			continue
		}
		if best == "" || roleLevels[role] > roleLevels[best] {
			best = role
		}
	}
	return best
}

func HasAtLeast(roles []string, required Role) bool {
	return HighestRole(roles).AtLeast(required)
}

func RequiredRoleForRequest(r *http.Request) Role {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return RoleViewer
	default:
		return RoleRequester
	}
}

// RoleResolver answers roleOf(userID) for the workflow guards.
type RoleResolver interface {
	RoleOf(ctx context.Context, userID string) (Role, error)
}

// ClaimsResolver trusts the roles carried by the authenticated identity. It
// only answers for the caller itself; other subjects are unknown.
type ClaimsResolver struct{}

func (ClaimsResolver) RoleOf(ctx context.Context, userID string) (Role, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok || strings.TrimSpace(userID) == "" || identity.Subject != strings.TrimSpace(userID) {
		return "", ErrUnknownSubject
	}
	role := HighestRole(identity.Roles)
	if role == "" {
		return "", ErrUnknownSubject
	}
	return role, nil
}

// ResolverAuthorizer gates requests by method using the resolved role of the caller.
func ResolverAuthorizer(resolver RoleResolver) AuthorizeFunc {
	return func(r *http.Request, identity Identity) error {
		if resolver == nil {
			return fmt.Errorf("%w: role resolver not configured", ErrForbidden)
		}
		ctx := ContextWithIdentity(r.Context(), identity)
		role, err := resolver.RoleOf(ctx, identity.Subject)
		if err != nil {
			if errors.Is(err, ErrUnknownSubject) {
				return fmt.Errorf("%w: %v", ErrForbidden, err)
			}
			return fmt.Errorf("resolve role: %w", err)
		}
		if !role.AtLeast(RequiredRoleForRequest(r)) {
			return ErrForbidden
		}
		return nil
	}
}
