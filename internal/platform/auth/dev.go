package auth

import (
	"context"
	"net/http"
)

type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (Identity, error)
}

// DevAuthenticator returns a fixed identity. An X-Staffline-Subject header,
// when present, overrides the subject so several users can be exercised locally.
type DevAuthenticator struct {
	identity Identity
}

func NewDevAuthenticator(cfg Config) *DevAuthenticator {
	return &DevAuthenticator{
		identity: Identity{
			Subject: cfg.DevSubject,
			Email:   cfg.DevEmail,
			Roles:   cfg.DevRoles,
		},
	}
}

func (a *DevAuthenticator) Authenticate(ctx context.Context, r *http.Request) (Identity, error) {
	identity := a.identity
	if r != nil {
		if subject := r.Header.Get(HeaderSubject); subject != "" {
			identity.Subject = subject
			identity.Email = ""
		}
	}
	return identity, nil
}
