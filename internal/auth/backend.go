// Package auth resolves resource-owner principals before the
// authorization engine runs. The engine itself never sees credentials;
// it only receives the resolved principal.
package auth

import (
	"context"
	"errors"

	"github.com/gatehouse-dev/gatehouse/domain"
)

// ErrInvalidCredentials is returned by every backend for a failed
// authentication, regardless of whether the user was unknown or the
// password wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Backend authenticates a username/password pair against one credential
// source.
type Backend interface {
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
}

// Authenticator tries each configured backend in order until one
// resolves the principal.
type Authenticator struct {
	backends []Backend
}

func NewAuthenticator(backends ...Backend) *Authenticator {
	return &Authenticator{backends: backends}
}

// Authenticate returns the principal resolved by the first backend that
// accepts the credentials, or ErrInvalidCredentials when none does.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	for _, backend := range a.backends {
		user, err := backend.Authenticate(ctx, username, password)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, ErrInvalidCredentials) {
			return nil, err
		}
	}
	return nil, ErrInvalidCredentials
}
