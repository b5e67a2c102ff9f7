package auth

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/gatehouse-dev/gatehouse/domain"
)

// DirectoryBackend is a directory-service (LDAP-style) authentication
// backend. The bind logic is not implemented; the type exists so a
// deployment can slot a directory between the local store and the
// chain without touching the engines.
type DirectoryBackend struct {
	serverURL string
}

func NewDirectoryBackend(serverURL string) *DirectoryBackend {
	return &DirectoryBackend{serverURL: serverURL}
}

func (b *DirectoryBackend) Authenticate(ctx context.Context, username, _ string) (*domain.User, error) {
	log.Ctx(ctx).Debug().
		Str("server", b.serverURL).
		Str("username", username).
		Msg("directory backend consulted")

	return nil, ErrInvalidCredentials
}
