package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/gatehouse-dev/gatehouse/domain"
)

// LocalBackend authenticates against the local user repository with
// bcrypt-hashed passwords.
type LocalBackend struct {
	users domain.UserRepository
}

func NewLocalBackend(users domain.UserRepository) *LocalBackend {
	return &LocalBackend{users: users}
}

func (b *LocalBackend) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := b.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// HashPassword hashes a plaintext password for storage.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}
