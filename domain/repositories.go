package domain

import (
	"context"
	"time"
)

// AuthCodeRepository is the durable, single-use store for authorization
// codes. Implementations must make ConsumeAuthCode atomic: two
// concurrent consumers of the same code must observe exactly one
// success and one ErrNotFound, never a partial state.
type AuthCodeRepository interface {
	// SaveAuthCode persists a freshly issued code. A colliding code
	// value returns ErrDuplicate.
	SaveAuthCode(ctx context.Context, code *AuthCode) error

	// ConsumeAuthCode atomically reads and deletes the code scoped to
	// the given client. A code that was never issued, already redeemed,
	// or deleted returns ErrNotFound.
	ConsumeAuthCode(ctx context.Context, clientID, code string) (*AuthCode, error)

	// DeleteAuthCode removes a code without redeeming it (deny/cancel
	// path). Deleting an absent code is a no-op.
	DeleteAuthCode(ctx context.Context, code string) error

	// DeleteExpiredAuthCodes garbage-collects codes past their expiry.
	DeleteExpiredAuthCodes(ctx context.Context) error
}

// TokenRepository is the durable store for issued token pairs. Rows are
// only ever inserted and revoked; revocation is monotonic.
type TokenRepository interface {
	StoreToken(ctx context.Context, token *Token) error

	// GetByAccessToken returns the row for an access token value,
	// revoked or not; callers check the flags.
	GetByAccessToken(ctx context.Context, accessToken string) (*Token, error)

	// GetByRefreshToken returns the row for a refresh token value,
	// revoked or not.
	GetByRefreshToken(ctx context.Context, refreshToken string) (*Token, error)

	// RevokeByRefreshToken atomically flips a live row to revoked.
	// Unknown values and rows that are already revoked both return
	// ErrNotFound, so concurrent callers racing on the same row see
	// exactly one success.
	RevokeByRefreshToken(ctx context.Context, refreshToken string) error

	// RevokeByAccessToken is the access-token analogue of
	// RevokeByRefreshToken, with the same consume semantics.
	RevokeByAccessToken(ctx context.Context, accessToken string) error

	// DeleteExpiredRevoked prunes rows that are both revoked and past
	// their refresh expiry before the given cutoff.
	DeleteExpiredRevoked(ctx context.Context, cutoff time.Time) error
}

// UserRepository provides principal lookup for the authentication
// backends and startup seeding.
type UserRepository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}
