package cache

import (
	"context"
	"time"
)

// TokenEntry is the cached projection of an issued access token used on
// the bearer-validation fast path.
type TokenEntry struct {
	ID         string    `json:"id"`          // Token row identifier
	TokenValue string    `json:"token_value"` // The access token string
	ClientID   string    `json:"client_id"`   // Client the token was issued to
	UserID     string    `json:"user_id"`     // User who authorized the token
	Scope      string    `json:"scope"`       // Authorized scopes
	IssuedAt   time.Time `json:"issued_at"`   // Issuance timestamp
	ExpiresAt  time.Time `json:"expires_at"`  // Expiration timestamp
}

// TokenStore caches access tokens between issuance and expiry.
// Revocation must evict the entry; a miss is answered from the durable
// repository, so the cache is never the source of truth.
type TokenStore interface {
	Set(ctx context.Context, token *TokenEntry) error
	Get(ctx context.Context, token string) (*TokenEntry, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) int
}
