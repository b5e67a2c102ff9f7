package domain

import "time"

// Token represents an issued access/refresh token pair. Both token
// values identify the same row; Revoked flips false to true exactly
// once and never reverts. Rows are retained after revocation so a
// replayed value can still be recognized.
type Token struct {
	ID               string    `bson:"_id"                json:"id"`
	AccessToken      string    `bson:"access_token"       json:"access_token"`
	RefreshToken     string    `bson:"refresh_token"      json:"refresh_token"`
	ClientID         string    `bson:"client_id"          json:"client_id"`
	UserID           string    `bson:"user_id,omitempty"  json:"user_id,omitempty"` // empty for client-only tokens
	Scope            string    `bson:"scope,omitempty"    json:"scope,omitempty"`
	IssuedAt         time.Time `bson:"issued_at"          json:"issued_at"`
	ExpiresAt        time.Time `bson:"expires_at"         json:"expires_at"`         // access token expiry
	RefreshExpiresAt time.Time `bson:"refresh_expires_at" json:"refresh_expires_at"` // refresh token expiry
	Revoked          bool      `bson:"revoked"            json:"revoked"`
}

// AccessExpired reports whether the access half is past its expiry.
func (t *Token) AccessExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// RefreshExpired reports whether the refresh half is past its expiry.
func (t *Token) RefreshExpired(now time.Time) bool {
	return now.After(t.RefreshExpiresAt)
}

// TokenInfo is the principal/scope context a validated bearer token
// exposes to a protected resource handler.
type TokenInfo struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	UserID    string    `json:"user_id,omitempty"`
	Scope     string    `json:"scope,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Info projects the token row into its resource-facing view.
func (t *Token) Info() *TokenInfo {
	return &TokenInfo{
		ID:        t.ID,
		ClientID:  t.ClientID,
		UserID:    t.UserID,
		Scope:     t.Scope,
		IssuedAt:  t.IssuedAt,
		ExpiresAt: t.ExpiresAt,
	}
}
