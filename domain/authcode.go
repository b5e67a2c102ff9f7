package domain

import "time"

// Code challenge methods accepted for PKCE.
const (
	CodeChallengePlain = "plain"
	CodeChallengeS256  = "S256"
)

// AuthCode represents an OAuth 2.0 authorization code. A code is
// created once, consumed (read-and-deleted) exactly once, and never
// updated in between.
type AuthCode struct {
	Code        string    `bson:"code"          json:"code"`          // Unique authorization code
	ClientID    string    `bson:"client_id"     json:"client_id"`     // Client application ID
	UserID      string    `bson:"user_id"       json:"user_id"`       // User who authorized the request
	RedirectURI string    `bson:"redirect_uri"  json:"redirect_uri"`  // Client's callback URL
	ResponseType string   `bson:"response_type" json:"response_type"` // Response type used at authorization
	Scope       string    `bson:"scope"         json:"scope"`         // Authorized scopes
	ExpiresAt   time.Time `bson:"expires_at"    json:"expires_at"`    // Expiration timestamp
	CreatedAt   time.Time `bson:"created_at"    json:"created_at"`    // Creation timestamp

	CodeChallenge       string `bson:"code_challenge,omitempty"        json:"code_challenge,omitempty"`
	CodeChallengeMethod string `bson:"code_challenge_method,omitempty" json:"code_challenge_method,omitempty"`
	Nonce               string `bson:"nonce,omitempty"                 json:"nonce,omitempty"`
}

// Expired reports whether the code is past its expiry at the given instant.
func (c *AuthCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
