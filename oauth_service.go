package gatehouse

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/gatehouse-dev/gatehouse/cache"
	"github.com/gatehouse-dev/gatehouse/client"
	"github.com/gatehouse-dev/gatehouse/domain"
)

// Default lifetimes applied when the policy leaves a field zero.
const (
	DefaultAuthCodeTTL     = 10 * time.Minute
	DefaultAccessTokenTTL  = 5 * time.Minute
	DefaultRefreshTokenTTL = 15 * time.Minute
)

// Policy holds the token lifetime knobs for an OAuthService instance.
type Policy struct {
	AuthCodeTTL     time.Duration
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.AuthCodeTTL <= 0 {
		p.AuthCodeTTL = DefaultAuthCodeTTL
	}
	if p.AccessTokenTTL <= 0 {
		p.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if p.RefreshTokenTTL <= 0 {
		p.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	return p
}

// OAuthService drives the authorization-code and token lifecycle: it
// validates authorization requests, issues and redeems single-use
// codes, issues/refreshes/revokes token pairs, and validates bearer
// tokens for protected resources. It holds no global state; all
// dependencies are injected at construction so stores can be swapped
// for doubles in tests.
type OAuthService struct {
	codes      domain.AuthCodeRepository
	tokens     domain.TokenRepository
	clients    *client.ClientService
	tokenCache cache.TokenStore
	issuer     string
	policy     Policy
}

// NewOAuthService constructs the service. tokenCache may be nil, in
// which case every bearer validation goes to the token repository.
func NewOAuthService(
	codes domain.AuthCodeRepository,
	tokens domain.TokenRepository,
	clients *client.ClientService,
	tokenCache cache.TokenStore,
	issuer string,
	policy Policy,
) *OAuthService {
	return &OAuthService{
		codes:      codes,
		tokens:     tokens,
		clients:    clients,
		tokenCache: tokenCache,
		issuer:     issuer,
		policy:     policy.withDefaults(),
	}
}

// TokenResponse is the JSON-shaped result of a successful token
// request.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	IDToken      string `json:"id_token,omitempty"` // OpenID Connect placeholder, not populated
}

// generateSecureCode returns a base64url string carrying 256 bits of
// entropy, used for authorization codes.
func generateSecureCode() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
