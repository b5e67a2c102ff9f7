package gatehouse

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gatehouse-dev/gatehouse/domain"
	oauth2errors "github.com/gatehouse-dev/gatehouse/errors"
)

// ValidateBearer checks an access token presented to a protected
// resource and, when valid, exposes the principal/scope context to the
// handler. Absent, revoked and expired tokens all fail the same way.
// This is a pure read; nothing is mutated.
func (s *OAuthService) ValidateBearer(ctx context.Context, accessToken string) (*domain.TokenInfo, error) {
	now := time.Now().UTC()

	if s.tokenCache != nil {
		if entry, err := s.tokenCache.Get(ctx, accessToken); err == nil && entry != nil {
			if now.Before(entry.ExpiresAt) {
				return &domain.TokenInfo{
					ID:        entry.ID,
					ClientID:  entry.ClientID,
					UserID:    entry.UserID,
					Scope:     entry.Scope,
					IssuedAt:  entry.IssuedAt,
					ExpiresAt: entry.ExpiresAt,
				}, nil
			}
		}
	}

	token, err := s.tokens.GetByAccessToken(ctx, accessToken)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, oauth2errors.NewUnauthorized("invalid access token")
		}
		return nil, oauth2errors.NewTemporarilyUnavailable("token lookup failed")
	}

	if token.Revoked || token.AccessExpired(now) {
		return nil, oauth2errors.NewUnauthorized("invalid access token")
	}

	return token.Info(), nil
}

// TokenIntrospection is the response format defined in RFC 7662.
type TokenIntrospection struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Iat       int64  `json:"iat,omitempty"`
	Sub       string `json:"sub,omitempty"`
	Iss       string `json:"iss,omitempty"`
	Jti       string `json:"jti,omitempty"`
}

// IntrospectToken implements RFC 7662 token introspection for
// authenticated clients. Any lookup failure, revocation or expiry
// collapses into {"active": false}.
func (s *OAuthService) IntrospectToken(ctx context.Context, tokenValue, tokenTypeHint, clientID, clientSecret string) (*TokenIntrospection, error) {
	if _, err := s.clients.ValidateClient(ctx, clientID, clientSecret); err != nil {
		return nil, oauth2errors.NewInvalidClient("client authentication failed")
	}

	var (
		token     *domain.Token
		err       error
		tokenType string
	)

	switch tokenTypeHint {
	case "refresh_token":
		token, err = s.tokens.GetByRefreshToken(ctx, tokenValue)
		tokenType = "refresh_token"
	default:
		token, err = s.tokens.GetByAccessToken(ctx, tokenValue)
		tokenType = "access_token"
		if err != nil {
			token, err = s.tokens.GetByRefreshToken(ctx, tokenValue)
			tokenType = "refresh_token"
		}
	}
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Warn().Err(err).Msg("introspection lookup failed")
		}
		return &TokenIntrospection{Active: false}, nil
	}

	now := time.Now().UTC()
	expiry := token.ExpiresAt
	if tokenType == "refresh_token" {
		expiry = token.RefreshExpiresAt
	}
	if token.Revoked || now.After(expiry) {
		return &TokenIntrospection{Active: false}, nil
	}

	return &TokenIntrospection{
		Active:    true,
		Scope:     token.Scope,
		ClientID:  token.ClientID,
		TokenType: tokenType,
		Exp:       expiry.Unix(),
		Iat:       token.IssuedAt.Unix(),
		Sub:       token.UserID,
		Iss:       s.issuer,
		Jti:       token.ID,
	}, nil
}
