package gatehouse

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gatehouse-dev/gatehouse/cache"
	"github.com/gatehouse-dev/gatehouse/client"
	"github.com/gatehouse-dev/gatehouse/domain"
	oauth2errors "github.com/gatehouse-dev/gatehouse/errors"
)

// ExchangeAuthorizationCode redeems a single-use authorization code for
// a token pair. The consume step is atomic at the storage layer: when
// two callers race on the same code, exactly one sees it and the other
// gets invalid_grant. Absent, replayed, expired, redirect-mismatched
// and PKCE-failed codes are all reported as the same invalid_grant so
// the caller cannot probe which check failed.
func (s *OAuthService) ExchangeAuthorizationCode(
	ctx context.Context,
	clientID, clientSecret, code, redirectURI, codeVerifier string,
) (*TokenResponse, error) {
	cli, err := s.clients.ValidateClient(ctx, clientID, clientSecret)
	if err != nil {
		if errors.Is(err, client.ErrClientNotFound) {
			return nil, oauth2errors.NewInvalidClient("client authentication failed")
		}
		return nil, oauth2errors.NewTemporarilyUnavailable("client lookup failed")
	}

	authCode, err := s.codes.ConsumeAuthCode(ctx, cli.ID, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, oauth2errors.NewInvalidGrant("invalid authorization code")
		}
		// The code was not consumed; the caller may retry.
		return nil, oauth2errors.NewTemporarilyUnavailable("authorization code lookup failed")
	}

	if authCode.Expired(time.Now().UTC()) {
		return nil, oauth2errors.NewInvalidGrant("invalid authorization code")
	}

	if authCode.RedirectURI != redirectURI {
		return nil, oauth2errors.NewInvalidGrant("invalid authorization code")
	}

	if authCode.CodeChallenge != "" {
		if codeVerifier == "" || !VerifyCodeChallenge(authCode.CodeChallenge, authCode.CodeChallengeMethod, codeVerifier) {
			return nil, oauth2errors.NewInvalidGrant("invalid authorization code")
		}
	}
	// No stored challenge: a supplied verifier is ignored, not an error.

	resp, err := s.issueTokens(ctx, cli.ID, authCode.UserID, authCode.Scope)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("client_id", cli.ID).
		Str("user_id", authCode.UserID).
		Str("scope", authCode.Scope).
		Msg("authorization code redeemed")

	return resp, nil
}

// RefreshToken exchanges a refresh token for a fresh pair. The policy
// is rotation: the presented token's row is revoked and a brand-new
// pair bound to the same client, user and scope is issued.
func (s *OAuthService) RefreshToken(ctx context.Context, clientID, clientSecret, refreshToken string) (*TokenResponse, error) {
	cli, err := s.clients.ValidateClient(ctx, clientID, clientSecret)
	if err != nil {
		if errors.Is(err, client.ErrClientNotFound) {
			return nil, oauth2errors.NewInvalidClient("client authentication failed")
		}
		return nil, oauth2errors.NewTemporarilyUnavailable("client lookup failed")
	}

	token, err := s.tokens.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, oauth2errors.NewInvalidGrant("invalid refresh token")
		}
		return nil, oauth2errors.NewTemporarilyUnavailable("token lookup failed")
	}

	if token.Revoked || token.RefreshExpired(time.Now().UTC()) || token.ClientID != cli.ID {
		return nil, oauth2errors.NewInvalidGrant("invalid refresh token")
	}

	// The revoke is the consume step: it only succeeds on a live row,
	// so of all callers racing on the same refresh token exactly one
	// proceeds to issuance.
	if err := s.revokePair(ctx, token); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, oauth2errors.NewInvalidGrant("invalid refresh token")
		}
		return nil, oauth2errors.NewTemporarilyUnavailable("could not rotate refresh token")
	}

	resp, err := s.issueTokens(ctx, token.ClientID, token.UserID, token.Scope)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("client_id", cli.ID).
		Str("user_id", token.UserID).
		Msg("refresh token rotated")

	return resp, nil
}

// RevokeToken marks the token pair matching the given value as revoked.
// Refresh tokens are tried first, then access tokens. The operation is
// idempotent: an unknown or already-revoked value is a no-op, never an
// error, so the endpoint leaks nothing about token existence.
func (s *OAuthService) RevokeToken(ctx context.Context, tokenValue string) error {
	token, err := s.tokens.GetByRefreshToken(ctx, tokenValue)
	revoke := s.tokens.RevokeByRefreshToken
	if errors.Is(err, domain.ErrNotFound) {
		token, err = s.tokens.GetByAccessToken(ctx, tokenValue)
		revoke = s.tokens.RevokeByAccessToken
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return oauth2errors.NewTemporarilyUnavailable("revocation failed")
	}

	// ErrNotFound here means another caller already revoked the row;
	// the outcome the caller asked for holds either way.
	if err := revoke(ctx, tokenValue); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return oauth2errors.NewTemporarilyUnavailable("revocation failed")
	}

	// Evict the access half so the validation cache cannot outlive the
	// revocation.
	if s.tokenCache != nil {
		if err := s.tokenCache.Delete(ctx, token.AccessToken); err != nil {
			log.Warn().Err(err).Msg("failed to evict revoked token from cache")
		}
	}

	return nil
}

// revokePair revokes a token row and evicts its access half from the
// validation cache. ErrNotFound passes through: the row was already
// consumed by another caller, and the winner handles the eviction.
func (s *OAuthService) revokePair(ctx context.Context, token *domain.Token) error {
	if err := s.tokens.RevokeByRefreshToken(ctx, token.RefreshToken); err != nil {
		return err
	}
	if s.tokenCache != nil {
		if err := s.tokenCache.Delete(ctx, token.AccessToken); err != nil {
			log.Warn().Err(err).Msg("failed to evict rotated token from cache")
		}
	}
	return nil
}

// issueTokens inserts a fresh pair and primes the validation cache.
func (s *OAuthService) issueTokens(ctx context.Context, clientID, userID, scope string) (*TokenResponse, error) {
	now := time.Now().UTC()
	token := &domain.Token{
		ID:               newTokenID(),
		AccessToken:      uuid.NewString(),
		RefreshToken:     uuid.NewString(),
		ClientID:         clientID,
		UserID:           userID,
		Scope:            scope,
		IssuedAt:         now,
		ExpiresAt:        now.Add(s.policy.AccessTokenTTL),
		RefreshExpiresAt: now.Add(s.policy.RefreshTokenTTL),
		Revoked:          false,
	}

	// By the time issuance runs the grant has been consumed (the code
	// deleted, or the old pair revoked), so a retry of the same request
	// cannot succeed. server_error keeps the caller from retrying a
	// dead grant.
	if err := s.tokens.StoreToken(ctx, token); err != nil {
		log.Error().Err(err).Str("client_id", clientID).Msg("failed to store token")
		return nil, oauth2errors.NewServerError("could not persist token")
	}

	if s.tokenCache != nil {
		entry := &cache.TokenEntry{
			ID:         token.ID,
			TokenValue: token.AccessToken,
			ClientID:   token.ClientID,
			UserID:     token.UserID,
			Scope:      token.Scope,
			IssuedAt:   token.IssuedAt,
			ExpiresAt:  token.ExpiresAt,
		}
		if err := s.tokenCache.Set(ctx, entry); err != nil {
			log.Warn().Err(err).Msg("failed to cache issued token")
		}
	}

	return &TokenResponse{
		AccessToken:  token.AccessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.policy.AccessTokenTTL.Seconds()),
		RefreshToken: token.RefreshToken,
		Scope:        scope,
	}, nil
}
