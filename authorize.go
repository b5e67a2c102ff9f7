package gatehouse

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gatehouse-dev/gatehouse/client"
	"github.com/gatehouse-dev/gatehouse/domain"
	oauth2errors "github.com/gatehouse-dev/gatehouse/errors"
)

// AuthorizeRequest carries an already-authenticated authorization
// request. State is opaque passthrough; the engine never interprets it.
type AuthorizeRequest struct {
	ClientID            string
	ResponseType        string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	Nonce               string
}

// Authorize validates the request against the client registration and,
// on success, issues a single-use authorization code bound to the
// principal, redirect URI, scope and PKCE challenge. The caller must
// have resolved the principal already; authentication is not this
// engine's concern.
//
// Failures before the redirect URI is validated must be shown to the
// user directly, never sent to the unvalidated URI; the returned
// *oauth2errors.OAuth2Error is that direct response.
func (s *OAuthService) Authorize(ctx context.Context, req AuthorizeRequest, principal *domain.User) (string, error) {
	cli, err := s.clients.GetClient(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, client.ErrClientNotFound) {
			return "", oauth2errors.NewInvalidClient("unknown client")
		}
		return "", oauth2errors.NewTemporarilyUnavailable("client lookup failed")
	}

	if err := s.clients.ValidateResponseType(cli, req.ResponseType); err != nil {
		return "", oauth2errors.NewUnsupportedResponseType()
	}

	if err := s.clients.ValidateRedirectURI(cli, req.RedirectURI); err != nil {
		return "", oauth2errors.NewInvalidRequest("invalid redirect_uri")
	}

	if err := s.clients.ValidateScope(cli, req.Scope); err != nil {
		return "", oauth2errors.NewInvalidScope("requested scope exceeds client registration")
	}

	challenge, method, oauthErr := normalizeChallenge(req.CodeChallenge, req.CodeChallengeMethod)
	if oauthErr != nil {
		return "", oauthErr
	}
	if challenge == "" && s.clients.RequiresPKCE(cli) {
		return "", oauth2errors.NewPKCERequired()
	}

	code, err := generateSecureCode()
	if err != nil {
		return "", oauth2errors.NewServerError("failed to generate authorization code")
	}

	now := time.Now().UTC()
	authCode := &domain.AuthCode{
		Code:                code,
		ClientID:            cli.ID,
		UserID:              principal.ID,
		RedirectURI:         req.RedirectURI,
		ResponseType:        req.ResponseType,
		Scope:               req.Scope,
		ExpiresAt:           now.Add(s.policy.AuthCodeTTL),
		CreatedAt:           now,
		CodeChallenge:       challenge,
		CodeChallengeMethod: method,
		Nonce:               req.Nonce,
	}

	if err := s.codes.SaveAuthCode(ctx, authCode); err != nil {
		log.Error().Err(err).Str("client_id", cli.ID).Msg("failed to save authorization code")
		return "", oauth2errors.NewTemporarilyUnavailable("could not persist authorization code")
	}

	log.Debug().
		Str("client_id", cli.ID).
		Str("user_id", principal.ID).
		Str("scope", req.Scope).
		Msg("authorization code issued")

	return code, nil
}

// DenyAuthorization discards a previously issued code when the user
// cancels or the consent step denies access. Unknown codes are ignored.
func (s *OAuthService) DenyAuthorization(ctx context.Context, code string) error {
	if err := s.codes.DeleteAuthCode(ctx, code); err != nil {
		return oauth2errors.NewTemporarilyUnavailable("could not discard authorization code")
	}
	return nil
}

// normalizeChallenge applies the PKCE defaulting policy: a challenge
// without a method means "plain", a method must come from the fixed
// set, and a method without a challenge is malformed.
func normalizeChallenge(challenge, method string) (string, string, *oauth2errors.OAuth2Error) {
	if challenge == "" {
		if method != "" {
			return "", "", oauth2errors.NewInvalidRequest("code_challenge_method without code_challenge")
		}
		return "", "", nil
	}
	switch method {
	case "":
		return challenge, domain.CodeChallengePlain, nil
	case domain.CodeChallengePlain, domain.CodeChallengeS256:
		return challenge, method, nil
	default:
		return "", "", oauth2errors.NewInvalidPKCEMethod(method)
	}
}

// newTokenID returns an identifier for a token row.
func newTokenID() string { return uuid.NewString() }
