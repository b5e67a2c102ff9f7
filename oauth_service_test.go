package gatehouse

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-dev/gatehouse/cache"
	"github.com/gatehouse-dev/gatehouse/client"
	"github.com/gatehouse-dev/gatehouse/domain"
	oauth2errors "github.com/gatehouse-dev/gatehouse/errors"
	"github.com/gatehouse-dev/gatehouse/memory"
)

type testEnv struct {
	service *OAuthService
	codes   *memory.AuthCodeStore
	tokens  *memory.TokenStore
	clients *memory.ClientStore
	user    *domain.User
}

func newTestEnv(t *testing.T, tokenCache cache.TokenStore) *testEnv {
	t.Helper()

	codes := memory.NewAuthCodeStore()
	tokens := memory.NewTokenStore()
	clientStore := memory.NewClientStore()

	ctx := context.Background()
	require.NoError(t, clientStore.CreateClient(ctx, &client.Client{
		ID:                   "c1",
		Secret:               "s3cr3t",
		Type:                 client.Confidential,
		RedirectURIs:         []string{"https://cb"},
		AllowedScopes:        []string{"read", "write"},
		AllowedGrantTypes:    []string{"authorization_code", "refresh_token"},
		AllowedResponseTypes: []string{"code"},
		IsActive:             true,
	}))
	require.NoError(t, clientStore.CreateClient(ctx, &client.Client{
		ID:                   "c2",
		Secret:               "other",
		Type:                 client.Confidential,
		RedirectURIs:         []string{"https://cb2"},
		AllowedScopes:        []string{"read"},
		AllowedGrantTypes:    []string{"authorization_code"},
		AllowedResponseTypes: []string{"code"},
		IsActive:             true,
	}))
	require.NoError(t, clientStore.CreateClient(ctx, &client.Client{
		ID:                   "spa",
		Type:                 client.Public,
		RedirectURIs:         []string{"https://spa/cb"},
		AllowedScopes:        []string{"read"},
		AllowedGrantTypes:    []string{"authorization_code"},
		AllowedResponseTypes: []string{"code"},
		IsActive:             true,
	}))

	service := NewOAuthService(codes, tokens, client.NewClientService(clientStore), tokenCache, "https://auth.test", Policy{})

	return &testEnv{
		service: service,
		codes:   codes,
		tokens:  tokens,
		clients: clientStore,
		user:    &domain.User{ID: "u1", Username: "demo"},
	}
}

func (e *testEnv) authorize(t *testing.T, req AuthorizeRequest) string {
	t.Helper()
	code, err := e.service.Authorize(context.Background(), req, e.user)
	require.NoError(t, err)
	require.NotEmpty(t, code)
	return code
}

func basicAuthorizeRequest() AuthorizeRequest {
	return AuthorizeRequest{
		ClientID:     "c1",
		ResponseType: "code",
		RedirectURI:  "https://cb",
		Scope:        "read",
		State:        "xyz",
	}
}

func assertOAuthErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	oauthErr, ok := err.(*oauth2errors.OAuth2Error)
	require.True(t, ok, "expected *OAuth2Error, got %T: %v", err, err)
	assert.Equal(t, code, oauthErr.Code)
}

func TestAuthorize_ValidationOrder(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*AuthorizeRequest)
		errCode string
	}{
		{"unknown client", func(r *AuthorizeRequest) { r.ClientID = "ghost" }, oauth2errors.InvalidClient},
		{"response type not allowed", func(r *AuthorizeRequest) { r.ResponseType = "token" }, oauth2errors.UnsupportedResponseType},
		{"unregistered redirect", func(r *AuthorizeRequest) { r.RedirectURI = "https://evil" }, oauth2errors.InvalidRequest},
		{"redirect prefix is not a match", func(r *AuthorizeRequest) { r.RedirectURI = "https://cb/extra" }, oauth2errors.InvalidRequest},
		{"scope not allowed", func(r *AuthorizeRequest) { r.Scope = "read admin" }, oauth2errors.InvalidScope},
		{"unknown challenge method", func(r *AuthorizeRequest) {
			r.CodeChallenge = "challenge"
			r.CodeChallengeMethod = "S512"
		}, oauth2errors.InvalidRequest},
		{"method without challenge", func(r *AuthorizeRequest) { r.CodeChallengeMethod = "S256" }, oauth2errors.InvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := basicAuthorizeRequest()
			tt.mutate(&req)

			code, err := env.service.Authorize(ctx, req, env.user)
			assert.Empty(t, code)
			assertOAuthErrorCode(t, err, tt.errCode)
		})
	}
}

func TestAuthorize_IssuesBoundCode(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	req := basicAuthorizeRequest()
	req.CodeChallenge = ComputeS256Challenge("verifier-value")
	req.CodeChallengeMethod = "S256"
	req.Nonce = "n-0S6_WzA2Mj"

	code := env.authorize(t, req)

	stored, err := env.codes.ConsumeAuthCode(ctx, "c1", code)
	require.NoError(t, err)
	assert.Equal(t, "c1", stored.ClientID)
	assert.Equal(t, "u1", stored.UserID)
	assert.Equal(t, "https://cb", stored.RedirectURI)
	assert.Equal(t, "read", stored.Scope)
	assert.Equal(t, "S256", stored.CodeChallengeMethod)
	assert.Equal(t, "n-0S6_WzA2Mj", stored.Nonce)
	assert.WithinDuration(t, time.Now().Add(DefaultAuthCodeTTL), stored.ExpiresAt, 5*time.Second)
}

func TestAuthorize_PublicClientRequiresPKCE(t *testing.T) {
	env := newTestEnv(t, nil)

	req := AuthorizeRequest{
		ClientID:     "spa",
		ResponseType: "code",
		RedirectURI:  "https://spa/cb",
		Scope:        "read",
	}
	_, err := env.service.Authorize(context.Background(), req, env.user)
	assertOAuthErrorCode(t, err, oauth2errors.InvalidRequest)
}

func TestDenyAuthorization_DiscardsCode(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	code := env.authorize(t, basicAuthorizeRequest())
	require.NoError(t, env.service.DenyAuthorization(ctx, code))

	_, err := env.service.ExchangeAuthorizationCode(ctx, "c1", "s3cr3t", code, "https://cb", "")
	assertOAuthErrorCode(t, err, oauth2errors.InvalidGrant)
}

func TestExchange_HappyPathAndSingleUse(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	code := env.authorize(t, basicAuthorizeRequest())

	resp, err := env.service.ExchangeAuthorizationCode(ctx, "c1", "s3cr3t", code, "https://cb", "")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int(DefaultAccessTokenTTL.Seconds()), resp.ExpiresIn)
	assert.Equal(t, "read", resp.Scope)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.NotEqual(t, resp.AccessToken, resp.RefreshToken)

	stored, err := env.tokens.GetByAccessToken(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "c1", stored.ClientID)
	assert.Equal(t, "u1", stored.UserID)
	assert.False(t, stored.Revoked)

	// The code is gone; a replay fails and issues nothing.
	_, err = env.service.ExchangeAuthorizationCode(ctx, "c1", "s3cr3t", code, "https://cb", "")
	assertOAuthErrorCode(t, err, oauth2errors.InvalidGrant)
}

func TestExchange_WrongClientSecret(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	code := env.authorize(t, basicAuthorizeRequest())

	_, err := env.service.ExchangeAuthorizationCode(ctx, "c1", "wrong", code, "https://cb", "")
	assertOAuthErrorCode(t, err, oauth2errors.InvalidClient)

	// The failed attempt must not have consumed the code.
	resp, err := env.service.ExchangeAuthorizationCode(ctx, "c1", "s3cr3t", code, "https://cb", "")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestExchange_CodeBoundToClient(t *testing.T) {
	env := newTestEnv(t, nil)

	code := env.authorize(t, basicAuthorizeRequest())

	_, err := env.service.ExchangeAuthorizationCode(context.Background(), "c2", "other", code, "https://cb", "")
	assertOAuthErrorCode(t, err, oauth2errors.InvalidGrant)
}

func TestExchange_RedirectURIBinding(t *testing.T) {
	env := newTestEnv(t, nil)

	code := env.authorize(t, basicAuthorizeRequest())

	_, err := env.service.ExchangeAuthorizationCode(context.Background(), "c1", "s3cr3t", code, "https://cb/", "")
	assertOAuthErrorCode(t, err, oauth2errors.InvalidGrant)
}

func TestExchange_ExpiredCode(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	expired := &domain.AuthCode{
		Code:        "expired-code",
		ClientID:    "c1",
		UserID:      "u1",
		RedirectURI: "https://cb",
		Scope:       "read",
		ExpiresAt:   time.Now().UTC().Add(-time.Minute),
		CreatedAt:   time.Now().UTC().Add(-11 * time.Minute),
	}
	require.NoError(t, env.codes.SaveAuthCode(ctx, expired))

	_, err := env.service.ExchangeAuthorizationCode(ctx, "c1", "s3cr3t", "expired-code", "https://cb", "")
	assertOAuthErrorCode(t, err, oauth2errors.InvalidGrant)
}

func TestExchange_PKCE(t *testing.T) {
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"

	t.Run("S256 round trip", func(t *testing.T) {
		env := newTestEnv(t, nil)
		req := basicAuthorizeRequest()
		req.CodeChallenge = ComputeS256Challenge(verifier)
		req.CodeChallengeMethod = "S256"
		code := env.authorize(t, req)

		resp, err := env.service.ExchangeAuthorizationCode(context.Background(), "c1", "s3cr3t", code, "https://cb", verifier)
		require.NoError(t, err)
		assert.NotEmpty(t, resp.AccessToken)
	})

	t.Run("S256 wrong verifier", func(t *testing.T) {
		env := newTestEnv(t, nil)
		req := basicAuthorizeRequest()
		req.CodeChallenge = ComputeS256Challenge(verifier)
		req.CodeChallengeMethod = "S256"
		code := env.authorize(t, req)

		_, err := env.service.ExchangeAuthorizationCode(context.Background(), "c1", "s3cr3t", code, "https://cb", "not-the-verifier")
		assertOAuthErrorCode(t, err, oauth2errors.InvalidGrant)
	})

	t.Run("challenge stored, verifier missing", func(t *testing.T) {
		env := newTestEnv(t, nil)
		req := basicAuthorizeRequest()
		req.CodeChallenge = ComputeS256Challenge(verifier)
		req.CodeChallengeMethod = "S256"
		code := env.authorize(t, req)

		_, err := env.service.ExchangeAuthorizationCode(context.Background(), "c1", "s3cr3t", code, "https://cb", "")
		assertOAuthErrorCode(t, err, oauth2errors.InvalidGrant)
	})

	t.Run("method defaults to plain", func(t *testing.T) {
		env := newTestEnv(t, nil)
		req := basicAuthorizeRequest()
		req.CodeChallenge = verifier
		code := env.authorize(t, req)

		resp, err := env.service.ExchangeAuthorizationCode(context.Background(), "c1", "s3cr3t", code, "https://cb", verifier)
		require.NoError(t, err)
		assert.NotEmpty(t, resp.AccessToken)
	})

	t.Run("verifier ignored when no challenge stored", func(t *testing.T) {
		env := newTestEnv(t, nil)
		code := env.authorize(t, basicAuthorizeRequest())

		resp, err := env.service.ExchangeAuthorizationCode(context.Background(), "c1", "s3cr3t", code, "https://cb", "stray-verifier")
		require.NoError(t, err)
		assert.NotEmpty(t, resp.AccessToken)
	})
}

func TestExchange_ConcurrentRedemptionSingleSuccess(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	code := env.authorize(t, basicAuthorizeRequest())

	const attempts = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		grantErrs int
	)

	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			_, err := env.service.ExchangeAuthorizationCode(ctx, "c1", "s3cr3t", code, "https://cb", "")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			if oauthErr, ok := err.(*oauth2errors.OAuth2Error); ok && oauthErr.Code == oauth2errors.InvalidGrant {
				grantErrs++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes, "exactly one concurrent redemption must win")
	assert.Equal(t, attempts-1, grantErrs)
}

func TestRefresh_RotatesPair(t *testing.T) {
	env := newTestEnv(t, cache.NewMemoryTokenStore(time.Minute))
	ctx := context.Background()

	code := env.authorize(t, basicAuthorizeRequest())
	first, err := env.service.ExchangeAuthorizationCode(ctx, "c1", "s3cr3t", code, "https://cb", "")
	require.NoError(t, err)

	second, err := env.service.RefreshToken(ctx, "c1", "s3cr3t", first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, "read", second.Scope)

	// The old pair is dead: refreshing or presenting it again fails.
	_, err = env.service.RefreshToken(ctx, "c1", "s3cr3t", first.RefreshToken)
	assertOAuthErrorCode(t, err, oauth2errors.InvalidGrant)

	_, err = env.service.ValidateBearer(ctx, first.AccessToken)
	assertOAuthErrorCode(t, err, oauth2errors.Unauthorized)

	// The fresh pair keeps the original binding.
	info, err := env.service.ValidateBearer(ctx, second.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", info.UserID)
	assert.Equal(t, "c1", info.ClientID)
}

func TestRefresh_Failures(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	code := env.authorize(t, basicAuthorizeRequest())
	resp, err := env.service.ExchangeAuthorizationCode(ctx, "c1", "s3cr3t", code, "https://cb", "")
	require.NoError(t, err)

	t.Run("unknown refresh token", func(t *testing.T) {
		_, err := env.service.RefreshToken(ctx, "c1", "s3cr3t", uuid.NewString())
		assertOAuthErrorCode(t, err, oauth2errors.InvalidGrant)
	})

	t.Run("wrong client secret", func(t *testing.T) {
		_, err := env.service.RefreshToken(ctx, "c1", "nope", resp.RefreshToken)
		assertOAuthErrorCode(t, err, oauth2errors.InvalidClient)
	})

	t.Run("token bound to another client", func(t *testing.T) {
		_, err := env.service.RefreshToken(ctx, "c2", "other", resp.RefreshToken)
		assertOAuthErrorCode(t, err, oauth2errors.InvalidGrant)
	})

	t.Run("expired refresh token", func(t *testing.T) {
		now := time.Now().UTC()
		stale := &domain.Token{
			ID:               uuid.NewString(),
			AccessToken:      uuid.NewString(),
			RefreshToken:     uuid.NewString(),
			ClientID:         "c1",
			UserID:           "u1",
			Scope:            "read",
			IssuedAt:         now.Add(-time.Hour),
			ExpiresAt:        now.Add(-55 * time.Minute),
			RefreshExpiresAt: now.Add(-45 * time.Minute),
		}
		require.NoError(t, env.tokens.StoreToken(ctx, stale))

		_, err := env.service.RefreshToken(ctx, "c1", "s3cr3t", stale.RefreshToken)
		assertOAuthErrorCode(t, err, oauth2errors.InvalidGrant)
	})
}

func TestRevoke_IsIdempotentAndMonotonic(t *testing.T) {
	env := newTestEnv(t, cache.NewMemoryTokenStore(time.Minute))
	ctx := context.Background()

	code := env.authorize(t, basicAuthorizeRequest())
	resp, err := env.service.ExchangeAuthorizationCode(ctx, "c1", "s3cr3t", code, "https://cb", "")
	require.NoError(t, err)

	// Unknown values are a silent no-op.
	require.NoError(t, env.service.RevokeToken(ctx, "never-issued"))

	require.NoError(t, env.service.RevokeToken(ctx, resp.RefreshToken))
	require.NoError(t, env.service.RevokeToken(ctx, resp.RefreshToken))

	_, err = env.service.ValidateBearer(ctx, resp.AccessToken)
	assertOAuthErrorCode(t, err, oauth2errors.Unauthorized)

	_, err = env.service.RefreshToken(ctx, "c1", "s3cr3t", resp.RefreshToken)
	assertOAuthErrorCode(t, err, oauth2errors.InvalidGrant)
}

func TestRevoke_ByAccessTokenValue(t *testing.T) {
	env := newTestEnv(t, cache.NewMemoryTokenStore(time.Minute))
	ctx := context.Background()

	code := env.authorize(t, basicAuthorizeRequest())
	resp, err := env.service.ExchangeAuthorizationCode(ctx, "c1", "s3cr3t", code, "https://cb", "")
	require.NoError(t, err)

	require.NoError(t, env.service.RevokeToken(ctx, resp.AccessToken))

	_, err = env.service.ValidateBearer(ctx, resp.AccessToken)
	assertOAuthErrorCode(t, err, oauth2errors.Unauthorized)
	_, err = env.service.RefreshToken(ctx, "c1", "s3cr3t", resp.RefreshToken)
	assertOAuthErrorCode(t, err, oauth2errors.InvalidGrant)
}

func TestValidateBearer(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	code := env.authorize(t, basicAuthorizeRequest())
	resp, err := env.service.ExchangeAuthorizationCode(ctx, "c1", "s3cr3t", code, "https://cb", "")
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		info, err := env.service.ValidateBearer(ctx, resp.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "c1", info.ClientID)
		assert.Equal(t, "u1", info.UserID)
		assert.Equal(t, "read", info.Scope)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := env.service.ValidateBearer(ctx, "garbage")
		assertOAuthErrorCode(t, err, oauth2errors.Unauthorized)
	})

	t.Run("expired token", func(t *testing.T) {
		now := time.Now().UTC()
		stale := &domain.Token{
			ID:               uuid.NewString(),
			AccessToken:      uuid.NewString(),
			RefreshToken:     uuid.NewString(),
			ClientID:         "c1",
			UserID:           "u1",
			IssuedAt:         now.Add(-10 * time.Minute),
			ExpiresAt:        now.Add(-5 * time.Minute),
			RefreshExpiresAt: now.Add(5 * time.Minute),
		}
		require.NoError(t, env.tokens.StoreToken(ctx, stale))

		_, err := env.service.ValidateBearer(ctx, stale.AccessToken)
		assertOAuthErrorCode(t, err, oauth2errors.Unauthorized)
	})
}

func TestIntrospectToken(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	code := env.authorize(t, basicAuthorizeRequest())
	resp, err := env.service.ExchangeAuthorizationCode(ctx, "c1", "s3cr3t", code, "https://cb", "")
	require.NoError(t, err)

	t.Run("active access token", func(t *testing.T) {
		introspection, err := env.service.IntrospectToken(ctx, resp.AccessToken, "", "c1", "s3cr3t")
		require.NoError(t, err)
		assert.True(t, introspection.Active)
		assert.Equal(t, "c1", introspection.ClientID)
		assert.Equal(t, "u1", introspection.Sub)
		assert.Equal(t, "access_token", introspection.TokenType)
		assert.Equal(t, "https://auth.test", introspection.Iss)
	})

	t.Run("refresh token via hint", func(t *testing.T) {
		introspection, err := env.service.IntrospectToken(ctx, resp.RefreshToken, "refresh_token", "c1", "s3cr3t")
		require.NoError(t, err)
		assert.True(t, introspection.Active)
		assert.Equal(t, "refresh_token", introspection.TokenType)
	})

	t.Run("unknown token is inactive", func(t *testing.T) {
		introspection, err := env.service.IntrospectToken(ctx, "garbage", "", "c1", "s3cr3t")
		require.NoError(t, err)
		assert.False(t, introspection.Active)
	})

	t.Run("revoked token is inactive", func(t *testing.T) {
		require.NoError(t, env.service.RevokeToken(ctx, resp.RefreshToken))

		introspection, err := env.service.IntrospectToken(ctx, resp.AccessToken, "", "c1", "s3cr3t")
		require.NoError(t, err)
		assert.False(t, introspection.Active)
	})

	t.Run("unauthenticated client", func(t *testing.T) {
		_, err := env.service.IntrospectToken(ctx, resp.AccessToken, "", "c1", "bad")
		assertOAuthErrorCode(t, err, oauth2errors.InvalidClient)
	})
}

// latentTokenStore widens the window between the refresh-token lookup
// and the consume step, the way a networked repository does.
type latentTokenStore struct {
	domain.TokenRepository
	delay time.Duration
}

func (s *latentTokenStore) GetByRefreshToken(ctx context.Context, refreshToken string) (*domain.Token, error) {
	token, err := s.TokenRepository.GetByRefreshToken(ctx, refreshToken)
	time.Sleep(s.delay)
	return token, err
}

func TestRefresh_ConcurrentRotationSingleSuccess(t *testing.T) {
	codes := memory.NewAuthCodeStore()
	tokens := &latentTokenStore{TokenRepository: memory.NewTokenStore(), delay: 5 * time.Millisecond}
	clientStore := memory.NewClientStore()

	ctx := context.Background()
	require.NoError(t, clientStore.CreateClient(ctx, &client.Client{
		ID:                   "c1",
		Secret:               "s3cr3t",
		Type:                 client.Confidential,
		RedirectURIs:         []string{"https://cb"},
		AllowedScopes:        []string{"read"},
		AllowedGrantTypes:    []string{"authorization_code", "refresh_token"},
		AllowedResponseTypes: []string{"code"},
		IsActive:             true,
	}))

	service := NewOAuthService(codes, tokens, client.NewClientService(clientStore), nil, "https://auth.test", Policy{})

	code, err := service.Authorize(ctx, basicAuthorizeRequest(), &domain.User{ID: "u1", Username: "demo"})
	require.NoError(t, err)
	resp, err := service.ExchangeAuthorizationCode(ctx, "c1", "s3cr3t", code, "https://cb", "")
	require.NoError(t, err)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		grantErrs int
	)

	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			_, err := service.RefreshToken(ctx, "c1", "s3cr3t", resp.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			if oauthErr, ok := err.(*oauth2errors.OAuth2Error); ok && oauthErr.Code == oauth2errors.InvalidGrant {
				grantErrs++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes, "exactly one concurrent refresh must win")
	assert.Equal(t, attempts-1, grantErrs)
}

// brokenTokenStore accepts lookups but refuses inserts.
type brokenTokenStore struct {
	domain.TokenRepository
}

func (s *brokenTokenStore) StoreToken(context.Context, *domain.Token) error {
	return stderrors.New("insert failed")
}

func TestExchange_StoreFailureIsNotRetryable(t *testing.T) {
	codes := memory.NewAuthCodeStore()
	tokens := &brokenTokenStore{TokenRepository: memory.NewTokenStore()}
	clientStore := memory.NewClientStore()

	ctx := context.Background()
	require.NoError(t, clientStore.CreateClient(ctx, &client.Client{
		ID:                   "c1",
		Secret:               "s3cr3t",
		Type:                 client.Confidential,
		RedirectURIs:         []string{"https://cb"},
		AllowedScopes:        []string{"read"},
		AllowedGrantTypes:    []string{"authorization_code"},
		AllowedResponseTypes: []string{"code"},
		IsActive:             true,
	}))

	service := NewOAuthService(codes, tokens, client.NewClientService(clientStore), nil, "https://auth.test", Policy{})

	code, err := service.Authorize(ctx, basicAuthorizeRequest(), &domain.User{ID: "u1", Username: "demo"})
	require.NoError(t, err)

	// The code is consumed before the insert runs, so a retry cannot
	// succeed and the error must not claim otherwise.
	_, err = service.ExchangeAuthorizationCode(ctx, "c1", "s3cr3t", code, "https://cb", "")
	assertOAuthErrorCode(t, err, oauth2errors.ServerError)
	oauthErr := err.(*oauth2errors.OAuth2Error)
	assert.False(t, oauthErr.Retryable())

	_, err = service.ExchangeAuthorizationCode(ctx, "c1", "s3cr3t", code, "https://cb", "")
	assertOAuthErrorCode(t, err, oauth2errors.InvalidGrant)
}
