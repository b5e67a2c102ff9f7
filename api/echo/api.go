package echo

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	gatehouse "github.com/gatehouse-dev/gatehouse"
	oauth2errors "github.com/gatehouse-dev/gatehouse/errors"
	"github.com/gatehouse-dev/gatehouse/internal/auth"
)

// OAuth2API wires the protocol engines to HTTP. The handlers only
// parse requests and render responses; every protocol decision lives in
// the service.
type OAuth2API struct {
	service       *gatehouse.OAuthService
	authenticator *auth.Authenticator
}

// NewOAuth2API initializes the OAuth2 API.
func NewOAuth2API(service *gatehouse.OAuthService, authenticator *auth.Authenticator) *OAuth2API {
	return &OAuth2API{
		service:       service,
		authenticator: authenticator,
	}
}

// RegisterRoutes registers the OAuth2 routes.
func (oa *OAuth2API) RegisterRoutes(e *echo.Echo) {
	e.GET("/oauth2/authorize", oa.AuthorizePageHandler)
	e.POST("/oauth2/authorize", oa.AuthorizeHandler)
	e.POST("/oauth2/token", oa.TokenHandler)
	e.POST("/oauth2/revoke", oa.RevokeHandler)
	e.POST("/oauth2/introspect", oa.IntrospectHandler)

	guarded := e.Group("", BearerAuth(oa.service))
	guarded.GET("/oauth2/userinfo", oa.UserInfoHandler)
	guarded.GET("/protected", oa.ProtectedHandler)
}

// AuthorizePageHandler renders a minimal login/consent form that posts
// back to the authorize endpoint with the original query parameters.
func (oa *OAuth2API) AuthorizePageHandler(c echo.Context) error {
	page := `<html><body>
	<form method="POST">
		<label>Username: <input type="text" name="username"/></label>
		<label>Password: <input type="password" name="password"/></label>
		<input type="hidden" name="client_id" value="` + html(c.QueryParam("client_id")) + `"/>
		<input type="hidden" name="response_type" value="` + html(c.QueryParam("response_type")) + `"/>
		<input type="hidden" name="redirect_uri" value="` + html(c.QueryParam("redirect_uri")) + `"/>
		<input type="hidden" name="scope" value="` + html(c.QueryParam("scope")) + `"/>
		<input type="hidden" name="state" value="` + html(c.QueryParam("state")) + `"/>
		<input type="hidden" name="code_challenge" value="` + html(c.QueryParam("code_challenge")) + `"/>
		<input type="hidden" name="code_challenge_method" value="` + html(c.QueryParam("code_challenge_method")) + `"/>
		<input type="hidden" name="nonce" value="` + html(c.QueryParam("nonce")) + `"/>
		<input type="submit" value="Authorize"/>
	</form>
	</body></html>`
	return c.HTML(http.StatusOK, page)
}

// AuthorizeHandler authenticates the resource owner and drives the
// authorization engine. Errors are returned as a direct response, never
// as a redirect: the redirect URI is only trusted after the engine has
// validated it, and by then the only remaining outcome is success.
func (oa *OAuth2API) AuthorizeHandler(c echo.Context) error {
	ctx := c.Request().Context()

	principal, err := oa.authenticator.Authenticate(ctx, c.FormValue("username"), c.FormValue("password"))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return c.HTML(http.StatusUnauthorized, "Invalid credentials")
		}
		log.Error().Err(err).Msg("authentication backend failure")
		return c.JSON(http.StatusServiceUnavailable, oauth2errors.NewTemporarilyUnavailable("authentication unavailable"))
	}

	req := gatehouse.AuthorizeRequest{
		ClientID:            c.FormValue("client_id"),
		ResponseType:        c.FormValue("response_type"),
		RedirectURI:         c.FormValue("redirect_uri"),
		Scope:               c.FormValue("scope"),
		State:               c.FormValue("state"),
		CodeChallenge:       c.FormValue("code_challenge"),
		CodeChallengeMethod: c.FormValue("code_challenge_method"),
		Nonce:               c.FormValue("nonce"),
	}

	code, err := oa.service.Authorize(ctx, req, principal)
	if err != nil {
		return writeOAuthError(c, err, req.State)
	}

	location, err := url.Parse(req.RedirectURI)
	if err != nil {
		return c.JSON(http.StatusBadRequest, oauth2errors.NewInvalidRequest("invalid redirect_uri"))
	}
	query := location.Query()
	query.Set("code", code)
	if req.State != "" {
		query.Set("state", req.State)
	}
	location.RawQuery = query.Encode()

	return c.Redirect(http.StatusFound, location.String())
}

// GrantType enumeration for OAuth2 grant types.
type GrantType string

const (
	GrantTypeAuthorizationCode GrantType = "authorization_code"
	GrantTypeRefreshToken      GrantType = "refresh_token"
)

// TokenHandler handles OAuth2 token requests for the authorization_code
// and refresh_token grants.
func (oa *OAuth2API) TokenHandler(c echo.Context) error {
	ctx := c.Request().Context()

	clientID := c.FormValue("client_id")
	clientSecret := c.FormValue("client_secret")

	var (
		tokenResponse *gatehouse.TokenResponse
		err           error
	)

	switch GrantType(c.FormValue("grant_type")) {
	case GrantTypeAuthorizationCode:
		tokenResponse, err = oa.service.ExchangeAuthorizationCode(ctx,
			clientID, clientSecret,
			c.FormValue("code"),
			c.FormValue("redirect_uri"),
			c.FormValue("code_verifier"),
		)
	case GrantTypeRefreshToken:
		tokenResponse, err = oa.service.RefreshToken(ctx,
			clientID, clientSecret,
			c.FormValue("refresh_token"),
		)
	default:
		return c.JSON(http.StatusBadRequest, oauth2errors.NewUnsupportedGrantType())
	}

	if err != nil {
		return writeOAuthError(c, err, "")
	}

	log.Info().
		Str("client_id", clientID).
		Str("grant_type", c.FormValue("grant_type")).
		Int("expires_in", tokenResponse.ExpiresIn).
		Msg("token issued")

	return c.JSON(http.StatusOK, tokenResponse)
}

// RevokeHandler revokes a token. The response is 200 regardless of
// whether the token existed or was already revoked, so the endpoint
// cannot be used to enumerate tokens.
func (oa *OAuth2API) RevokeHandler(c echo.Context) error {
	token := c.FormValue("token")
	if token == "" {
		return c.JSON(http.StatusBadRequest, oauth2errors.NewInvalidRequest("missing token parameter"))
	}

	if err := oa.service.RevokeToken(c.Request().Context(), token); err != nil {
		return writeOAuthError(c, err, "")
	}

	return c.NoContent(http.StatusOK)
}

// IntrospectHandler implements RFC 7662 for authenticated clients.
func (oa *OAuth2API) IntrospectHandler(c echo.Context) error {
	introspection, err := oa.service.IntrospectToken(c.Request().Context(),
		c.FormValue("token"),
		c.FormValue("token_type_hint"),
		c.FormValue("client_id"),
		c.FormValue("client_secret"),
	)
	if err != nil {
		return writeOAuthError(c, err, "")
	}

	return c.JSON(http.StatusOK, introspection)
}

// UserInfoHandler exposes the validated token's principal and scope.
func (oa *OAuth2API) UserInfoHandler(c echo.Context) error {
	info := TokenInfoFromContext(c)
	if info == nil {
		return c.JSON(http.StatusUnauthorized, oauth2errors.NewUnauthorized("missing bearer token"))
	}

	return c.JSON(http.StatusOK, info)
}

// ProtectedHandler is a demonstration protected resource.
func (oa *OAuth2API) ProtectedHandler(c echo.Context) error {
	info := TokenInfoFromContext(c)
	if info == nil {
		return c.JSON(http.StatusUnauthorized, oauth2errors.NewUnauthorized("missing bearer token"))
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Hello, this is a protected resource!",
		"user_id": info.UserID,
		"scope":   info.Scope,
	})
}

// writeOAuthError renders a protocol error with its HTTP status,
// echoing the client's state when one was supplied.
func writeOAuthError(c echo.Context, err error, state string) error {
	var oauthErr *oauth2errors.OAuth2Error
	if !errors.As(err, &oauthErr) {
		log.Error().Err(err).Msg("unexpected engine error")
		return c.JSON(http.StatusInternalServerError, oauth2errors.NewServerError("internal error"))
	}
	if state != "" {
		oauthErr = oauthErr.WithState(state)
	}
	return c.JSON(oauthErr.HTTPStatus(), oauthErr)
}
