package echo

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	gatehouse "github.com/gatehouse-dev/gatehouse"
	"github.com/gatehouse-dev/gatehouse/domain"
	oauth2errors "github.com/gatehouse-dev/gatehouse/errors"
)

// tokenInfoKey is the echo context key the bearer middleware stores the
// validated token context under.
const tokenInfoKey = "gatehouse.token_info"

// BearerAuth validates the Authorization header against the resource
// guard and stores the token context for the handler. Requests without
// a valid bearer token get 401.
func BearerAuth(service *gatehouse.OAuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			scheme, token, found := strings.Cut(header, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
				return c.JSON(http.StatusUnauthorized, oauth2errors.NewUnauthorized("missing bearer token"))
			}

			info, err := service.ValidateBearer(c.Request().Context(), token)
			if err != nil {
				return writeOAuthError(c, err, "")
			}

			c.Set(tokenInfoKey, info)
			return next(c)
		}
	}
}

// TokenInfoFromContext returns the token context stored by BearerAuth,
// or nil when the middleware did not run.
func TokenInfoFromContext(c echo.Context) *domain.TokenInfo {
	info, _ := c.Get(tokenInfoKey).(*domain.TokenInfo)
	return info
}

// html escapes a string for embedding into the login form.
func html(s string) string {
	return template.HTMLEscapeString(s)
}
