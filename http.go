package auth

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-storefront-auth/middleware/jwtware"
)

const signInAgainMessage = "please sign in again"

// Response is the success envelope
type Response struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse is the error envelope
type ErrorResponse struct {
	StatusCode int               `json:"statusCode"`
	Message    string            `json:"message"`
	Code       string            `json:"code,omitempty"`
	Errors     map[string]string `json:"errors,omitempty"`
}

// HTTPConfig configures cookies and error rendering
type HTTPConfig struct {
	// CookieSecure sets the Secure flag on credential cookies
	CookieSecure bool
	// CookieDomain is optional
	CookieDomain string
	Debug        bool
}

// RouteAuthenticator owns the credential cookies, the protect middleware
// and error rendering shared by the auth routes.
type RouteAuthenticator struct {
	service *Service
	cfg     HTTPConfig
	now     func() time.Time
	Logger  Logger
	// ErrorHandler renders errors, defaults to the JSON error envelope
	ErrorHandler func(c *fiber.Ctx, err error) error
}

func NewHTTPAuthenticator(service *Service, cfg HTTPConfig) *RouteAuthenticator {
	a := &RouteAuthenticator{
		service: service,
		cfg:     cfg,
		now:     time.Now,
		Logger:  defLogger{},
	}
	a.ErrorHandler = a.defaultErrHandler
	return a
}

// WithClock replaces the clock used for cookie lifetimes
func (a *RouteAuthenticator) WithClock(now func() time.Time) *RouteAuthenticator {
	if now != nil {
		a.now = now
	}
	return a
}

// ProtectedRoute rejects requests without a valid, unrevoked access token.
// The token is read from the Authorization header or the accessToken cookie.
func (a *RouteAuthenticator) ProtectedRoute() fiber.Handler {
	return a.guard("")
}

// RequireRole is ProtectedRoute plus a role floor, callers below minRole get 403.
func (a *RouteAuthenticator) RequireRole(minRole UserRole) fiber.Handler {
	return a.guard(minRole)
}

func (a *RouteAuthenticator) guard(minRole UserRole) fiber.Handler {
	return jwtware.New(jwtware.Config[*JWTClaims]{
		Authenticator:   a.service,
		ContextKey:      ClaimsLocalsKey,
		TokenLookup:     "header:" + fiber.HeaderAuthorization + ",cookie:" + AccessCookieName,
		ContextEnricher: WithClaimsContext,
		ErrorHandler:    a.authErrHandler,
		MinimumRole:     string(minRole),
	})
}

// SetCredentials writes both credential cookies of a login result
func (a *RouteAuthenticator) SetCredentials(c *fiber.Ctx, result *AuthResult) error {
	if result == nil {
		return nil
	}
	a.setCookie(c, RefreshCookieName, result.RefreshToken, result.RefreshExpiresAt)
	a.setCookie(c, AccessCookieName, result.AccessToken, result.AccessExpiresAt)
	return nil
}

// ClearCredentials expires both credential cookies
func (a *RouteAuthenticator) ClearCredentials(c *fiber.Ctx) {
	a.cookieDel(c, RefreshCookieName)
	a.cookieDel(c, AccessCookieName)
}

func (a *RouteAuthenticator) setCookie(c *fiber.Ctx, name, value string, expires time.Time) {
	maxAge := int(expires.Sub(a.now()).Seconds())
	if value == "" || maxAge <= 0 {
		return
	}
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   a.cfg.CookieDomain,
		MaxAge:   maxAge,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   a.cfg.CookieSecure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func (a *RouteAuthenticator) cookieDel(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   a.cfg.CookieDomain,
		MaxAge:   -1,
		Expires:  a.now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.cfg.CookieSecure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

// SignInAgain renders a refresh-class failure. The cause is logged but
// never returned to the client.
func (a *RouteAuthenticator) SignInAgain(c *fiber.Ctx, err error) error {
	a.Logger.Info("credential rejected on %s: %v", c.Path(), err)
	a.ClearCredentials(c)
	return c.Status(http.StatusUnauthorized).JSON(ErrorResponse{
		StatusCode: http.StatusUnauthorized,
		Message:    signInAgainMessage,
	})
}

func (a *RouteAuthenticator) authErrHandler(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, jwtware.ErrJWTMissingOrMalformed):
		return a.ErrorHandler(c, ErrUnauthenticated)
	case errors.Is(err, jwtware.ErrForbidden):
		return a.ErrorHandler(c, ErrForbidden)
	case IsRefreshError(err):
		return a.SignInAgain(c, err)
	}
	return a.ErrorHandler(c, err)
}

func (a *RouteAuthenticator) defaultErrHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(ErrorResponse{
			StatusCode: fe.Code,
			Message:    fe.Message,
		})
	}

	richErr := errors.MapToError(err, errors.DefaultErrorMappers())
	status := statusFor(richErr)

	resp := ErrorResponse{
		StatusCode: status,
		Message:    richErr.Message,
		Code:       richErr.TextCode,
	}

	if status >= http.StatusInternalServerError {
		a.Logger.Error(
			"%s %s failed: %v details=%s",
			c.Method(), c.Path(), err, print.MaybePrettyJSON(richErr.Metadata),
		)
		resp.Message = "internal error"
		resp.Code = ""
	} else {
		a.Logger.Debug("%s %s rejected: %v", c.Method(), c.Path(), err)
		if len(richErr.ValidationErrors) > 0 {
			resp.Errors = richErr.ValidationMap()
		}
	}

	return c.Status(status).JSON(resp)
}

func statusFor(err *errors.Error) int {
	if err.Code >= 400 && err.Code < 600 {
		return err.Code
	}
	switch err.Category {
	case errors.CategoryValidation, errors.CategoryBadInput:
		return http.StatusBadRequest
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryAuthz:
		return http.StatusForbidden
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case errors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
