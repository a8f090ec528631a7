package social

import (
	"context"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-storefront-auth"
)

// LoginService turns a provider profile into a logged in user
type LoginService interface {
	ProviderLogin(ctx context.Context, scope auth.RequestScope, provider auth.ProviderKey, rawProfile []byte) (*auth.AuthResult, error)
}

// HTTPController handles social auth HTTP routes.
type HTTPController struct {
	authenticator *SocialAuthenticator
	service       LoginService
	config        HTTPConfig
}

// HTTPConfig configures the HTTP controller.
type HTTPConfig struct {
	// SuccessRedirect is the default redirect after successful auth
	SuccessRedirect string

	// ErrorRedirect is the redirect for auth errors
	ErrorRedirect string

	// Scope extracts the request scope (default: auth.ScopeFromFiber)
	Scope func(*fiber.Ctx) auth.RequestScope

	// OnLogin writes the issued credentials, usually the refresh cookie
	OnLogin func(*fiber.Ctx, *auth.AuthResult) error

	Logger auth.Logger
}

// NewHTTPController creates a new social auth HTTP controller.
func NewHTTPController(authenticator *SocialAuthenticator, service LoginService, cfg HTTPConfig) *HTTPController {
	if cfg.SuccessRedirect == "" {
		cfg.SuccessRedirect = "/"
	}
	if cfg.ErrorRedirect == "" {
		cfg.ErrorRedirect = "/login?error=auth_failed"
	}
	if cfg.Scope == nil {
		cfg.Scope = auth.ScopeFromFiber
	}
	if cfg.Logger == nil {
		cfg.Logger = auth.NopLogger{}
	}

	return &HTTPController{
		authenticator: authenticator,
		service:       service,
		config:        cfg,
	}
}

// RegisterRoutes registers social auth routes. Register them after any
// static GET routes sharing the group, unknown providers fall through.
func (h *HTTPController) RegisterRoutes(group fiber.Router) {
	group.Get("/providers", h.ListProviders)
	group.Get("/:provider/callback", h.Callback)
	group.Get("/:provider", h.BeginAuth)
}

// ListProviders returns available social providers.
func (h *HTTPController) ListProviders(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "providers",
		"data":    h.authenticator.ListProviders(),
	})
}

// BeginAuth starts the OAuth flow.
func (h *HTTPController) BeginAuth(c *fiber.Ctx) error {
	providerName := c.Params("provider")
	if !h.authenticator.HasProvider(providerName) {
		return c.Next()
	}

	scope := h.config.Scope(c)
	redirect, err := h.authenticator.BeginAuth(c.UserContext(), providerName, h.safeRedirect(c.Query("redirect_url")), scope.SessionID)
	if err != nil {
		return h.fail(c, "begin", err)
	}

	return c.Redirect(redirect.URL, fiber.StatusTemporaryRedirect)
}

// Callback handles the OAuth callback.
func (h *HTTPController) Callback(c *fiber.Ctx) error {
	providerName := c.Params("provider")
	code := c.Query("code")
	state := c.Query("state")

	if errCode := c.Query("error"); errCode != "" {
		redirectURL := appendQueryParam(h.config.ErrorRedirect, "oauth_error", errCode)
		if desc := c.Query("error_description"); desc != "" {
			redirectURL = appendQueryParam(redirectURL, "desc", desc)
		}
		return c.Redirect(redirectURL, fiber.StatusTemporaryRedirect)
	}

	if code == "" || state == "" {
		return c.Redirect(appendQueryParam(h.config.ErrorRedirect, "error", "missing_params"), fiber.StatusTemporaryRedirect)
	}

	ctx := c.UserContext()

	cb, err := h.authenticator.CompleteAuth(ctx, providerName, code, state)
	if err != nil {
		return h.fail(c, "complete", err)
	}

	scope := h.config.Scope(c)
	if scope.SessionID == "" {
		scope.SessionID = cb.SessionID
	}

	result, err := h.service.ProviderLogin(ctx, scope, cb.Provider, cb.Profile)
	if err != nil {
		return h.fail(c, "login", err)
	}

	if h.config.OnLogin != nil {
		if err := h.config.OnLogin(c, result); err != nil {
			return h.fail(c, "session", err)
		}
	}

	redirectURL := h.safeRedirect(cb.RedirectURL)
	return c.Redirect(redirectURL, fiber.StatusTemporaryRedirect)
}

func (h *HTTPController) fail(c *fiber.Ctx, stage string, err error) error {
	h.config.Logger.Warn("social %s failed for %s: %v", stage, c.Params("provider"), err)

	code := "auth_failed"
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode != "" {
		code = strings.ToLower(richErr.TextCode)
	}
	return c.Redirect(appendQueryParam(h.config.ErrorRedirect, "error", code), fiber.StatusTemporaryRedirect)
}

// safeRedirect only allows local paths
func (h *HTTPController) safeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return h.config.SuccessRedirect
	}
	return target
}

func appendQueryParam(rawURL, key, value string) string {
	if rawURL == "" {
		return ""
	}

	parsed, err := url.Parse(rawURL)
	if err == nil {
		query := parsed.Query()
		query.Set(key, value)
		parsed.RawQuery = query.Encode()
		return parsed.String()
	}

	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + url.QueryEscape(key) + "=" + url.QueryEscape(value)
}
