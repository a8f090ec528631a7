package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	// RefreshCookieName carries the refresh token
	RefreshCookieName = "refreshToken"
	// AccessCookieName is accepted by sign-out and the protect middleware
	AccessCookieName = "accessToken"
	// SessionCookieName is the anonymous fiber session cookie
	SessionCookieName = "session_id"

	// ClaimsLocalsKey is where the protect middleware stores the claims
	ClaimsLocalsKey = "user"
	// SessionLocalsKey is where the session middleware stores the session id
	SessionLocalsKey = "session_id"
)

var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithClaimsContext sets the claims in the given context
func WithClaimsContext(ctx context.Context, claims *JWTClaims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, claims)
}

// GetClaims extracts the claims from the standard context
func GetClaims(ctx context.Context) (*JWTClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(*JWTClaims)
	return raw, ok && raw != nil
}

// GetFiberClaims extracts the claims stored by the protect middleware
func GetFiberClaims(c *fiber.Ctx) (*JWTClaims, bool) {
	raw, ok := c.Locals(ClaimsLocalsKey).(*JWTClaims)
	return raw, ok && raw != nil
}

// BearerToken returns the token of an "Authorization: Bearer" header
func BearerToken(c *fiber.Ctx) string {
	header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// ScopeFromFiber collects the request scope the service operates on. The
// values are untrusted until the service verifies them.
func ScopeFromFiber(c *fiber.Ctx) RequestScope {
	scope := RequestScope{
		RefreshToken: c.Cookies(RefreshCookieName),
		AccessToken:  BearerToken(c),
	}
	if scope.AccessToken == "" {
		scope.AccessToken = c.Cookies(AccessCookieName)
	}

	if id, ok := c.Locals(SessionLocalsKey).(string); ok {
		scope.SessionID = id
	} else {
		scope.SessionID = c.Cookies(SessionCookieName)
	}

	if claims, ok := GetFiberClaims(c); ok {
		scope.SubjectID = claims.UserID()
	}

	return scope
}
