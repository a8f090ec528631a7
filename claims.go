package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType discriminates the tokens minted by the codec
type TokenType string

const (
	TokenTypeAccess      TokenType = "access"
	TokenTypeRefresh     TokenType = "refresh"
	TokenTypeVerifyEmail TokenType = "verify_email"
)

// AuthClaims represents structured JWT claims
type AuthClaims interface {
	Subject() string
	UserID() string
	Role() string
	TokenType() TokenType
	HasRole(role string) bool
	IsAtLeast(minRole string) bool
	Expires() time.Time
	IssuedAt() time.Time
	Ceiling() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims shared by
// access, refresh and verification tokens.
type JWTClaims struct {
	jwt.RegisteredClaims
	UID      string           `json:"uid,omitempty"`
	UserRole string           `json:"role,omitempty"`
	Type     TokenType        `json:"typ"`
	AbsExp   *jwt.NumericDate `json:"absExp,omitempty"` // refresh chain ceiling
	Email    string           `json:"email,omitempty"`  // verify_email only
}

var _ AuthClaims = (*JWTClaims)(nil)

func (c *JWTClaims) Subject() string { return c.RegisteredClaims.Subject }

// UserID prefers uid and falls back to sub for tokens minted before uid
// was added.
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

func (c *JWTClaims) Role() string         { return c.UserRole }
func (c *JWTClaims) TokenType() TokenType { return c.Type }

func (c *JWTClaims) HasRole(role string) bool {
	return c.UserRole != "" && c.UserRole == role
}

// IsAtLeast compares on the CUSTOMER < VENDOR < ADMIN < SUPERADMIN ladder
func (c *JWTClaims) IsAtLeast(minRole string) bool {
	return UserRole(c.UserRole).IsAtLeast(UserRole(minRole))
}

func (c *JWTClaims) Expires() time.Time  { return numericTime(c.ExpiresAt) }
func (c *JWTClaims) IssuedAt() time.Time { return numericTime(c.RegisteredClaims.IssuedAt) }

// Ceiling is the absolute end of a refresh chain, zero for other token types
func (c *JWTClaims) Ceiling() time.Time { return numericTime(c.AbsExp) }

// PastCeiling reports whether a refresh chain outlived its absolute limit.
// Tokens without a ceiling never are.
func (c *JWTClaims) PastCeiling(now time.Time) bool {
	ceiling := c.Ceiling()
	return !ceiling.IsZero() && now.After(ceiling)
}

// Remaining is exp - now, negative once expired and zero without exp. It is
// the TTL a revocation entry needs.
func (c *JWTClaims) Remaining(now time.Time) time.Duration {
	if c == nil || c.ExpiresAt == nil {
		return 0
	}
	return c.Expires().Sub(now)
}

func numericTime(d *jwt.NumericDate) time.Time {
	if d == nil {
		return time.Time{}
	}
	return d.Time.UTC()
}
