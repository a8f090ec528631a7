package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-storefront-auth"
	"github.com/stretchr/testify/assert"
)

func TestJWTClaims_UserID(t *testing.T) {
	t.Run("returns UID when present", func(t *testing.T) {
		claims := &auth.JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "user123"},
			UID:              "uid456",
		}
		assert.Equal(t, "uid456", claims.UserID())
	})

	t.Run("fallback to subject when UID is empty", func(t *testing.T) {
		claims := &auth.JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "user123"},
		}
		assert.Equal(t, "user123", claims.UserID())
	})
}

func TestJWTClaims_Roles(t *testing.T) {
	claims := &auth.JWTClaims{UserRole: string(auth.RoleVendor)}

	assert.True(t, claims.HasRole("VENDOR"))
	assert.False(t, claims.HasRole("ADMIN"))
	assert.True(t, claims.IsAtLeast("CUSTOMER"))
	assert.True(t, claims.IsAtLeast("VENDOR"))
	assert.False(t, claims.IsAtLeast("ADMIN"))

	empty := &auth.JWTClaims{}
	assert.False(t, empty.HasRole(""))
}

func TestJWTClaims_Times(t *testing.T) {
	empty := &auth.JWTClaims{}
	assert.True(t, empty.Expires().IsZero())
	assert.True(t, empty.IssuedAt().IsZero())
	assert.True(t, empty.Ceiling().IsZero())

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	claims := &auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		AbsExp: jwt.NewNumericDate(now.Add(24 * time.Hour)),
	}
	assert.Equal(t, now, claims.IssuedAt())
	assert.Equal(t, now.Add(time.Hour), claims.Expires())
	assert.Equal(t, now.Add(24*time.Hour), claims.Ceiling())
}

func TestJWTClaims_CeilingAndRemaining(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	refresh := &auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
		AbsExp:           jwt.NewNumericDate(now.Add(2 * time.Hour)),
	}

	assert.False(t, refresh.PastCeiling(now))
	assert.True(t, refresh.PastCeiling(now.Add(2*time.Hour+time.Second)))
	assert.Equal(t, time.Hour, refresh.Remaining(now))
	assert.Negative(t, refresh.Remaining(now.Add(90*time.Minute)))

	access := &auth.JWTClaims{}
	assert.False(t, access.PastCeiling(now.Add(24*365*time.Hour)))
	assert.Zero(t, access.Remaining(now))

	var missing *auth.JWTClaims
	assert.Zero(t, missing.Remaining(now))
}
