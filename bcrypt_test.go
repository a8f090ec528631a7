package auth_test

import (
	"testing"

	"github.com/goliatone/go-storefront-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_HashPassword(t *testing.T) {
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "Valid password", password: "securePassword123!"},
		{name: "Empty password", password: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := hasher.HashPassword(tt.password)

			if tt.wantErr {
				assert.True(t, auth.MatchError(err, auth.ErrNoEmptyString))
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, hash)
			assert.NoError(t, hasher.ComparePasswordAndHash(tt.password, hash))
		})
	}
}

func TestBcryptHasher_Mismatch(t *testing.T) {
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)

	hash, err := hasher.HashPassword("testPassword123!")
	require.NoError(t, err)

	err = hasher.ComparePasswordAndHash("wrong", hash)
	assert.True(t, auth.MatchError(err, auth.ErrInvalidCredentials))

	err = hasher.ComparePasswordAndHash("testPassword123!", "not-a-hash")
	assert.Error(t, err)
	assert.False(t, auth.MatchError(err, auth.ErrInvalidCredentials))
}

func TestNewBcryptHasher_ClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, auth.NewBcryptHasher(0).Cost)
	assert.Equal(t, bcrypt.DefaultCost, auth.NewBcryptHasher(99).Cost)
	assert.Equal(t, bcrypt.MinCost, auth.NewBcryptHasher(bcrypt.MinCost).Cost)
}
