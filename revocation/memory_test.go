package revocation_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-storefront-auth/revocation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_LazyExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := revocation.NewMemoryStore(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.Blacklist(ctx, "token-a", time.Minute))
	require.NoError(t, store.Blacklist(ctx, "token-b", 0))

	ok, err := store.IsBlacklisted(ctx, "token-a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, store.Len())

	now = now.Add(time.Minute)
	ok, err = store.IsBlacklisted(ctx, "token-a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_Claim(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := revocation.NewMemoryStore(func() time.Time { return now })
	ctx := context.Background()

	ok, err := store.Claim(ctx, "token-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Claim(ctx, "token-a", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = store.Claim(ctx, "token-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFingerprint(t *testing.T) {
	a := revocation.Fingerprint("token-a")
	assert.Equal(t, a, revocation.Fingerprint("token-a"))
	assert.NotEqual(t, a, revocation.Fingerprint("token-b"))
	assert.Len(t, a, 43)
	assert.NotContains(t, a, "=")
}
