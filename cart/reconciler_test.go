package cart_test

import (
	"context"
	"sync"
	"testing"

	"github.com/goliatone/go-storefront-auth/cart"
	"github.com/goliatone/go-storefront-auth/migrations"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func setupReconciler(t *testing.T) (*cart.Reconciler, *bun.DB) {
	t.Helper()
	db, err := migrations.Open(context.Background(), migrations.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return cart.NewReconciler(db), db
}

func seedUser(t *testing.T, db *bun.DB) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.NewRaw(
		"INSERT INTO users (id, email, name, role) VALUES (?, ?, ?, ?)",
		id.String(), id.String()+"@example.com", "Shopper", "CUSTOMER",
	).Exec(context.Background())
	require.NoError(t, err)
	return id
}

func TestMergeCartsOnLogin_SumsQuantities(t *testing.T) {
	r, db := setupReconciler(t)
	ctx := context.Background()
	userID := seedUser(t, db)

	owned, err := r.UserCart(ctx, userID)
	require.NoError(t, err)
	require.NoError(t, r.AddItem(ctx, owned.ID, "A", 2))

	anon, err := r.SessionCart(ctx, "sess-1")
	require.NoError(t, err)
	require.NoError(t, r.AddItem(ctx, anon.ID, "A", 1))
	require.NoError(t, r.AddItem(ctx, anon.ID, "B", 3))

	require.NoError(t, r.MergeCartsOnLogin(ctx, "sess-1", userID))

	got, err := r.Quantities(ctx, owned.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"A": 3, "B": 3}, got)

	leftover, err := r.FindBySession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, leftover)

	anonItems, err := r.Quantities(ctx, anon.ID)
	require.NoError(t, err)
	assert.Empty(t, anonItems)
}

func TestMergeCartsOnLogin_RekeysWhenUserHasNoCart(t *testing.T) {
	r, db := setupReconciler(t)
	ctx := context.Background()
	userID := seedUser(t, db)

	anon, err := r.SessionCart(ctx, "sess-2")
	require.NoError(t, err)
	require.NoError(t, r.AddItem(ctx, anon.ID, "A", 1))

	require.NoError(t, r.MergeCartsOnLogin(ctx, "sess-2", userID))

	owned, err := r.FindByUser(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, owned)
	assert.Equal(t, anon.ID, owned.ID)
	assert.Empty(t, owned.SessionID)

	got, err := r.Quantities(ctx, owned.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"A": 1}, got)
}

func TestMergeCartsOnLogin_NoAnonymousCart(t *testing.T) {
	r, db := setupReconciler(t)
	ctx := context.Background()
	userID := seedUser(t, db)

	owned, err := r.UserCart(ctx, userID)
	require.NoError(t, err)
	require.NoError(t, r.AddItem(ctx, owned.ID, "A", 2))

	require.NoError(t, r.MergeCartsOnLogin(ctx, "missing", userID))
	require.NoError(t, r.MergeCartsOnLogin(ctx, "", userID))

	got, err := r.Quantities(ctx, owned.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"A": 2}, got)
}

func TestMergeCartsOnLogin_IsIdempotent(t *testing.T) {
	r, db := setupReconciler(t)
	ctx := context.Background()
	userID := seedUser(t, db)

	owned, err := r.UserCart(ctx, userID)
	require.NoError(t, err)
	require.NoError(t, r.AddItem(ctx, owned.ID, "A", 2))
	anon, err := r.SessionCart(ctx, "sess-3")
	require.NoError(t, err)
	require.NoError(t, r.AddItem(ctx, anon.ID, "A", 1))

	require.NoError(t, r.MergeCartsOnLogin(ctx, "sess-3", userID))
	require.NoError(t, r.MergeCartsOnLogin(ctx, "sess-3", userID))

	got, err := r.Quantities(ctx, owned.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"A": 3}, got)
}

func TestMergeCartsOnLogin_OverlappingLoginsMergeOnce(t *testing.T) {
	r, db := setupReconciler(t)
	ctx := context.Background()
	userID := seedUser(t, db)

	owned, err := r.UserCart(ctx, userID)
	require.NoError(t, err)
	require.NoError(t, r.AddItem(ctx, owned.ID, "A", 1))
	anon, err := r.SessionCart(ctx, "sess-race")
	require.NoError(t, err)
	require.NoError(t, r.AddItem(ctx, anon.ID, "A", 2))
	require.NoError(t, r.AddItem(ctx, anon.ID, "B", 1))

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = r.MergeCartsOnLogin(ctx, "sess-race", userID)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	got, err := r.Quantities(ctx, owned.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"A": 3, "B": 1}, got)
}

func TestAddItem(t *testing.T) {
	r, _ := setupReconciler(t)
	ctx := context.Background()

	c, err := r.SessionCart(ctx, "sess-4")
	require.NoError(t, err)

	again, err := r.SessionCart(ctx, "sess-4")
	require.NoError(t, err)
	assert.Equal(t, c.ID, again.ID)

	require.NoError(t, r.AddItem(ctx, c.ID, "A", 1))
	require.NoError(t, r.AddItem(ctx, c.ID, "A", 4))
	assert.ErrorIs(t, r.AddItem(ctx, c.ID, "A", 0), cart.ErrInvalidQuantity)

	got, err := r.Quantities(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"A": 5}, got)
}

func TestMergeCartsOnLogin_SurfacesStorageErrors(t *testing.T) {
	r, db := setupReconciler(t)
	require.NoError(t, db.Close())

	err := r.MergeCartsOnLogin(context.Background(), "sess-5", uuid.New())
	assert.Error(t, err)
}
