package auth_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-repository-bun"
	auth "github.com/goliatone/go-storefront-auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func TestPasswordResets_ConsumeOnce(t *testing.T) {
	f := newServiceFixture(t)
	id := uuid.MustParse(requestReset(t, f, "consume@example.com"))

	repos := auth.NewRepositoryManager(f.db)
	require.NoError(t, repos.Validate())
	ctx := context.Background()

	err := repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		reset, err := repos.PasswordResets().GetResetTx(ctx, tx, id)
		require.NoError(t, err)
		assert.Equal(t, auth.ResetRequestedStatus, reset.Status)
		assert.Equal(t, "consume@example.com", reset.Email)

		require.NoError(t, repos.PasswordResets().ConsumeTx(ctx, tx, id, f.clock.Now()))
		err = repos.PasswordResets().ConsumeTx(ctx, tx, id, f.clock.Now())
		assert.True(t, auth.MatchError(err, auth.ErrResetTokenUsed), "got %v", err)

		reset, err = repos.PasswordResets().GetResetTx(ctx, tx, id)
		require.NoError(t, err)
		assert.Equal(t, auth.ResetChangedStatus, reset.Status)
		assert.NotNil(t, reset.ResetedAt)

		_, err = repos.PasswordResets().GetResetTx(ctx, tx, uuid.New())
		assert.True(t, repository.IsRecordNotFound(err), "got %v", err)
		return nil
	})
	require.NoError(t, err)
}

func TestRepositoryManager_RunInTxHonoursCancellation(t *testing.T) {
	f := newServiceFixture(t)
	repos := auth.NewRepositoryManager(f.db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := repos.RunInTx(ctx, nil, func(context.Context, bun.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
