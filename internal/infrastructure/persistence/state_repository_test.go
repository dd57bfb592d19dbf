package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavechat/client/internal/domain/shared"
)

func TestStateRepository(t *testing.T) {
	repo := NewGormStateRepository(testDB(t))
	ctx := context.Background()

	t.Run("get missing key is not found", func(t *testing.T) {
		_, err := repo.Get(ctx, "auth.token")
		require.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "auth.token", "tok-1"))
		value, err := repo.Get(ctx, "auth.token")
		require.NoError(t, err)
		assert.Equal(t, "tok-1", value)
	})

	t.Run("set overwrites", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "auth.token", "tok-2"))
		value, err := repo.Get(ctx, "auth.token")
		require.NoError(t, err)
		assert.Equal(t, "tok-2", value)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "auth.token"))
		_, err := repo.Get(ctx, "auth.token")
		require.ErrorIs(t, err, shared.ErrNotFound)
		require.NoError(t, repo.Delete(ctx, "auth.token"))
	})
}
