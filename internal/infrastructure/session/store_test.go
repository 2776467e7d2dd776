package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alchemorsel/pantrylens/internal/domain/kitchen"
	"github.com/alchemorsel/pantrylens/test/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestStore_LoadUnknownSessionIsIdle(t *testing.T) {
	store := NewStore(testutils.NewMockCacheRepository(), time.Hour, zaptest.NewLogger(t))

	board, err := store.Load(context.Background(), "abc")

	require.NoError(t, err)
	assert.Equal(t, "abc", board.SessionID)
	assert.Equal(t, kitchen.PhaseIdle, board.Phase)
}

func TestStore_SaveLoad(t *testing.T) {
	cache := testutils.NewMockCacheRepository()
	store := NewStore(cache, time.Hour, zaptest.NewLogger(t))
	ctx := context.Background()

	board := kitchen.NewBoard("abc")
	list := board.CompleteAnalysis([]string{"egg", "rice"})
	board.Notify(kitchen.VariantDefault, "Analysis Complete", "Found 2 ingredient(s).")
	require.NoError(t, store.Save(ctx, board))

	exists, err := cache.Exists(ctx, "session:abc")
	require.NoError(t, err)
	assert.True(t, exists)

	loaded, err := store.Load(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, list.ID, loaded.Ingredients.ID)
	assert.Equal(t, kitchen.PhaseRecipesLoading, loaded.Phase)
	assert.Len(t, loaded.Notifications, 1)

	require.NoError(t, store.Delete(ctx, "abc"))
	fresh, err := store.Load(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, fresh.Ingredients.IsZero())
}

func TestStore_CorruptBoardIsReplaced(t *testing.T) {
	cache := testutils.NewMockCacheRepository()
	store := NewStore(cache, time.Hour, zaptest.NewLogger(t))
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "session:abc", []byte("{not json"), time.Hour))

	board, err := store.Load(ctx, "abc")

	require.NoError(t, err)
	assert.Equal(t, kitchen.PhaseIdle, board.Phase)
}

func TestStore_BackendErrorsPropagate(t *testing.T) {
	cache := testutils.NewMockCacheRepository()
	cache.FailWith = errors.New("connection refused")
	store := NewStore(cache, time.Hour, zaptest.NewLogger(t))

	_, err := store.Load(context.Background(), "abc")
	assert.ErrorIs(t, err, cache.FailWith)

	err = store.Save(context.Background(), kitchen.NewBoard("abc"))
	assert.ErrorIs(t, err, cache.FailWith)
}
