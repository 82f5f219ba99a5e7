package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Moshfiqmoon/Championyourpicks/internal/cache"
	"github.com/Moshfiqmoon/Championyourpicks/internal/config"
)

func setupStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	c, err := cache.InitServer(context.Background(), config.RedisConnection{
		AddressRedis: mr.Addr(),
		DialTimeout:  time.Second,
		TimeoutRedis: time.Second,
	})
	require.NoError(t, err)
	return New(c, time.Minute), mr
}

func TestStore_SetGetClear(t *testing.T) {
	store, _ := setupStore(t)

	step, err := store.Get(42)
	require.NoError(t, err)
	assert.Empty(t, step)

	require.NoError(t, store.Set(42, StepAwaitingReferralCode))

	step, err = store.Get(42)
	require.NoError(t, err)
	assert.Equal(t, StepAwaitingReferralCode, step)

	require.NoError(t, store.Clear(42))

	step, err = store.Get(42)
	require.NoError(t, err)
	assert.Empty(t, step)
}

func TestStore_StatesAreIsolatedPerUser(t *testing.T) {
	store, _ := setupStore(t)

	require.NoError(t, store.Set(1, StepAwaitingBroadcastText))
	require.NoError(t, store.Set(2, StepAwaitingRemovalTarget))

	step, err := store.Get(1)
	require.NoError(t, err)
	assert.Equal(t, StepAwaitingBroadcastText, step)

	step, err = store.Get(2)
	require.NoError(t, err)
	assert.Equal(t, StepAwaitingRemovalTarget, step)
}

func TestStore_AbandonedDialogExpires(t *testing.T) {
	store, mr := setupStore(t)

	require.NoError(t, store.Set(42, StepAwaitingActivationParams))

	mr.FastForward(2 * time.Minute)

	step, err := store.Get(42)
	require.NoError(t, err)
	assert.Empty(t, step)
}
