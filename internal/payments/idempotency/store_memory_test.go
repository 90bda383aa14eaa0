package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSetRoundTrip(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	got, err := store.Get(ctx, "fresh-key")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Set(ctx, "fresh-key", []byte(`{"id":"p1"}`)))

	got, err = store.Get(ctx, "fresh-key")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"id":"p1"}`), got)
}

func TestResponseExpires(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	current := time.Unix(1_700_000_000, 0)
	store.SetClock(func() time.Time { return current })

	require.NoError(t, store.Set(ctx, "k", []byte("cached")))

	current = current.Add(ResponseTTL + time.Second)
	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClaimElectsSingleWinner(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	won, err := store.Claim(ctx, "k")
	require.NoError(t, err)
	assert.True(t, won)

	won, err = store.Claim(ctx, "k")
	require.NoError(t, err)
	assert.False(t, won)

	// A released claim can be re-won.
	require.NoError(t, store.Release(ctx, "k"))
	won, err = store.Claim(ctx, "k")
	require.NoError(t, err)
	assert.True(t, won)
}

func TestClaimExpires(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	current := time.Unix(1_700_000_000, 0)
	store.SetClock(func() time.Time { return current })

	won, err := store.Claim(ctx, "k")
	require.NoError(t, err)
	require.True(t, won)

	// A crashed winner's claim self-cleans after ClaimTTL.
	current = current.Add(ClaimTTL + time.Second)
	won, err = store.Claim(ctx, "k")
	require.NoError(t, err)
	assert.True(t, won)
}

func TestClaimAndResponseAreDistinctKeys(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	won, err := store.Claim(ctx, "k")
	require.NoError(t, err)
	require.True(t, won)

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}
