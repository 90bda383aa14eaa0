package window

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAndConsumeDecrementsRemaining(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	// Remaining decreases by one per consumed request; the request over the
	// limit is refused and does not consume.
	for i := 0; i < 5; i++ {
		info, err := store.CheckAndConsume(ctx, "tenant:t1", 5, 60)
		require.NoError(t, err)
		assert.False(t, info.IsExceeded)
		assert.Equal(t, 5-i-1, info.Remaining)
	}

	info, err := store.CheckAndConsume(ctx, "tenant:t1", 5, 60)
	require.NoError(t, err)
	assert.True(t, info.IsExceeded)
	assert.Equal(t, 0, info.Remaining)

	// A refused request must not have inserted a timestamp: peek still sees
	// exactly the limit.
	peeked, err := store.Peek(ctx, "tenant:t1", 5, 60)
	require.NoError(t, err)
	assert.Equal(t, 0, peeked.Remaining)
	assert.True(t, peeked.IsExceeded)
}

func TestWindowExpiryResetsQuota(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	current := time.Unix(1_700_000_000, 0)
	store.SetClock(func() time.Time { return current })

	for i := 0; i < 3; i++ {
		_, err := store.CheckAndConsume(ctx, "ip:203.0.113.7", 3, 60)
		require.NoError(t, err)
	}
	info, err := store.CheckAndConsume(ctx, "ip:203.0.113.7", 3, 60)
	require.NoError(t, err)
	require.True(t, info.IsExceeded)

	// Advance past the window: quota fully resets.
	current = current.Add(61 * time.Second)
	info, err = store.CheckAndConsume(ctx, "ip:203.0.113.7", 3, 60)
	require.NoError(t, err)
	assert.False(t, info.IsExceeded)
	assert.Equal(t, 2, info.Remaining)
}

func TestResetAtTracksOldestEntry(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	current := time.Unix(1_700_000_000, 0)
	store.SetClock(func() time.Time { return current })

	info, err := store.CheckAndConsume(ctx, "tenant:t2", 10, 60)
	require.NoError(t, err)
	assert.Equal(t, current.Unix()+60, info.ResetAt)

	// A later request inherits the oldest survivor's reset time.
	current = current.Add(20 * time.Second)
	info, err = store.CheckAndConsume(ctx, "tenant:t2", 10, 60)
	require.NoError(t, err)
	assert.Equal(t, current.Unix()+40, info.ResetAt)
}

func TestEmptyWindowResetAt(t *testing.T) {
	store := NewMemory()
	current := time.Unix(1_700_000_000, 0)
	store.SetClock(func() time.Time { return current })

	info, err := store.Peek(context.Background(), "tenant:none", 10, 60)
	require.NoError(t, err)
	assert.Equal(t, current.Unix()+60, info.ResetAt)
	assert.Equal(t, 10, info.Remaining)
}

func TestConcurrentConsumersCannotBypassQuota(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	const limit = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < 2*limit; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			info, err := store.CheckAndConsume(ctx, "tenant:burst", limit, 60)
			require.NoError(t, err)
			if !info.IsExceeded {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, allowed)
}

func TestIdentifiersAreIsolated(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	_, err := store.CheckAndConsume(ctx, "tenant:a", 1, 60)
	require.NoError(t, err)
	info, err := store.CheckAndConsume(ctx, "tenant:a", 1, 60)
	require.NoError(t, err)
	require.True(t, info.IsExceeded)

	other, err := store.CheckAndConsume(ctx, "tenant:b", 1, 60)
	require.NoError(t, err)
	assert.False(t, other.IsExceeded)
}
