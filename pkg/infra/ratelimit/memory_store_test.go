package ratelimit_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	domain "github.com/cinescope/aiguard/pkg/domain/ratelimit"
	"github.com/cinescope/aiguard/pkg/infra/ratelimit"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestMemoryStore_AllowsUpToLimit(t *testing.T) {
	store := ratelimit.NewMemoryStore(newTestLogger(), nil)
	quota := domain.Quota{Limit: 3, Window: time.Hour}
	now := time.Now()

	for i := 0; i < 3; i++ {
		res, err := store.CheckAndIncrement(context.Background(), "key", quota, now)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 3, res.Limit)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := store.CheckAndIncrement(context.Background(), "key", quota, now)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, now.Add(time.Hour), res.ResetAt)
}

func TestMemoryStore_NoDoubleAdmissionUnderConcurrency(t *testing.T) {
	store := ratelimit.NewMemoryStore(newTestLogger(), nil)
	quota := domain.Quota{Limit: 10, Window: time.Hour}
	now := time.Now()

	const callers = 50
	var wg sync.WaitGroup
	allowed := make(chan bool, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.CheckAndIncrement(context.Background(), "shared", quota, now)
			assert.NoError(t, err)
			allowed <- res.Allowed
		}()
	}
	wg.Wait()
	close(allowed)

	admitted := 0
	for ok := range allowed {
		if ok {
			admitted++
		}
	}
	assert.Equal(t, quota.Limit, admitted)
}

func TestMemoryStore_WindowReset(t *testing.T) {
	store := ratelimit.NewMemoryStore(newTestLogger(), nil)
	quota := domain.Quota{Limit: 1, Window: time.Minute}
	now := time.Now()

	res, err := store.CheckAndIncrement(context.Background(), "key", quota, now)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = store.CheckAndIncrement(context.Background(), "key", quota, now.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	// Past resetTime the window starts over regardless of prior exhaustion.
	later := now.Add(time.Minute + time.Second)
	res, err = store.CheckAndIncrement(context.Background(), "key", quota, later)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, later.Add(time.Minute), res.ResetAt)
}

func TestMemoryStore_EvictsLeastRecentlyAccessedAtCapacity(t *testing.T) {
	store := ratelimit.NewMemoryStore(newTestLogger(), &ratelimit.MemoryStoreOpts{MaxEntries: 2})
	quota := domain.Quota{Limit: 10, Window: time.Hour}
	now := time.Now()

	_, err := store.CheckAndIncrement(context.Background(), "a", quota, now)
	require.NoError(t, err)
	_, err = store.CheckAndIncrement(context.Background(), "b", quota, now)
	require.NoError(t, err)

	// Touch "a" so "b" becomes the eviction candidate.
	_, err = store.CheckAndIncrement(context.Background(), "a", quota, now)
	require.NoError(t, err)

	_, err = store.CheckAndIncrement(context.Background(), "c", quota, now)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())

	// "a" kept its count, "b" was evicted and starts fresh.
	res, err := store.CheckAndIncrement(context.Background(), "a", quota, now)
	require.NoError(t, err)
	assert.Equal(t, quota.Limit-3, res.Remaining)
}

func TestMemoryStore_SweepRemovesExpiredEntries(t *testing.T) {
	store := ratelimit.NewMemoryStore(newTestLogger(), &ratelimit.MemoryStoreOpts{
		SweepInterval: 10 * time.Millisecond,
	})
	quota := domain.Quota{Limit: 5, Window: 5 * time.Millisecond}

	for i := 0; i < 10; i++ {
		_, err := store.CheckAndIncrement(context.Background(), fmt.Sprintf("key-%d", i), quota, time.Now())
		require.NoError(t, err)
	}
	require.Equal(t, 10, store.Len())

	store.Start()
	defer func() { _ = store.Stop() }()

	assert.Eventually(t, func() bool {
		return store.Len() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryStore_StopIsIdempotent(t *testing.T) {
	store := ratelimit.NewMemoryStore(newTestLogger(), nil)
	store.Start()
	require.NoError(t, store.Stop())
	require.NoError(t, store.Stop())
}
