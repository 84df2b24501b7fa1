//go:build integration

package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"platewatch/internal/violation/models"
	"platewatch/internal/violation/ports"
	"platewatch/pkg/testutil/containers"
)

func TestRedisStoreIntegration(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	store := New(rc.Client)
	ctx := context.Background()

	key := models.RecordKey{Plate: "MH12DE1433", Phone: "+15550101", Email: "owner@example.com"}
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("find missing", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		_, err := store.Find(ctx, key)
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})

	t.Run("create then find round-trips the log", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		require.NoError(t, store.CreateWithAttempt(ctx, key, now))

		rec, err := store.Find(ctx, key)
		require.NoError(t, err)
		require.Len(t, rec.NotificationLog, 1)
		assert.Equal(t, now, rec.NotificationLog[0])

		assert.ErrorIs(t, store.CreateWithAttempt(ctx, key, now), ports.ErrAlreadyExists)

		ok, err := store.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("append enforces the daily quota", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		require.NoError(t, store.CreateWithAttempt(ctx, key, now))

		for i := 1; i < 5; i++ {
			require.NoError(t, store.AppendAttempt(ctx, key, now.Add(time.Duration(i)*time.Minute), 5))
		}
		assert.ErrorIs(t, store.AppendAttempt(ctx, key, now.Add(time.Hour), 5), ports.ErrQuotaExceeded)
		assert.NoError(t, store.AppendAttempt(ctx, key, now.AddDate(0, 0, 1), 5))
	})

	t.Run("concurrent appends admit exactly the remaining quota", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		require.NoError(t, store.CreateWithAttempt(ctx, key, now))

		const workers = 24
		const limit = 8

		var wg sync.WaitGroup
		var mu sync.Mutex
		admitted := 0
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := store.AppendAttempt(ctx, key, now.Add(time.Duration(i)*time.Second), limit)
				if err == nil {
					mu.Lock()
					admitted++
					mu.Unlock()
				} else {
					assert.ErrorIs(t, err, ports.ErrQuotaExceeded)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, limit-1, admitted)
	})
}
