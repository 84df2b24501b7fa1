//go:build integration

package postgres

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

func TestPostgresStoreIntegration(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	store := New(pc.DB)
	ctx := context.Background()

	key := models.RecordKey{Plate: "DL8CAF5031", Phone: "+15550102", Email: ""}
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("find missing", func(t *testing.T) {
		require.NoError(t, pc.Truncate(ctx))
		_, err := store.Find(ctx, key)
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})

	t.Run("create then find round-trips the log", func(t *testing.T) {
		require.NoError(t, pc.Truncate(ctx))
		require.NoError(t, store.CreateWithAttempt(ctx, key, now))

		rec, err := store.Find(ctx, key)
		require.NoError(t, err)
		require.Len(t, rec.NotificationLog, 1)
		assert.True(t, rec.NotificationLog[0].Equal(now))
		assert.True(t, rec.CreatedAt.Equal(now))

		assert.ErrorIs(t, store.CreateWithAttempt(ctx, key, now), ports.ErrAlreadyExists)
	})

	t.Run("duplicate insert outside ON CONFLICT surfaces as unique violation", func(t *testing.T) {
		require.NoError(t, pc.Truncate(ctx))
		require.NoError(t, store.CreateWithAttempt(ctx, key, now))

		_, err := pc.DB.ExecContext(ctx,
			`INSERT INTO violation_records (plate, phone, email, created_at) VALUES ($1, $2, $3, $4)`,
			key.Plate, key.Phone, key.Email, now)
		assert.True(t, IsUniqueViolation(err))
	})

	t.Run("append enforces the daily quota", func(t *testing.T) {
		require.NoError(t, pc.Truncate(ctx))
		require.NoError(t, store.CreateWithAttempt(ctx, key, now))

		for i := 1; i < 5; i++ {
			require.NoError(t, store.AppendAttempt(ctx, key, now.Add(time.Duration(i)*time.Minute), 5))
		}
		assert.ErrorIs(t, store.AppendAttempt(ctx, key, now.Add(time.Hour), 5), ports.ErrQuotaExceeded)
		assert.NoError(t, store.AppendAttempt(ctx, key, now.AddDate(0, 0, 1), 5))
	})

	t.Run("concurrent appends admit exactly the remaining quota", func(t *testing.T) {
		require.NoError(t, pc.Truncate(ctx))
		require.NoError(t, store.CreateWithAttempt(ctx, key, now))

		const workers = 16
		const limit = 6

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
