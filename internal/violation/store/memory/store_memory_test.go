package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"platewatch/internal/violation/models"
	"platewatch/internal/violation/ports"
)

var testKey = models.RecordKey{Plate: "KA01AB1234", Phone: "+15550100", Email: "a@b.c"}

func TestFindMissingRecord(t *testing.T) {
	s := New()
	_, err := s.Find(context.Background(), testKey)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestCreateWithAttempt(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateWithAttempt(ctx, testKey, now))

	rec, err := s.Find(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{now}, rec.NotificationLog)

	assert.ErrorIs(t, s.CreateWithAttempt(ctx, testKey, now), ports.ErrAlreadyExists)
}

func TestAppendAttemptEnforcesQuota(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateWithAttempt(ctx, testKey, now))

	for i := 1; i < 5; i++ {
		require.NoError(t, s.AppendAttempt(ctx, testKey, now.Add(time.Duration(i)*time.Minute), 5))
	}
	assert.ErrorIs(t, s.AppendAttempt(ctx, testKey, now.Add(time.Hour), 5), ports.ErrQuotaExceeded)

	// Quota window resets on the next calendar day.
	assert.NoError(t, s.AppendAttempt(ctx, testKey, now.AddDate(0, 0, 1), 5))
}

func TestAppendAttemptMissingRecord(t *testing.T) {
	s := New()
	err := s.AppendAttempt(context.Background(), testKey, time.Now(), 5)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestFindReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateWithAttempt(ctx, testKey, now))

	rec, err := s.Find(ctx, testKey)
	require.NoError(t, err)
	rec.NotificationLog[0] = rec.NotificationLog[0].AddDate(1, 0, 0)

	fresh, err := s.Find(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, now, fresh.NotificationLog[0])
}

func TestConcurrentAppendsRespectLimit(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateWithAttempt(ctx, testKey, now))

	const workers = 32
	const limit = 10

	var wg sync.WaitGroup
	admitted := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.AppendAttempt(ctx, testKey, now.Add(time.Duration(i)*time.Second), limit); err == nil {
				admitted <- struct{}{}
			}
		}(i)
	}
	wg.Wait()
	close(admitted)

	// One slot was consumed by the create; exactly limit-1 appends win.
	assert.Len(t, admitted, limit-1)
}
