// Package redis provides the Redis-backed RecordStore. This is the
// recommended backend for distributed deployments: the quota check and log
// append run in a single Lua script, so concurrent requests for the same
// record cannot jointly overrun the daily limit.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"platewatch/internal/violation/models"
	"platewatch/internal/violation/ports"
	"platewatch/internal/violation/throttle"
)

const (
	// Key layout: one hash for the record fields, one sorted set for the
	// notification log (score = dispatch time in unix millis).
	recordKeyPrefix = "vr:"
	logKeySuffix    = ":log"
)

// Log scores are unix milliseconds: they survive the float64 round-trip of
// sorted-set scores, which nanoseconds would not.
var createScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("HSET", KEYS[1], "plate", ARGV[1], "phone", ARGV[2], "email", ARGV[3], "created_at", ARGV[4])
redis.call("ZADD", KEYS[2], ARGV[4], ARGV[5])
return 1
`)

var appendScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
local sent = redis.call("ZCOUNT", KEYS[2], ARGV[1], "+inf")
if tonumber(sent) >= tonumber(ARGV[2]) then
	return 0
end
redis.call("ZADD", KEYS[2], ARGV[3], ARGV[4])
return 1
`)

type Store struct {
	client *redis.Client
}

func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func recordKeys(key models.RecordKey) (string, string) {
	base := recordKeyPrefix + key.Hash()
	return base, base + logKeySuffix
}

// logMember builds a unique sorted-set member; the score carries the
// timestamp, the uuid suffix keeps same-millisecond appends distinct.
func logMember(ms int64) string {
	return fmt.Sprintf("%d:%s", ms, uuid.NewString())
}

func (s *Store) Find(ctx context.Context, key models.RecordKey) (*models.ViolationRecord, error) {
	recKey, logKey := recordKeys(key)

	fields, err := s.client.HGetAll(ctx, recKey).Result()
	if err != nil {
		return nil, fmt.Errorf("find record: %w", err)
	}
	if len(fields) == 0 {
		return nil, ports.ErrNotFound
	}

	entries, err := s.client.ZRangeWithScores(ctx, logKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load notification log: %w", err)
	}

	rec := &models.ViolationRecord{Key: key}
	for _, e := range entries {
		rec.NotificationLog = append(rec.NotificationLog, time.UnixMilli(int64(e.Score)).UTC())
	}
	if len(rec.NotificationLog) > 0 {
		rec.CreatedAt = rec.NotificationLog[0]
	}
	return rec, nil
}

func (s *Store) CreateWithAttempt(ctx context.Context, key models.RecordKey, now time.Time) error {
	recKey, logKey := recordKeys(key)
	ms := now.UTC().UnixMilli()

	created, err := createScript.Run(ctx, s.client,
		[]string{recKey, logKey},
		key.Plate, key.Phone, key.Email, ms, logMember(ms),
	).Int()
	if err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	if created == 0 {
		return ports.ErrAlreadyExists
	}
	return nil
}

func (s *Store) AppendAttempt(ctx context.Context, key models.RecordKey, now time.Time, limit int) error {
	recKey, logKey := recordKeys(key)
	startOfDay := throttle.StartOfDay(now).UnixMilli()
	ms := now.UTC().UnixMilli()

	res, err := appendScript.Run(ctx, s.client,
		[]string{recKey, logKey},
		startOfDay, limit, ms, logMember(ms),
	).Int()
	if err != nil {
		return fmt.Errorf("append attempt: %w", err)
	}
	switch res {
	case -1:
		return ports.ErrNotFound
	case 0:
		return ports.ErrQuotaExceeded
	default:
		return nil
	}
}

func (s *Store) Exists(ctx context.Context, key models.RecordKey) (bool, error) {
	recKey, _ := recordKeys(key)
	n, err := s.client.Exists(ctx, recKey).Result()
	if err != nil {
		return false, fmt.Errorf("exists check: %w", err)
	}
	return n > 0, nil
}

func (s *Store) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
