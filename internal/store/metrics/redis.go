// Package metrics stores the created/completed/cleaned game counters as
// Redis sorted sets, scored by event timestamp so the 90-day retention
// window is a cheap ZREMRANGEBYSCORE.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const retentionWindow = 90 * 24 * time.Hour

// Store records lifecycle events for a game code into one of three
// sorted sets: metrics:created, metrics:completed, metrics:cleaned.
type Store struct {
	rdb *redis.Client
}

// New wraps an already-configured *redis.Client.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func setKey(event string) string {
	return fmt.Sprintf("metrics:%s", event)
}

// Record adds gameCode to the named sorted set at the given time and
// prunes entries older than the retention window. Fire-and-forget: a
// Redis failure here must never fail the caller's request.
func (s *Store) Record(ctx context.Context, event, gameCode string, at time.Time) {
	key := setKey(event)
	s.rdb.ZAdd(ctx, key, redis.Z{Score: float64(at.Unix()), Member: gameCode})
	cutoff := at.Add(-retentionWindow).Unix()
	s.rdb.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", cutoff))
}

// Count returns the number of entries recorded for event within the
// retention window, as of now.
func (s *Store) Count(ctx context.Context, event string, now time.Time) (int64, error) {
	key := setKey(event)
	cutoff := now.Add(-retentionWindow).Unix()
	return s.rdb.ZCount(ctx, key, fmt.Sprintf("%d", cutoff), "+inf").Result()
}
