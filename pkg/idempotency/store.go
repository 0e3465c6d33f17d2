// Package idempotency tracks processed stream offsets in redis, so a
// redelivered message is recognized and skipped instead of re-applied.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Key(topic string, partition int, offset int64) string {
	return fmt.Sprintf("idem:%s:%d:%d", topic, partition, offset)
}

// Seen reports whether the key was marked processed. It never writes, so a
// delivery that later fails stays unmarked and a redelivery is processed
// again.
func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Mark records the key as processed. The record expires after the TTL; within
// that window duplicates are caught.
func (s *Store) Mark(ctx context.Context, key string) error {
	return s.rdb.Set(ctx, key, "1", s.ttl).Err()
}
