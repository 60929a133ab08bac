// Package redis stores run records in Redis.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DeabLabs/cannoli-sub001/store"
)

// Store implements store.Store on Redis. Records are JSON values keyed by
// record ID, with a set per run indexing its record IDs.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ store.Store = (*Store)(nil)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // key prefix, default "cannoli:"
	TTL      time.Duration // expiration for records, default 0 (no expiration)
}

// New creates a Redis-backed run-record store.
func New(opts Options) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "cannoli:"
	}

	return &Store{client: client, prefix: prefix, ttl: opts.TTL}
}

// NewWithClient wraps an existing client. Useful for testing with miniredis.
func NewWithClient(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "cannoli:"
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) recordKey(id string) string {
	return fmt.Sprintf("%srecord:%s", s.prefix, id)
}

func (s *Store) runKey(runID string) string {
	return fmt.Sprintf("%srun:%s:records", s.prefix, runID)
}

// Append implements store.Store.
func (s *Store) Append(ctx context.Context, r *store.RunRecord) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("redis: marshaling record: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.recordKey(r.ID), data, s.ttl)
	runKey := s.runKey(r.RunID)
	pipe.SAdd(ctx, runKey, r.ID)
	if s.ttl > 0 {
		pipe.Expire(ctx, runKey, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: appending record: %w", err)
	}
	return nil
}

// List implements store.Store.
func (s *Store) List(ctx context.Context, runID string) ([]*store.RunRecord, error) {
	ids, err := s.client.SMembers(ctx, s.runKey(runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: listing run %s: %w", runID, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.recordKey(id)
	}

	// MGet returns nil for keys that have expired.
	results, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: fetching records: %w", err)
	}

	var out []*store.RunRecord
	for _, result := range results {
		raw, ok := result.(string)
		if !ok {
			continue
		}
		var r store.RunRecord
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			continue
		}
		out = append(out, &r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// Clear implements store.Store.
func (s *Store) Clear(ctx context.Context, runID string) error {
	runKey := s.runKey(runID)
	ids, err := s.client.SMembers(ctx, runKey).Result()
	if err != nil {
		return fmt.Errorf("redis: reading run index: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, id := range ids {
		pipe.Del(ctx, s.recordKey(id))
	}
	pipe.Del(ctx, runKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: clearing run: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
