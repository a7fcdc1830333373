package querycache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps entries in Redis so several console instances share one
// cache. Entries are JSON envelopes under <prefix>:entry:<key>, generations
// are counters under <prefix>:gen:<root>.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a RedisStore. ttl bounds how long an entry may serve
// as placeholder data after it went stale; zero keeps entries forever.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) entryKey(key string) string {
	return s.prefix + ":entry:" + key
}

func (s *RedisStore) genKey(root string) string {
	return s.prefix + ":gen:" + root
}

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	data, err := s.client.Get(ctx, s.entryKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("redis get entry: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false, fmt.Errorf("unmarshal entry: %w", err)
	}
	return e, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	if err := s.client.Set(ctx, s.entryKey(key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set entry: %w", err)
	}
	return nil
}

func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	full := s.entryKey(prefix)
	var keys []string
	iter := s.client.Scan(ctx, 0, full+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.entryKey("")))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan entries: %w", err)
	}
	slices.Sort(keys)
	return slices.Compact(keys), nil
}

func (s *RedisStore) Generation(ctx context.Context, root string) (uint64, error) {
	n, err := s.client.Get(ctx, s.genKey(root)).Uint64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis get generation: %w", err)
	}
	return n, nil
}

func (s *RedisStore) Bump(ctx context.Context, root string) (uint64, error) {
	n, err := s.client.Incr(ctx, s.genKey(root)).Uint64()
	if err != nil {
		return 0, fmt.Errorf("redis incr generation: %w", err)
	}
	return n, nil
}
