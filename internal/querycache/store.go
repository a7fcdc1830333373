package querycache

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"time"
)

// Entry is a cached value with the bookkeeping needed to judge freshness.
type Entry struct {
	Value      json.RawMessage `json:"value"`
	FetchedAt  time.Time       `json:"fetchedAt"`
	Generation uint64          `json:"generation"`
}

// Store persists entries and per-root generation counters.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, e Entry) error
	// Keys lists stored keys starting with prefix, in lexical order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Generation(ctx context.Context, root string) (uint64, error)
	// Bump increments the generation of root, marking its entries stale.
	Bump(ctx context.Context, root string) (uint64, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu          sync.RWMutex
	entries     map[string]Entry
	generations map[string]uint64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:     make(map[string]Entry),
		generations: make(map[string]uint64),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = e
	return nil
}

func (s *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func (s *MemoryStore) Generation(_ context.Context, root string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generations[root], nil
}

func (s *MemoryStore) Bump(_ context.Context, root string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[root]++
	return s.generations[root], nil
}
