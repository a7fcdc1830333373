// Package querycache is a read-through cache with typed keys, request
// deduplication and root-level invalidation.
package querycache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache fronts a Store. Values are JSON encoded so any Store can hold them.
type Cache struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
	group  singleflight.Group

	mu   sync.Mutex
	subs map[string]map[*subscription]struct{}

	flightMu sync.Mutex
	flights  map[string]*flight
}

// flight is the context shared by the callers waiting on one singleflight
// call. It is cancelled when the last of them gives up.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

type subscription struct {
	ch chan struct{}
}

// New creates a Cache over store.
func New(store Store, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		store:   store,
		logger:  logger,
		now:     time.Now,
		subs:    make(map[string]map[*subscription]struct{}),
		flights: make(map[string]*flight),
	}
}

// NewMemory is New over a fresh MemoryStore.
func NewMemory(logger *slog.Logger) *Cache {
	return New(NewMemoryStore(), logger)
}

// Fetch returns the value under key if it is fresh: stored less than
// staleTime ago and not invalidated since. Otherwise fn is called and its
// result stored. Concurrent fetches of one key share a single call of fn.
// The context passed to fn carries the values of the first caller and is
// cancelled once every caller waiting on the call has returned.
func Fetch[T any](ctx context.Context, c *Cache, key Key[T], staleTime time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	gen := c.generation(ctx, key.Root())
	if e, ok := c.get(ctx, key.path); ok && e.Generation == gen && c.now().Sub(e.FetchedAt) < staleTime {
		var v T
		if err := json.Unmarshal(e.Value, &v); err == nil {
			cacheRequests.WithLabelValues(key.Root(), "hit").Inc()
			return v, nil
		}
	}
	cacheRequests.WithLabelValues(key.Root(), "miss").Inc()

	flightKey := key.path + "#" + strconv.FormatUint(gen, 10)
	f := c.join(ctx, flightKey)
	defer c.leave(flightKey, f)

	ch := c.group.DoChan(flightKey, func() (any, error) {
		v, err := fn(f.ctx)
		if err != nil {
			cacheFetchErrors.WithLabelValues(key.Root()).Inc()
			return nil, err
		}
		c.put(ctx, key.path, v, gen)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// join registers a waiter on the flight for key, starting one if none is
// running.
func (c *Cache) join(ctx context.Context, key string) *flight {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()
	f, ok := c.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		c.flights[key] = f
	}
	f.waiters++
	return f
}

// leave drops a waiter. The last one out cancels the call and forgets it so
// a later caller starts a fresh one instead of joining the aborted call.
func (c *Cache) leave(key string, f *flight) {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if c.flights[key] == f {
		delete(c.flights, key)
		c.group.Forget(key)
	}
}

// Peek returns any cached value under key, fresh or stale.
func Peek[T any](ctx context.Context, c *Cache, key Key[T]) (T, bool) {
	var v T
	e, ok := c.get(ctx, key.path)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(e.Value, &v); err != nil {
		c.logger.WarnContext(ctx, "discarding undecodable cache entry",
			slog.String("key", key.path),
			slog.String("error", err.Error()),
		)
		return v, false
	}
	return v, true
}

// Set stores v under key as freshly fetched.
func Set[T any](ctx context.Context, c *Cache, key Key[T], v T) error {
	gen := c.generation(ctx, key.Root())
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	if err := c.store.Set(ctx, key.path, Entry{Value: data, FetchedAt: c.now(), Generation: gen}); err != nil {
		return fmt.Errorf("set %s: %w", key.path, err)
	}
	return nil
}

// Scan calls visit for every cached value whose key starts with prefix, in
// key order, until visit returns false. Entries that do not decode as T are
// skipped.
func Scan[T any](ctx context.Context, c *Cache, prefix string, visit func(key string, v T) bool) error {
	keys, err := c.store.Keys(ctx, prefix)
	if err != nil {
		return fmt.Errorf("scan %s: %w", prefix, err)
	}
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, ok := Peek(ctx, c, Key[T]{path: k})
		if !ok {
			continue
		}
		if !visit(k, v) {
			return nil
		}
	}
	return nil
}

// Invalidate marks every entry under root as stale and notifies subscribers
// of root. Stale entries stay readable through Peek.
func (c *Cache) Invalidate(ctx context.Context, root string) error {
	gen, err := c.store.Bump(ctx, root)
	if err != nil {
		return fmt.Errorf("invalidate %s: %w", root, err)
	}
	cacheInvalidations.WithLabelValues(root).Inc()
	c.logger.DebugContext(ctx, "cache root invalidated",
		slog.String("root", root),
		slog.Uint64("generation", gen),
	)

	c.mu.Lock()
	defer c.mu.Unlock()
	for sub := range c.subs[root] {
		select {
		case sub.ch <- struct{}{}:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel that receives a signal after each invalidation
// of root. Signals coalesce when the receiver is slow. The returned function
// unsubscribes.
func (c *Cache) Subscribe(root string) (<-chan struct{}, func()) {
	sub := &subscription{ch: make(chan struct{}, 1)}

	c.mu.Lock()
	if c.subs[root] == nil {
		c.subs[root] = make(map[*subscription]struct{})
	}
	c.subs[root][sub] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs[root], sub)
			c.mu.Unlock()
		})
	}
}

func (c *Cache) generation(ctx context.Context, root string) uint64 {
	gen, err := c.store.Generation(ctx, root)
	if err != nil {
		c.logger.WarnContext(ctx, "cache generation lookup failed",
			slog.String("root", root),
			slog.String("error", err.Error()),
		)
	}
	return gen
}

// get treats store failures as misses; the cache never fails a read.
func (c *Cache) get(ctx context.Context, key string) (Entry, bool) {
	e, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.WarnContext(ctx, "cache read failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return Entry{}, false
	}
	return e, ok
}

func (c *Cache) put(ctx context.Context, key string, v any, gen uint64) {
	data, err := json.Marshal(v)
	if err == nil {
		err = c.store.Set(context.WithoutCancel(ctx), key, Entry{Value: data, FetchedAt: c.now(), Generation: gen})
	}
	if err != nil {
		c.logger.WarnContext(ctx, "cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
