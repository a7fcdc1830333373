package database

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePoolStats struct {
	stats *redis.PoolStats
}

func (f fakePoolStats) PoolStats() *redis.PoolStats { return f.stats }

func TestPoolStatsCollector_Describe(t *testing.T) {
	c := NewPoolStatsCollector(fakePoolStats{}, "console")

	ch := make(chan *prometheus.Desc, 10)
	c.Describe(ch)
	close(ch)

	var names []string
	for d := range ch {
		names = append(names, d.String())
	}
	require.Len(t, names, 6)

	joined := strings.Join(names, "\n")
	for _, want := range []string{
		"console_redis_pool_hits_total",
		"console_redis_pool_misses_total",
		"console_redis_pool_timeouts_total",
		"console_redis_pool_total_connections",
		"console_redis_pool_idle_connections",
		"console_redis_pool_stale_connections_total",
	} {
		assert.Contains(t, joined, want)
	}
}

func TestPoolStatsCollector_Collect(t *testing.T) {
	c := NewPoolStatsCollector(fakePoolStats{stats: &redis.PoolStats{
		Hits:       7,
		Misses:     2,
		TotalConns: 3,
		IdleConns:  1,
	}}, "console")

	assert.Equal(t, 6, testutil.CollectAndCount(c))

	expected := `
# HELP console_redis_pool_hits_total Number of times a free connection was found in the pool
# TYPE console_redis_pool_hits_total counter
console_redis_pool_hits_total{service="console"} 7
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected), "console_redis_pool_hits_total"))
}

func TestPoolStatsCollector_NilStats(t *testing.T) {
	c := NewPoolStatsCollector(fakePoolStats{}, "console")
	assert.Equal(t, 0, testutil.CollectAndCount(c))
}

func TestPoolStatsCollector_RealClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())

	c := NewPoolStatsCollector(client, "console")
	assert.Equal(t, 6, testutil.CollectAndCount(c))
}
