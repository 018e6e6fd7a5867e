package prom

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/slotcache/cache"
)

func TestAdapter_WiredIntoCache(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "slotcache", "test", prometheus.Labels{"policy": "lru"})

	c, err := cache.New(cache.Options[string, int]{Capacity: 2, Metrics: m})
	require.NoError(t, err)

	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	_, _ = c.Get("zzz")
	c.Set("c", 3) // pages out b
	c.TryRemove("a")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.hits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.misses))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.inserts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.removals.WithLabelValues("capacity")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.removals.WithLabelValues("explicit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.entries))

	expected := `
# HELP slotcache_test_size_entries Number of resident entries
# TYPE slotcache_test_size_entries gauge
slotcache_test_size_entries{policy="lru"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "slotcache_test_size_entries"))
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg, "slotcache", "dup", nil)
	assert.Panics(t, func() { New(reg, "slotcache", "dup", nil) })
}
