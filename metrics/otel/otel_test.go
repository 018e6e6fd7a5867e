package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/IvanBrykalov/slotcache/cache"
)

func newTestMeterProvider() (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)), reader
}

// collect flattens int64 data points as name{reason} -> value.
func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			var points []metricdata.DataPoint[int64]
			switch d := m.Data.(type) {
			case metricdata.Sum[int64]:
				points = d.DataPoints
			case metricdata.Gauge[int64]:
				points = d.DataPoints
			}
			for _, p := range points {
				name := m.Name
				if r, ok := p.Attributes.Value("reason"); ok {
					name += "{" + r.AsString() + "}"
				}
				out[name] = p.Value
			}
		}
	}
	return out
}

func TestAdapter_WiredIntoCache(t *testing.T) {
	mp, reader := newTestMeterProvider()
	defer func() { _ = mp.Shutdown(context.Background()) }()

	m, err := New(mp, attribute.String("policy", "lru"))
	require.NoError(t, err)

	c, err := cache.New(cache.Options[string, int]{Capacity: 2, Metrics: m})
	require.NoError(t, err)
	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	_, _ = c.Get("zzz")
	c.Set("c", 3)
	c.TryRemove("a")

	got := collect(t, reader)
	assert.Equal(t, int64(1), got[metricHits])
	assert.Equal(t, int64(1), got[metricMisses])
	assert.Equal(t, int64(3), got[metricInserts])
	assert.Equal(t, int64(1), got[metricRemovals+"{capacity}"])
	assert.Equal(t, int64(1), got[metricRemovals+"{explicit}"])
	assert.Equal(t, int64(1), got[metricEntries])
}
