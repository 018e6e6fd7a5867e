// Package otel exports cache.Metrics through an OpenTelemetry meter.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/IvanBrykalov/slotcache/cache"
)

const (
	metricHits     = "slotcache.hits"
	metricMisses   = "slotcache.misses"
	metricInserts  = "slotcache.inserts"
	metricRemovals = "slotcache.removals"
	metricEntries  = "slotcache.entries"
)

// Adapter implements cache.Metrics with OpenTelemetry instruments.
type Adapter struct {
	attrs    metric.MeasurementOption
	hits     metric.Int64Counter
	misses   metric.Int64Counter
	inserts  metric.Int64Counter
	removals metric.Int64Counter
	entries  metric.Int64Gauge

	explicit metric.MeasurementOption
	capacity metric.MeasurementOption
}

// New creates the instruments on a meter from mp. attrs are attached to
// every measurement, e.g. attribute.String("policy", "lfu").
func New(mp metric.MeterProvider, attrs ...attribute.KeyValue) (*Adapter, error) {
	meter := mp.Meter("github.com/IvanBrykalov/slotcache")

	counter := func(name, desc string) (metric.Int64Counter, error) {
		return meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("{entry}"))
	}
	a := &Adapter{attrs: metric.WithAttributes(attrs...)}
	var err error
	if a.hits, err = counter(metricHits, "Cache hits"); err != nil {
		return nil, err
	}
	if a.misses, err = counter(metricMisses, "Cache misses"); err != nil {
		return nil, err
	}
	if a.inserts, err = counter(metricInserts, "Entries inserted"); err != nil {
		return nil, err
	}
	if a.removals, err = counter(metricRemovals, "Entries removed, by reason"); err != nil {
		return nil, err
	}
	if a.entries, err = meter.Int64Gauge(metricEntries,
		metric.WithDescription("Number of resident entries"),
		metric.WithUnit("{entry}"),
	); err != nil {
		return nil, err
	}

	withReason := func(r cache.RemoveReason) metric.MeasurementOption {
		kv := append([]attribute.KeyValue{attribute.String("reason", r.String())}, attrs...)
		return metric.WithAttributes(kv...)
	}
	a.explicit = withReason(cache.RemoveExplicit)
	a.capacity = withReason(cache.RemoveCapacity)
	return a, nil
}

func (a *Adapter) Hit()    { a.hits.Add(context.Background(), 1, a.attrs) }
func (a *Adapter) Miss()   { a.misses.Add(context.Background(), 1, a.attrs) }
func (a *Adapter) Insert() { a.inserts.Add(context.Background(), 1, a.attrs) }

func (a *Adapter) Remove(r cache.RemoveReason) {
	opt := a.explicit
	if r == cache.RemoveCapacity {
		opt = a.capacity
	}
	a.removals.Add(context.Background(), 1, opt)
}

func (a *Adapter) Size(entries int) {
	a.entries.Record(context.Background(), int64(entries), a.attrs)
}

var _ cache.Metrics = (*Adapter)(nil)
