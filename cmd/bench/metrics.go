package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	pmet "github.com/IvanBrykalov/slotcache/metrics/prom"
)

// benchMetrics owns the registry behind /metrics. Adapters are kept per
// policy name so a name listed twice reuses its collectors.
type benchMetrics struct {
	reg    *prometheus.Registry
	byName map[string]*pmet.Adapter
}

func newBenchMetrics() *benchMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &benchMetrics{reg: reg, byName: make(map[string]*pmet.Adapter)}
}

func (m *benchMetrics) forPolicy(name string) *pmet.Adapter {
	if a, ok := m.byName[name]; ok {
		return a
	}
	a := pmet.New(m.reg, "slotcache", "bench", prometheus.Labels{"policy": name})
	m.byName[name] = a
	return a
}

func (m *benchMetrics) handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
