package cache

// metrics.go implements the cache's metrics sink: counters always tracked
// internally, and additionally exported to Prometheus when a
// *prometheus.Registry was supplied at construction.
//
// © 2025 pandora authors. MIT License.

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

type metricsSink struct {
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
	liveBytes atomic.Int64

	promHits      prometheus.Counter
	promMisses    prometheus.Counter
	promEvictions prometheus.Counter
	promLiveBytes prometheus.Gauge
}

func newMetricsSink(reg *prometheus.Registry) *metricsSink {
	m := &metricsSink{}
	if reg == nil {
		return m
	}
	m.promHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pandora_cache_hits_total", Help: "Resource cache hits.",
	})
	m.promMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pandora_cache_misses_total", Help: "Resource cache misses.",
	})
	m.promEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pandora_cache_evictions_total", Help: "Resource cache evictions.",
	})
	m.promLiveBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pandora_cache_live_bytes", Help: "Bytes currently resident in the cache.",
	})
	reg.MustRegister(m.promHits, m.promMisses, m.promEvictions, m.promLiveBytes)
	return m
}

func (m *metricsSink) incHit() {
	m.hits.Add(1)
	if m.promHits != nil {
		m.promHits.Inc()
	}
}

func (m *metricsSink) incMiss() {
	m.misses.Add(1)
	if m.promMisses != nil {
		m.promMisses.Inc()
	}
}

func (m *metricsSink) incEvict() {
	m.evictions.Add(1)
	if m.promEvictions != nil {
		m.promEvictions.Inc()
	}
}

func (m *metricsSink) setLiveBytes(v int64) {
	m.liveBytes.Store(v)
	if m.promLiveBytes != nil {
		m.promLiveBytes.Set(float64(v))
	}
}

// Stats is a point-in-time snapshot of cache counters, exposed for debug
// tooling (cmd/pandora-debug) that doesn't have its own Prometheus scrape.
type Stats struct {
	Hits, Misses, Evictions uint64
	LiveBytes               int64
}

func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.metrics.hits.Load(),
		Misses:    c.metrics.misses.Load(),
		Evictions: c.metrics.evictions.Load(),
		LiveBytes: c.metrics.liveBytes.Load(),
	}
}
