package cache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/5g-empower/empower-runtime-sub001/metric"
)

// cacheMetrics is nil when metrics are disabled; every method tolerates
// a nil receiver.
type cacheMetrics struct {
	lookups   *prometheus.CounterVec
	evictions prometheus.Counter
	size      prometheus.Gauge
}

func newCacheMetrics(registry *metric.MetricsRegistry, name string) (*cacheMetrics, error) {
	labels := prometheus.Labels{"component": name}
	m := &cacheMetrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "empower",
			Subsystem:   "cache",
			Name:        "lookups_total",
			ConstLabels: labels,
			Help:        "Cache lookups by result",
		}, []string{"result"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "empower",
			Subsystem:   "cache",
			Name:        "evictions_total",
			ConstLabels: labels,
			Help:        "Entries dropped for size or age",
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "empower",
			Subsystem:   "cache",
			Name:        "size",
			ConstLabels: labels,
			Help:        "Current number of entries",
		}),
	}
	if err := registry.RegisterCounterVec(name, "cache_lookups", m.lookups); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(name, "cache_evictions", m.evictions); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(name, "cache_size", m.size); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *cacheMetrics) hit() {
	if m != nil {
		m.lookups.WithLabelValues("hit").Inc()
	}
}

func (m *cacheMetrics) miss() {
	if m != nil {
		m.lookups.WithLabelValues("miss").Inc()
	}
}

func (m *cacheMetrics) eviction() {
	if m != nil {
		m.evictions.Inc()
	}
}

func (m *cacheMetrics) setSize(n int) {
	if m != nil {
		m.size.Set(float64(n))
	}
}
