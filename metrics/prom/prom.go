package prom

import (
	"github.com/IvanBrykalov/internslice/intern"
	"github.com/prometheus/client_golang/prometheus"
)

// Adapter implements intern.Metrics and exports Prometheus counters/gauges.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits     prometheus.Counter
	misses   prometheus.Counter
	releases prometheus.Counter
	grows    prometheus.Counter
	capacity prometheus.Histogram
	entries  prometheus.Gauge
	leaked   prometheus.Gauge
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "Intern calls answered by an existing entry",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "Intern calls that created an entry",
			ConstLabels: constLabels,
		}),
		releases: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "releases_total",
			Help:        "Entries destroyed after their last reference was dropped",
			ConstLabels: constLabels,
		}),
		grows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "shard_grows_total",
			Help:        "Shard bucket array doublings",
			ConstLabels: constLabels,
		}),
		capacity: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "shard_capacity_after_grow",
			Help:        "Shard bucket count right after a doubling",
			Buckets:     prometheus.ExponentialBuckets(16, 4, 8),
			ConstLabels: constLabels,
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "entries",
			Help:        "Number of live interned entries",
			ConstLabels: constLabels,
		}),
		leaked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "leaked_entries",
			Help:        "Entries still referenced at shutdown",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.releases, a.grows, a.capacity, a.entries, a.leaked)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter and the live entries gauge.
func (a *Adapter) Miss() {
	a.misses.Inc()
	a.entries.Inc()
}

// Release increments the destroyed-entries counter and decrements the
// live entries gauge.
func (a *Adapter) Release() {
	a.releases.Inc()
	a.entries.Dec()
}

// Grow counts a shard doubling and records the new capacity.
func (a *Adapter) Grow(capacity int) {
	a.grows.Inc()
	a.capacity.Observe(float64(capacity))
}

// Leak sets the leaked entries gauge.
func (a *Adapter) Leak(entries int) { a.leaked.Set(float64(entries)) }

// Compile-time check: ensure Adapter implements intern.Metrics.
var _ intern.Metrics = (*Adapter)(nil)
