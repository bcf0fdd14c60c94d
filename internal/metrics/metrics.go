// Package metrics exposes the scheduler's runtime state as Prometheus
// collectors: per-pool admission depth (spec.md §5's waiting/working
// counts) and cache build outcomes. Grounded in the pack's prometheus
// client usage pattern (a dedicated, explicitly constructed
// *prometheus.Registry rather than the global default one, so a process
// embedding multiple Datasets never double-registers).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry is rasterq's Prometheus collector set.
type Registry struct {
	reg *prometheus.Registry

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	TilesBuilt  prometheus.Counter
	TilesFailed prometheus.Counter
}

// NewRegistry returns a Registry with every counter already registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rasterq", Name: "cache_hits_total",
			Help: "Cache tile reads served without triggering a build.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rasterq", Name: "cache_misses_total",
			Help: "Cache tile reads that triggered a build (absent or failed tile).",
		}),
		TilesBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rasterq", Name: "tiles_built_total",
			Help: "Cache tile builds that completed successfully.",
		}),
		TilesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rasterq", Name: "tiles_failed_total",
			Help: "Cache tile builds that failed (I/O error or contract violation).",
		}),
	}
	reg.MustRegister(r.CacheHits, r.CacheMisses, r.TilesBuilt, r.TilesFailed)
	return r
}

// Gatherer exposes the underlying registry for an HTTP /metrics handler.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// ObservePool registers pull-sampled gauges for one pool's WaitingRoom
// depth and WorkingRoom count, labeled by poolID (internal/actors'
// fmt.Sprintf("%p", pool) convention). Call once per distinct pool.
func (r *Registry) ObservePool(poolID string, waitingDepth, workingCount func() int) {
	r.reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "rasterq", Name: "pool_waiting_depth",
			Help:        "Jobs queued in a pool's WaitingRoom, pending a free worker.",
			ConstLabels: prometheus.Labels{"pool": poolID},
		},
		func() float64 { return float64(waitingDepth()) },
	))
	r.reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "rasterq", Name: "pool_working_count",
			Help:        "Jobs currently running on a pool's workers.",
			ConstLabels: prometheus.Labels{"pool": poolID},
		},
		func() float64 { return float64(workingCount()) },
	))
}
