package execution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the dispatch and flush loops.
type Metrics struct {
	ChunksCompleted prometheus.Counter
	ChunkFailures   prometheus.Counter
	Flushes         prometheus.Counter
	SitesFlushed    prometheus.Counter
	MemUtilization  prometheus.Gauge
}

// NewMetrics registers the engine's metrics with reg. A nil registerer
// yields unregistered (but usable) collectors, which keeps tests independent.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChunksCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rev",
			Name:      "gen_chunks_completed_total",
			Help:      "Chunks whose simulation finished, successfully or not.",
		}),
		ChunkFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rev",
			Name:      "gen_chunk_failures_total",
			Help:      "Chunks whose simulation failed and contributed no sites.",
		}),
		Flushes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rev",
			Name:      "gen_flushes_total",
			Help:      "Result table flushes to persistent storage.",
		}),
		SitesFlushed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rev",
			Name:      "gen_sites_flushed_total",
			Help:      "Site records written to persistent storage.",
		}),
		MemUtilization: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "rev",
			Name:      "gen_memory_utilization_fraction",
			Help:      "Last sampled system memory utilization.",
		}),
	}
}
