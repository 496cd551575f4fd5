// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the engine's collectors. Register once per process.
type Metrics struct {
	EncodeCalls     prometheus.Counter
	CacheHits       prometheus.Counter
	Runs            *prometheus.CounterVec
	ProbeIterations prometheus.Histogram
	BytesSaved      prometheus.Counter
}

// New builds the collectors and registers them with the registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EncodeCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crfsearch_encode_calls_total",
			Help: "External encoder invocations, cache misses only.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crfsearch_cache_hits_total",
			Help: "Probes answered from the run cache.",
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crfsearch_runs_total",
			Help: "Exploration runs by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		ProbeIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crfsearch_probe_iterations",
			Help:    "Probe iterations per exploration run.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		BytesSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crfsearch_bytes_saved_total",
			Help: "Cumulative bytes saved by accepted results.",
		}),
	}
	reg.MustRegister(m.EncodeCalls, m.CacheHits, m.Runs, m.ProbeIterations, m.BytesSaved)
	return m
}

// ObserveRun records one finished run.
func (m *Metrics) ObserveRun(strategy string, pass bool, iterations int, encodes, cacheHits int, bytesSaved int64) {
	outcome := "fail"
	if pass {
		outcome = "pass"
	}
	m.Runs.WithLabelValues(strategy, outcome).Inc()
	m.ProbeIterations.Observe(float64(iterations))
	m.EncodeCalls.Add(float64(encodes))
	m.CacheHits.Add(float64(cacheHits))
	if bytesSaved > 0 {
		m.BytesSaved.Add(float64(bytesSaved))
	}
}
