// Package metrics provides Prometheus metrics for buildferry.
//
// A run is one driven external tool invocation, either a build or a
// publish. The collector is registry-scoped so tests and embedders can
// isolate their metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run kinds.
const (
	KindBuild   = "build"
	KindPublish = "publish"
)

// Run results.
const (
	ResultSuccess   = "success"
	ResultFailure   = "failure"
	ResultCancelled = "cancelled"
	ResultError     = "error"
)

// CollectorConfig configures the collector.
type CollectorConfig struct {
	Version string
}

// Collector records run lifecycle metrics.
type Collector struct {
	info           *prometheus.GaugeVec
	sessionsActive prometheus.Gauge
	runsTotal      *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	outputBytes    *prometheus.CounterVec

	mu        sync.Mutex
	startedAt map[string]time.Time
}

// NewCollector creates a collector registered on the default registry.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector registered on the given
// registry.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{
		info: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "buildferry_info",
				Help: "Information about this buildferry instance (value always 1)",
			},
			[]string{"version"},
		),
		sessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "buildferry_sessions_active",
				Help: "Tool sessions currently running",
			},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buildferry_runs_total",
				Help: "Completed runs by kind and result",
			},
			[]string{"kind", "result"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "buildferry_run_duration_seconds",
				Help: "Wall-clock duration of completed runs",
				// Builds run minutes to hours; uploads seconds to minutes.
				Buckets: []float64{10, 30, 60, 300, 600, 1800, 3600, 7200, 14400},
			},
			[]string{"kind"},
		),
		outputBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buildferry_output_bytes_total",
				Help: "Bytes of tool output captured, by run kind",
			},
			[]string{"kind"},
		),
		startedAt: make(map[string]time.Time),
	}

	registry.MustRegister(
		c.info,
		c.sessionsActive,
		c.runsTotal,
		c.runDuration,
		c.outputBytes,
	)

	c.info.WithLabelValues(cfg.Version).Set(1)
	return c
}

// RunStarted records a session entering the running phase.
func (c *Collector) RunStarted(kind string) {
	c.sessionsActive.Inc()
	c.mu.Lock()
	c.startedAt[kind] = time.Now()
	c.mu.Unlock()
}

// RunFinished records a completed run. result is one of the Result
// constants.
func (c *Collector) RunFinished(kind, result string) {
	c.sessionsActive.Dec()
	c.runsTotal.WithLabelValues(kind, result).Inc()

	c.mu.Lock()
	started, ok := c.startedAt[kind]
	delete(c.startedAt, kind)
	c.mu.Unlock()
	if ok {
		c.runDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
	}
}

// AddOutputBytes accounts captured tool output.
func (c *Collector) AddOutputBytes(kind string, n int) {
	c.outputBytes.WithLabelValues(kind).Add(float64(n))
}
