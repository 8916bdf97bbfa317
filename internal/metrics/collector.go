// Package metrics implements types.MetricsCollector with Prometheus
// counters, histograms, and gauges, served over a plain net/http mux —
// narrowed from the teacher's general-purpose collector down to exactly
// the three observations this filesystem produces: per-operation
// timings, GC runs, and log occupancy.
package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/logfs/logfs/pkg/types"
)

// Config controls where the collector serves metrics.
type Config struct {
	Addr      string
	Namespace string
}

// Collector implements pkg/types.MetricsCollector.
type Collector struct {
	registry *prometheus.Registry

	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	gcReclaimed       prometheus.Counter
	gcDuration        prometheus.Histogram
	gcRuns            prometheus.Counter
	logOccupancy      prometheus.Gauge

	server *http.Server
}

// NewCollector builds a Collector and registers its metrics against a
// fresh registry. It does not start serving until Start is called.
func NewCollector(cfg Config) *Collector {
	if cfg.Namespace == "" {
		cfg.Namespace = "logfs"
	}

	registry := prometheus.NewRegistry()
	c := &Collector{
		registry: registry,
		operationCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "operations_total",
			Help:      "Total number of filesystem operations by kind and outcome.",
		}, []string{"operation", "status"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of filesystem operations in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 16),
		}, []string{"operation"}),
		gcReclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "gc_reclaimed_blocks_total",
			Help:      "Total blocks reclaimed by garbage collection.",
		}),
		gcDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "gc_duration_seconds",
			Help:      "Duration of garbage collection runs in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		gcRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "gc_runs_total",
			Help:      "Total number of garbage collection runs.",
		}),
		logOccupancy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "log_occupancy_ratio",
			Help:      "Fraction of the log currently in use (log_tail / total_blocks).",
		}),
	}

	registry.MustRegister(
		c.operationCounter,
		c.operationDuration,
		c.gcReclaimed,
		c.gcDuration,
		c.gcRuns,
		c.logOccupancy,
	)
	return c
}

// RecordOperation implements types.MetricsCollector.
func (c *Collector) RecordOperation(op string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	c.operationCounter.With(prometheus.Labels{"operation": op, "status": status}).Inc()
	c.operationDuration.With(prometheus.Labels{"operation": op}).Observe(duration.Seconds())
}

// RecordGCRun implements types.MetricsCollector.
func (c *Collector) RecordGCRun(reclaimed uint32, duration time.Duration) {
	c.gcRuns.Inc()
	c.gcReclaimed.Add(float64(reclaimed))
	c.gcDuration.Observe(duration.Seconds())
}

// SetLogOccupancy implements types.MetricsCollector.
func (c *Collector) SetLogOccupancy(tail, total uint32) {
	if total == 0 {
		return
	}
	c.logOccupancy.Set(float64(tail) / float64(total))
}

// Start serves /metrics and /health on addr in the background.
func (c *Collector) Start(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy","service":"logfs"}`))
	})

	c.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics: listen %s: %w", addr, err)
	}

	go func() {
		if err := c.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics: server error: %v\n", err)
		}
	}()
	return nil
}

// Stop shuts the metrics server down gracefully.
func (c *Collector) Stop(ctx context.Context) error {
	if c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}

var _ types.MetricsCollector = (*Collector)(nil)
