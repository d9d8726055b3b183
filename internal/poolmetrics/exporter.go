// Package poolmetrics exports a taskpool.Stats snapshot as Prometheus
// gauges over a pull-based HTTP endpoint, modeled on the teacher's
// internal/metrics.PrometheusExporter.
package poolmetrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Exporter publishes pool statistics to Prometheus via an HTTP endpoint.
// Safe for concurrent use by multiple goroutines.
type Exporter struct {
	mu sync.RWMutex

	config Config

	registry *prometheus.Registry

	threadCount   prometheus.Gauge
	minThreads    prometheus.Gauge
	maxThreads    prometheus.Gauge
	idleThreads   prometheus.Gauge
	queueSize     prometheus.Gauge
	startedTotal  prometheus.Gauge
	tasksFailed   prometheus.Counter
	tasksPanicked prometheus.Counter

	server *http.Server
	ln     net.Listener

	running   bool
	lastError error
}

// Config holds configuration for the exporter.
type Config struct {
	// Port is the HTTP port for the metrics endpoint. Default: 9090.
	Port int
	// Path is the URL path for the metrics endpoint. Default: /metrics.
	Path string
	// Namespace prefixes every metric name. Default: "taskpool".
	Namespace string
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{Port: 9090, Path: "/metrics", Namespace: "taskpool"}
}

// New creates an Exporter. Call Start to begin serving.
func New(config Config) *Exporter {
	if config.Port == 0 {
		config.Port = 9090
	}
	if config.Path == "" {
		config.Path = "/metrics"
	}
	if config.Namespace == "" {
		config.Namespace = "taskpool"
	}

	registry := prometheus.NewRegistry()
	e := &Exporter{config: config, registry: registry}
	e.initMetrics()
	return e
}

func (e *Exporter) initMetrics() {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: e.config.Namespace,
			Name:      name,
			Help:      help,
		})
	}

	e.threadCount = gauge("thread_count", "Current logical worker count.")
	e.minThreads = gauge("min_threads", "Configured minimum worker count.")
	e.maxThreads = gauge("max_threads", "Configured maximum worker count.")
	e.idleThreads = gauge("idle_threads", "Worker slots currently idle.")
	e.queueSize = gauge("queue_size", "Queued tasks awaiting a worker.")
	e.startedTotal = gauge("started_total", "Cumulative successfully spawned workers.")

	e.tasksFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: e.config.Namespace,
		Name:      "tasks_failed_total",
		Help:      "Tasks that returned a non-nil error.",
	})
	e.tasksPanicked = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: e.config.Namespace,
		Name:      "tasks_panicked_total",
		Help:      "Tasks whose function panicked and were recovered.",
	})

	e.registry.MustRegister(
		e.threadCount, e.minThreads, e.maxThreads, e.idleThreads,
		e.queueSize, e.startedTotal, e.tasksFailed, e.tasksPanicked,
	)
}

// UpdateFromStats sets every gauge from a pool statistics snapshot. Taking
// plain fields instead of taskpool.Stats directly keeps this package free
// of a dependency on the root package.
func (e *Exporter) UpdateFromStats(threadCount, minThreads, maxThreads, idleThreads, queueSize, started int) {
	e.threadCount.Set(float64(threadCount))
	e.minThreads.Set(float64(minThreads))
	e.maxThreads.Set(float64(maxThreads))
	e.idleThreads.Set(float64(idleThreads))
	e.queueSize.Set(float64(queueSize))
	e.startedTotal.Set(float64(started))
}

// RecordTaskFailed increments the failed-task counter.
func (e *Exporter) RecordTaskFailed() { e.tasksFailed.Inc() }

// RecordTaskPanicked increments the panicked-task counter.
func (e *Exporter) RecordTaskPanicked() { e.tasksPanicked.Inc() }

// Start begins serving the metrics endpoint. A no-op if already running.
func (e *Exporter) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return nil
	}

	addr := fmt.Sprintf(":%d", e.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("starting metrics exporter: %w", err)
	}
	e.ln = ln

	mux := http.NewServeMux()
	mux.Handle(e.config.Path, promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	e.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := e.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.mu.Lock()
			e.lastError = err
			e.mu.Unlock()
		}
	}()

	e.running = true
	return nil
}

// Stop shuts the HTTP server down.
func (e *Exporter) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return nil
	}
	e.running = false
	if e.server != nil {
		return e.server.Shutdown(ctx)
	}
	return nil
}

// Address returns the full URL of the metrics endpoint.
func (e *Exporter) Address() string {
	return fmt.Sprintf("http://localhost:%d%s", e.config.Port, e.config.Path)
}

// IsRunning reports whether the HTTP server is currently serving.
func (e *Exporter) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// LastError returns the most recent server error, if any.
func (e *Exporter) LastError() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastError
}

// Registry exposes the underlying registry, for tests.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Gather collects all metric families, for tests.
func (e *Exporter) Gather() ([]*dto.MetricFamily, error) {
	return e.registry.Gather()
}
