// Package metrics exposes Prometheus counters/gauges/histograms for
// the task execution subsystem, following the RED (Rate, Errors,
// Duration) and USE (Utilization, Saturation, Errors) categorization:
// submit/completion counters, a completion-latency histogram, and
// admission-queue depth gauges.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the process-wide metric instruments.
type Collector struct {
	handlersSubmitted prometheus.Counter
	handlersRunning   prometheus.Counter
	handlersCompleted prometheus.Counter
	handlersFailed    prometheus.Counter
	handlersKilled    prometheus.Counter

	handlerLatency  prometheus.Histogram
	pollTickLatency prometheus.Histogram

	queueCapacity prometheus.Gauge
	activeCount   prometheus.Gauge
}

// NewCollector creates and registers a new metrics collector.
func NewCollector() *Collector {
	c := &Collector{
		handlersSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskexec_handlers_submitted_total",
			Help: "Total number of task handlers submitted to a backend.",
		}),
		handlersRunning: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskexec_handlers_running_total",
			Help: "Total number of handlers observed transitioning to RUNNING.",
		}),
		handlersCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskexec_handlers_completed_total",
			Help: "Total number of handlers that reached COMPLETED with a zero exit status.",
		}),
		handlersFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskexec_handlers_failed_total",
			Help: "Total number of handlers that completed with a non-zero exit status or native error.",
		}),
		handlersKilled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskexec_handlers_killed_total",
			Help: "Total number of handlers force-terminated via Kill.",
		}),
		handlerLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskexec_handler_latency_seconds",
			Help:    "Wall-clock time from submit to completion, per handler.",
			Buckets: prometheus.DefBuckets,
		}),
		pollTickLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskexec_poll_tick_seconds",
			Help:    "Time taken to step every active handler in one poll tick.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		queueCapacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskexec_queue_capacity",
			Help: "Configured admission queue capacity for a monitor.",
		}),
		activeCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskexec_handlers_active",
			Help: "Current number of handlers admitted to a monitor.",
		}),
	}

	prometheus.MustRegister(
		c.handlersSubmitted,
		c.handlersRunning,
		c.handlersCompleted,
		c.handlersFailed,
		c.handlersKilled,
		c.handlerLatency,
		c.pollTickLatency,
		c.queueCapacity,
		c.activeCount,
	)

	return c
}

// RecordSubmitted records a successful Schedule/Submit.
func (c *Collector) RecordSubmitted() {
	c.handlersSubmitted.Inc()
}

// RecordRunning records a SUBMITTED→RUNNING transition.
func (c *Collector) RecordRunning() {
	c.handlersRunning.Inc()
}

// RecordCompleted records a successful completion and its latency.
func (c *Collector) RecordCompleted(latencySeconds float64) {
	c.handlersCompleted.Inc()
	c.handlerLatency.Observe(latencySeconds)
}

// RecordFailed records a completion with a non-zero exit status or
// native error and its latency.
func (c *Collector) RecordFailed(latencySeconds float64) {
	c.handlersFailed.Inc()
	c.handlerLatency.Observe(latencySeconds)
}

// RecordKilled records a handler force-terminated via Kill.
func (c *Collector) RecordKilled() {
	c.handlersKilled.Inc()
}

// ObservePollTick records how long one poll tick took to step every
// active handler.
func (c *Collector) ObservePollTick(seconds float64) {
	c.pollTickLatency.Observe(seconds)
}

// SetQueueCapacity records a monitor's configured admission capacity.
func (c *Collector) SetQueueCapacity(capacity int) {
	c.queueCapacity.Set(float64(capacity))
}

// SetActiveCount records a monitor's current admitted handler count.
func (c *Collector) SetActiveCount(count int) {
	c.activeCount.Set(float64(count))
}

// StartServer serves /metrics on port until the process exits or the
// HTTP server errors.
func StartServer(port int) error {
	http.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	return http.ListenAndServe(addr, nil)
}
