// Package graph provides the core graph execution engine for the agent runtime.
package graph

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics provides Prometheus-compatible metrics for the agent
// runtime (all namespaced "agentflow_"):
// 1. inflight_nodes (gauge): nodes executing concurrently, labeled run_id.
// 2. queue_depth (gauge): runs queued but not yet dispatched (C8).
// 3. active_runs (gauge): runs currently in the `running` state (C8).
// 4. step_latency_ms (histogram): node Attempt duration, labeled
// run_id, node_id, status.
// 5. retries_total (counter): node retry attempts, labeled run_id, node_id, reason.
// 6. failures_recorded_total (counter): FailureRecords written by C3,
// labeled goal_id.
// 7. backpressure_events_total (counter): queue saturation events.
type PrometheusMetrics struct {
	inflightNodes prometheus.Gauge
	queueDepth    prometheus.Gauge
	activeRuns    prometheus.Gauge

	stepLatency *prometheus.HistogramVec

	retries          *prometheus.CounterVec
	failuresRecorded *prometheus.CounterVec
	backpressure     *prometheus.CounterVec
	storageErrors    *prometheus.CounterVec

	registry prometheus.Registerer

	mu      sync.RWMutex
	enabled bool
}

// NewPrometheusMetrics (T033) creates and registers all graph execution metrics.
// with the provided Prometheus registry.
// Parameters:
// - registry: Prometheus registry to register metrics with (use prometheus.DefaultRegisterer for global registry).
// Returns:
// - *PrometheusMetrics: Fully initialized metrics collector.
// All metrics are registered with namespace "agentflow" and appropriate labels.
// Histograms use buckets optimized for typical node execution times (1ms to 10s).
// Example:
// // Use default global registry.
// metrics := NewPrometheusMetrics(prometheus.DefaultRegisterer).
// // Use custom registry (recommended for isolation).
// registry := prometheus.NewRegistry().
// metrics := NewPrometheusMetrics(registry).
// http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	pm := &PrometheusMetrics{
		registry: registry,
		enabled:  true,
	}

	pm.inflightNodes = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "agentflow",
		Name:      "inflight_nodes",
		Help:      "Current number of nodes executing concurrently across all runs",
	})

	pm.queueDepth = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "agentflow",
		Name:      "queue_depth",
		Help:      "Number of triggered runs waiting to be dispatched",
	})

	pm.activeRuns = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "agentflow",
		Name:      "active_runs",
		Help:      "Number of runs currently in the running state",
	})

	pm.stepLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "agentflow",
		Name:      "step_latency_ms",
		Help:      "Node execution duration in milliseconds (from dispatch to completion)",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000}, // 1ms to 10s
	}, []string{"run_id", "node_id", "status"}) // status: success, error, timeout

	pm.retries = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentflow",
		Name:      "retries_total",
		Help:      "Cumulative count of node retry attempts across all executions",
	}, []string{"run_id", "node_id", "reason"})

	pm.failuresRecorded = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentflow",
		Name:      "failures_recorded_total",
		Help:      "FailureRecords written by the failure recorder, per goal",
	}, []string{"goal_id"})

	pm.backpressure = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentflow",
		Name:      "backpressure_events_total",
		Help:      "Queue saturation events where execution was throttled due to resource limits",
	}, []string{"run_id", "reason"})

	pm.storageErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentflow",
		Name:      "storage_errors_total",
		Help:      "Storage write failures (storage.unavailable) absorbed without aborting the run",
	}, []string{"op"})

	return pm
}

// RecordStepLatency (T034) records the execution duration of a node in milliseconds.
// This updates the step_latency_ms histogram with labels for run_id, node_id, and status.
// Use this to track P50/P95/P99 latencies per node for performance monitoring.
// Parameters:
// - runID: Unique workflow execution identifier.
// - nodeID: Node that was executed.
// - latency: Execution duration.
// - status: Execution outcome ("success", "error", "timeout").
// Example:
// start := time.Now().
// result := node.Run(ctx, state).
// metrics.RecordStepLatency(runID, nodeID, time.Since(start), "success").
func (pm *PrometheusMetrics) RecordStepLatency(runID, nodeID string, latency time.Duration, status string) {
	if !pm.enabled {
		return
	}

	latencyMs := float64(latency.Milliseconds())
	pm.stepLatency.WithLabelValues(runID, nodeID, status).Observe(latencyMs)
}

// IncrementRetries (T035) increments the retry counter for a specific node and reason.
// This updates the retries_total counter with labels for run_id, node_id, and reason.
// Use this to identify flaky nodes and error patterns requiring investigation.
// Parameters:
// - runID: Unique workflow execution identifier.
// - nodeID: Node that is being retried.
// - reason: Retry cause ("error", "timeout", "transient").
// Example:
// if result.Err != nil {.
// metrics.IncrementRetries(runID, nodeID, "error").
//		 // Retry logic...
//	}.
func (pm *PrometheusMetrics) IncrementRetries(runID, nodeID, reason string) {
	if !pm.enabled {
		return
	}

	pm.retries.WithLabelValues(runID, nodeID, reason).Inc()
}

// UpdateQueueDepth (T036) sets the current number of pending nodes in the scheduler queue.
// This updates the queue_depth gauge. Use this to monitor backpressure and detect.
// when the system is saturated with pending work.
// Parameters:
// - depth: Current number of nodes waiting for execution.
// Example:
// metrics.UpdateQueueDepth(scheduler.PendingCount()).
func (pm *PrometheusMetrics) UpdateQueueDepth(depth int) {
	if !pm.enabled {
		return
	}

	pm.queueDepth.Set(float64(depth))
}

// UpdateInflightNodes (T037) sets the current number of nodes executing concurrently.
// This updates the inflight_nodes gauge. Use this to monitor concurrency levels.
// and detect whether MaxConcurrent limits are being reached.
// Parameters:
// - count: Current number of nodes in execution.
// Example:
// metrics.UpdateInflightNodes(len(activeNodes)).
func (pm *PrometheusMetrics) UpdateInflightNodes(count int) {
	if !pm.enabled {
		return
	}

	pm.inflightNodes.Set(float64(count))
}

// IncrementFailuresRecorded increments the failures_recorded_total counter
// when the failure recorder (C3) writes a full FailureRecord for goalID.
func (pm *PrometheusMetrics) IncrementFailuresRecorded(goalID string) {
	if !pm.enabled {
		return
	}

	pm.failuresRecorded.WithLabelValues(goalID).Inc()
}

// SetActiveRuns sets the active_runs gauge to the runtime's current count of
// runs in the `running` state (C8).
func (pm *PrometheusMetrics) SetActiveRuns(count int) {
	if !pm.enabled {
		return
	}

	pm.activeRuns.Set(float64(count))
}

// IncrementBackpressure (T039) increments the backpressure event counter.
// This updates the backpressure_events_total counter with labels for run_id and reason.
// Use this to track when execution is throttled due to resource limits (queue full,
// max concurrent reached, etc.).
// Parameters:
// - runID: Unique workflow execution identifier.
// - reason: Backpressure cause ("queue_full", "max_concurrent", "timeout").
// Example:
// if queueDepth >= maxQueueDepth {.
// metrics.IncrementBackpressure(runID, "queue_full").
// return ErrBackpressure.
// }.
func (pm *PrometheusMetrics) IncrementBackpressure(runID, reason string) {
	if !pm.enabled {
		return
	}

	pm.backpressure.WithLabelValues(runID, reason).Inc()
}

// IncrementStorageErrors increments storage_errors_total when a Storage
// write fails. Per the storage.unavailable contract, a write failure is
// surfaced only as a metric and never aborts the run.
func (pm *PrometheusMetrics) IncrementStorageErrors(op string) {
	if !pm.enabled {
		return
	}

	pm.storageErrors.WithLabelValues(op).Inc()
}

// Disable temporarily disables metric recording (useful for testing).
func (pm *PrometheusMetrics) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// Enable re-enables metric recording after Disable().
func (pm *PrometheusMetrics) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}

// Reset clears all metric values (useful for testing).
// This does not unregister metrics from the registry.
func (pm *PrometheusMetrics) Reset() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.inflightNodes.Set(0)
	pm.queueDepth.Set(0)
	pm.activeRuns.Set(0)
	// Note: Counters cannot be reset in Prometheus (cumulative by design).
	// Histograms also maintain cumulative observations.
}
