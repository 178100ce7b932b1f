// Package graph provides the core graph execution engine for the agent runtime.
package graph

import "time"

// Option configures an Executor via the functional-options pattern.
//
// Example:
//	exec := graph.NewExecutor(deps,
//	 graph.WithDrainTimeout(30*time.Second),
//	 graph.WithDefaultMaxRetriesPerNode(3),
//	 graph.WithDefaultToolTimeout(30*time.Second),
//	)
type Option func(*ExecutorConfig)

// ExecutorConfig holds every recognized executor configuration option,
// plus sensible defaults.
type ExecutorConfig struct {
	// DrainTimeout bounds how long graceful shutdown waits for in-flight
	// runs before forcing a stop (C8).
	DrainTimeout time.Duration

	// DefaultMaxRetriesPerNode is used when neither the node nor the graph
	// specify a retry budget.
	DefaultMaxRetriesPerNode int

	// DefaultToolTimeout is the per-tool-call deadline used when neither
	// the node nor the graph override it.
	DefaultToolTimeout time.Duration

	// FailureLogCapPerFingerprint bounds how many full FailureRecords the
	// failure recorder keeps per fingerprint before only counting (C3).
	FailureLogCapPerFingerprint int

	// SensitiveKeyPatterns names memory keys whose values the failure
	// recorder's privacy filter masks before any write.
	SensitiveKeyPatterns []string

	// StorageBasePath is the root directory for persisted artifacts
	// (runtime_logs/, failures/).
	StorageBasePath string

	// HealthPort is the TCP port the health server (C9) listens on. Zero
	// disables the health server.
	HealthPort int

	// EventSubscriberDropPolicy is "drop-oldest" or "drop-newest", applied
	// by graph/emit.FanoutEmitter when a subscriber falls behind.
	EventSubscriberDropPolicy string

	Metrics     *PrometheusMetrics
	CostTracker *CostTracker
}

// DefaultExecutorConfig returns the executor's baseline configuration.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		DrainTimeout:                30 * time.Second,
		DefaultMaxRetriesPerNode:    DefaultMaxRetriesPerNode,
		DefaultToolTimeout:          DefaultToolTimeout,
		FailureLogCapPerFingerprint: 5,
		SensitiveKeyPatterns:        []string{"api_key", "password", "secret", "token", "authorization", "email"},
		StorageBasePath:             "agents",
		HealthPort:                  8080,
		EventSubscriberDropPolicy:   "drop-oldest",
	}
}

// WithDrainTimeout overrides the default 30s graceful-shutdown deadline.
func WithDrainTimeout(d time.Duration) Option {
	return func(cfg *ExecutorConfig) { cfg.DrainTimeout = d }
}

// WithDefaultMaxRetriesPerNode overrides the default 3 when a graph doesn't
// set GraphSpec.MaxRetriesPerNode.
func WithDefaultMaxRetriesPerNode(n int) Option {
	return func(cfg *ExecutorConfig) { cfg.DefaultMaxRetriesPerNode = n }
}

// WithDefaultToolTimeout overrides the default 30s per-tool-call deadline.
func WithDefaultToolTimeout(d time.Duration) Option {
	return func(cfg *ExecutorConfig) { cfg.DefaultToolTimeout = d }
}

// WithFailureLogCap overrides the default 5 full records kept per
// fingerprint before the failure recorder only increments a counter.
func WithFailureLogCap(n int) Option {
	return func(cfg *ExecutorConfig) { cfg.FailureLogCapPerFingerprint = n }
}

// WithSensitiveKeyPatterns replaces the default sensitive-key list used by
// the failure recorder's privacy filter.
func WithSensitiveKeyPatterns(patterns ...string) Option {
	return func(cfg *ExecutorConfig) { cfg.SensitiveKeyPatterns = patterns }
}

// WithStorageBasePath overrides the default "agents" root directory for
// durable artifacts.
func WithStorageBasePath(path string) Option {
	return func(cfg *ExecutorConfig) { cfg.StorageBasePath = path }
}

// WithHealthPort overrides the default health-server port (8080). Zero
// disables the health server.
func WithHealthPort(port int) Option {
	return func(cfg *ExecutorConfig) { cfg.HealthPort = port }
}

// WithEventSubscriberDropPolicy overrides the default "drop-oldest" policy
// applied when a slow event subscriber falls behind.
func WithEventSubscriberDropPolicy(policy string) Option {
	return func(cfg *ExecutorConfig) { cfg.EventSubscriberDropPolicy = policy }
}

// WithMetrics attaches a Prometheus metrics collector to the executor.
func WithMetrics(metrics *PrometheusMetrics) Option {
	return func(cfg *ExecutorConfig) { cfg.Metrics = metrics }
}

// WithCostTracker attaches an LLM cost tracker to the executor.
func WithCostTracker(tracker *CostTracker) Option {
	return func(cfg *ExecutorConfig) { cfg.CostTracker = tracker }
}
