// Package store persists run artifacts to a durable layout rooted at a
// configurable base directory:
//	agents/{agent_id}/
//	 runtime_logs/sessions/{session_id}/logs/
//	 summary.json one object, written once at run end
//	 details.jsonl one Attempt per line, append-only
//	 tool_logs.jsonl one tool invocation per line, append-only
//	 failures/
//	 stats_{goal_id}.json fingerprint -> {count, first_seen, last_seen}
//	 failures_{goal_id}.jsonl capped FailureRecord stream
// The interface is deliberately narrow and graph-type-free so that
// graph/failure and the executor both depend on it without creating an
// import cycle; callers translate their own richer types into the record
// shapes declared here.
package store

import (
	"context"
	"errors"

	"github.com/agentflow/core/graph/emit"
	"github.com/agentflow/core/graph/failure"
)

// ErrNotFound is returned when a requested run, session, or goal has no
// persisted data yet.
var ErrNotFound = errors.New("not found")

// AttemptRecord is the durable shape of one details.jsonl line.
type AttemptRecord struct {
	AttemptID     string `json:"attempt_id"`
	NodeID        string `json:"node_id"`
	RunID         string `json:"run_id"`
	StartedAt     string `json:"started_at"`
	FinishedAt    string `json:"finished_at"`
	InputSnapshot map[string]any `json:"input_snapshot,omitempty"`
	Output        map[string]any `json:"output,omitempty"`
	Status        string `json:"status"`
	Evidence      string `json:"evidence_type"`
	Error         *AttemptError `json:"error,omitempty"`
	TokensIn      int `json:"tokens_in,omitempty"`
	TokensOut     int `json:"tokens_out,omitempty"`
	ToolCalls     int `json:"tool_calls,omitempty"`
	CostEstimate  *float64 `json:"cost_estimate,omitempty"`
	RetryOf       string `json:"retry_of,omitempty"`
}

// AttemptError mirrors graph.AttemptError without importing package graph.
type AttemptError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// ToolLogRecord is the durable shape of one tool_logs.jsonl line.
type ToolLogRecord struct {
	RunID      string `json:"run_id"`
	NodeID     string `json:"node_id"`
	ToolID     string `json:"tool_id"`
	Arguments  map[string]any `json:"arguments,omitempty"`
	Result     map[string]any `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
}

// SummaryRecord is the durable shape of summary.json: a run-level
// ExecutionResult minus the decision log (which lives in details.jsonl).
type SummaryRecord struct {
	RunID      string `json:"run_id"`
	GoalID     string `json:"goal_id"`
	Status     string `json:"status"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
	StepCount  int `json:"step_count"`
	TotalCost  float64 `json:"total_cost,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Store is the Storage collaborator: append-only write of decision logs
// and failure logs, plus read-by-goal for replay. It also satisfies
// graph/failure.Sink, so a single Store backs both the decision log and
// the failure recorder.
type Store interface {
	failure.Sink

	AppendAttempt(ctx context.Context, agentID, sessionID string, record AttemptRecord) error
	AppendToolLog(ctx context.Context, agentID, sessionID string, record ToolLogRecord) error
	WriteSummary(ctx context.Context, agentID, sessionID string, summary SummaryRecord) error

	// ReadByGoal returns every AttemptRecord ever appended across all
	// sessions under agentID whose run targeted goalID, in append order,
	// for replay and test assertions.
	ReadByGoal(ctx context.Context, agentID, goalID string) ([]AttemptRecord, error)

	// PendingEvents and MarkEventsEmitted implement the transactional
	// outbox pattern for exactly-once event delivery to the event bus.
	PendingEvents(ctx context.Context, limit int) ([]emit.Event, error)
	MarkEventsEmitted(ctx context.Context, eventIDs []string) error
}
