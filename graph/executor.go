package graph

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/agentflow/core/graph/emit"
	"github.com/agentflow/core/graph/failure"
	"github.com/agentflow/core/graph/model"
	"github.com/agentflow/core/graph/registry"
	"github.com/agentflow/core/graph/store"
	"github.com/agentflow/core/graph/tool"
)

// RunStatus is the terminal or suspended disposition of one Run call.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunPaused    RunStatus = "paused"
	RunCancelled RunStatus = "cancelled"
)

// ExecutionResult is returned from a completed, paused, or aborted run
type ExecutionResult struct {
	Status RunStatus `json:"status"`
	RunID  string `json:"run_id"`

	// Path is the ordered list of node ids visited.
	Path []string `json:"path"`

	// Output is the final shared-memory subset declared by the terminal
	// node's OutputKeys, or the full snapshot when the run paused.
	Output map[string]any `json:"output,omitempty"`

	Decisions []Attempt `json:"decisions"`

	Error *EngineError `json:"error,omitempty"`

	TerminalNodeID string `json:"terminal_node_id,omitempty"`
	PausedAt       string `json:"paused_at,omitempty"`

	TotalCost float64 `json:"total_cost,omitempty"`
}

// ExecutorDeps bundles every external collaborator the executor's main loop
// needs beyond the graph/goal themselves.
type ExecutorDeps struct {
	LLM       model.ChatModel
	Tools     tool.Executor
	Functions registry.FunctionRegistry
	Storage   store.Store
	Events    emit.Emitter
	Recorder  *failure.Recorder
}

// Executor is the Graph Executor (C6): the single-threaded, per-run
// cooperative loop that walks a compiled graph from an entry point to a
// terminal node, pause node, or failure. One Executor instance can
// drive many concurrent runs; each call to Run is an independent loop.
type Executor struct {
	cfg  ExecutorConfig
	deps ExecutorDeps
}

// NewExecutor builds an Executor with the given collaborators and options,
// functional options layered over a config default.
func NewExecutor(deps ExecutorDeps, opts ...Option) *Executor {
	cfg := DefaultExecutorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Executor{cfg: cfg, deps: deps}
}

// maxSteps guards against a cyclic graph that never reaches a terminal or
// pause node; it is generous enough that no legitimate graph trips it.
const maxSteps = 10000

// Run drives one execution of g against goal, starting from entryNodeID
// (resolved from an entry-point alias by the caller), seeded with the
// trigger payload.
func (ex *Executor) Run(ctx context.Context, agentID, sessionID string, g *GraphSpec, goal *Goal, entryNodeID string, payload map[string]any) ExecutionResult {
	runID := uuid.NewString()

	cg, _, err := g.Compile()
	if err != nil {
		return ExecutionResult{
			Status: RunFailed, RunID: runID,
			Error:  NewEngineError(ErrKindGraphInvalid, "", err.Error(), err),
		}
	}

	mem := NewMemory()
	mem.Write(payload)

	log := NewDecisionLog(runID)
	costTracker := ex.cfg.CostTracker

	ex.emit(emit.Event{RunID: runID, Msg: "run_started", Meta: map[string]any{"goal_id": goal.ID, "entry_node": entryNodeID}})

	deps := NodeDeps{
		LLM:                ex.deps.LLM,
		Tools:              ex.deps.Tools,
		Functions:          ex.deps.Functions,
		DefaultToolTimeout: ex.cfg.DefaultToolTimeout,
	}

	current := entryNodeID
	var path []string

	for steps := 0; steps < maxSteps; steps++ {
		if ctx.Err() != nil {
			return ex.finishCancelled(runID, path, log, goal.ID, current, costTracker)
		}

		node, ok := cg.nodeByID[current]
		if !ok {
			ee := NewEngineError(ErrKindGraphInvalid, current, "current node not found in graph", nil)
			return ex.finishFailed(runID, path, log, ee, costTracker)
		}

		if _, isPause := g.PauseNodes[current]; isPause {
			path = append(path, current)
			ex.emit(emit.Event{RunID: runID, NodeID: current, Msg: "run_paused"})
			return ExecutionResult{
				Status:   RunPaused, RunID: runID, Path: path,
				Output:   mem.Snapshot(), Decisions: log.Attempts(),
				PausedAt: current, TotalCost: totalCost(costTracker),
			}
		}

		path = append(path, current)
		ex.emit(emit.Event{RunID: runID, NodeID: current, Msg: "node_entered"})

		attemptNumber := 0
		retryOf := ""
		var attempt Attempt
		for {
			attempt = executeNodeAttempt(ctx, node, g, mem, runID, retryOf, deps)
			ex.recordCost(&attempt, node, costTracker)
			log.Append(attempt)
			ex.stageAttempt(agentID, sessionID, attempt)

			if attempt.Status == StatusSuccess {
				break
			}

			if ctx.Err() != nil {
				return ex.finishCancelled(runID, path, log, goal.ID, current, costTracker)
			}

			effectiveMax := node.EffectiveMaxRetries(g)
			if attempt.Error != nil && shouldRetry(attempt.Error.Kind, attemptNumber, effectiveMax) {
				delay := computeBackoff(attemptNumber, DefaultRetryBaseDelay, DefaultRetryMaxDelay, nil)
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return ex.finishCancelled(runID, path, log, goal.ID, current, costTracker)
				}
				attemptNumber++
				retryOf = attempt.AttemptID
				continue
			}
			break
		}

		ex.emit(emit.Event{RunID: runID, NodeID: current, Msg: "node_exited", Meta: map[string]any{"status": string(attempt.Status)}})

		succeeded := attempt.Status == StatusSuccess
		retriesExhausted := !succeeded

		if !succeeded {
			ex.recordFailure(goal.ID, node.ID, attempt)
		}

		edge := cg.nextEdge(current, succeeded, retriesExhausted, mem.Snapshot())

		if !succeeded && edge == nil {
			ex.emit(emit.Event{RunID: runID, NodeID: current, Msg: "run_failed"})
			return ExecutionResult{
				Status:         RunFailed, RunID: runID, Path: path,
				Output:         mem.SnapshotKeys(node.OutputKeys), Decisions: log.Attempts(),
				Error:          NewEngineError(attempt.Error.Kind, current, attempt.Error.Message, nil),
				TerminalNodeID: current, TotalCost: totalCost(costTracker),
			}
		}

		if edge == nil {
			if _, isTerminal := g.TerminalNodes[current]; isTerminal {
				ex.emit(emit.Event{RunID: runID, NodeID: current, Msg: "run_completed"})
				return ExecutionResult{
					Status:         RunSucceeded, RunID: runID, Path: path,
					Output:         mem.SnapshotKeys(node.OutputKeys), Decisions: log.Attempts(),
					TerminalNodeID: current, TotalCost: totalCost(costTracker),
				}
			}
			ee := NewEngineError(ErrKindGraphDeadEnd, current, "node has no successor and is not terminal", nil)
			deadEnd := Attempt{
				AttemptID: uuid.NewString(), NodeID: current, RunID: runID,
				StartedAt: time.Now().UTC(), FinishedAt: time.Now().UTC(),
				Status:    StatusFailed, Evidence: EvidenceObserved,
				Error:     &AttemptError{Kind: ee.Kind, Message: ee.Message},
			}
			log.Append(deadEnd)
			ex.stageAttempt(agentID, sessionID, deadEnd)
			ex.recordFailure(goal.ID, node.ID, deadEnd)
			return ex.finishFailed(runID, path, log, ee, costTracker)
		}

		current = edge.Target
	}

	ee := NewEngineError(ErrKindGraphDeadEnd, current, ErrMaxStepsExceeded.Error(), ErrMaxStepsExceeded)
	return ex.finishFailed(runID, path, log, ee, costTracker)
}

func (ex *Executor) finishFailed(runID string, path []string, log *DecisionLog, ee *EngineError, ct *CostTracker) ExecutionResult {
	ex.emit(emit.Event{RunID: runID, Msg: "run_failed"})
	return ExecutionResult{
		Status:    RunFailed, RunID: runID, Path: path,
		Decisions: log.Attempts(), Error: ee, TotalCost: totalCost(ct),
	}
}

func (ex *Executor) finishCancelled(runID string, path []string, log *DecisionLog, goalID, nodeID string, ct *CostTracker) ExecutionResult {
	ee := NewEngineError(ErrKindRunCancelled, nodeID, "run cancelled", context.Canceled)
	last := Attempt{
		AttemptID: uuid.NewString(), NodeID: nodeID, RunID: runID,
		StartedAt: time.Now().UTC(), FinishedAt: time.Now().UTC(),
		Status:    StatusFailed, Evidence: EvidenceUnknown,
		Error:     &AttemptError{Kind: ee.Kind, Message: ee.Message},
	}
	log.Append(last)
	ex.recordFailure(goalID, nodeID, last)
	ex.emit(emit.Event{RunID: runID, Msg: "run_failed", Meta: map[string]any{"cancelled": true}})
	return ExecutionResult{
		Status:    RunCancelled, RunID: runID, Path: path,
		Decisions: log.Attempts(), Error: ee, TotalCost: totalCost(ct),
	}
}

func (ex *Executor) emit(ev emit.Event) {
	ex.stageEvent(ev)
	if ex.deps.Events != nil {
		ex.deps.Events.Emit(ev)
	}
}

func (ex *Executor) recordCost(attempt *Attempt, node *NodeSpec, ct *CostTracker) {
	if ct == nil || attempt.TokensIn == 0 && attempt.TokensOut == 0 {
		return
	}
	modelName := node.Model
	cost, err := ct.RecordLLMCall(modelName, attempt.TokensIn, attempt.TokensOut, node.ID)
	if err == nil {
		attempt.CostEstimate = &cost
	}
}

func (ex *Executor) recordFailure(goalID, nodeID string, attempt Attempt) {
	if ex.deps.Recorder == nil || attempt.Error == nil {
		return
	}
	ex.deps.Recorder.Record(failure.Descriptor{
		GoalID:         goalID,
		NodeID:         nodeID,
		ErrorKind:      string(attempt.Error.Kind),
		Message:        attempt.Error.Message,
		StackTrace:     attempt.Error.Stack,
		InputSnapshot:  attempt.InputSnapshot,
		MemorySnapshot: attempt.Output,
		OccurredAt:     attempt.FinishedAt,
	})
	if ex.cfg.Metrics != nil {
		ex.cfg.Metrics.IncrementFailuresRecorded(goalID)
	}
}

func (ex *Executor) stageAttempt(agentID, sessionID string, attempt Attempt) {
	if ex.deps.Storage == nil {
		return
	}
	rec := store.AttemptRecord{
		AttemptID:     attempt.AttemptID,
		NodeID:        attempt.NodeID,
		RunID:         attempt.RunID,
		StartedAt:     attempt.StartedAt.Format(time.RFC3339Nano),
		FinishedAt:    attempt.FinishedAt.Format(time.RFC3339Nano),
		InputSnapshot: attempt.InputSnapshot,
		Output:        attempt.Output,
		Status:        string(attempt.Status),
		Evidence:      string(attempt.Evidence),
		TokensIn:      attempt.TokensIn,
		TokensOut:     attempt.TokensOut,
		ToolCalls:     attempt.ToolCalls,
		CostEstimate:  attempt.CostEstimate,
		RetryOf:       attempt.RetryOf,
	}
	if attempt.Error != nil {
		rec.Error = &store.AttemptError{Kind: string(attempt.Error.Kind), Message: attempt.Error.Message, Stack: attempt.Error.Stack}
	}
	// A storage write failure is surfaced only as a metric; it never
	// aborts the run (storage.unavailable is a metric-only condition).
	if err := ex.deps.Storage.AppendAttempt(context.Background(), agentID, sessionID, rec); err != nil {
		if ex.cfg.Metrics != nil {
			ex.cfg.Metrics.IncrementStorageErrors("append_attempt")
		}
	}
}

// stageEvent records ev in the storage outbox for crash recovery, alongside
// the synchronous delivery through deps.Events.
func (ex *Executor) stageEvent(ev emit.Event) {
	type staging interface{ StageEvent(emit.Event) }
	if s, ok := ex.deps.Storage.(staging); ok {
		s.StageEvent(ev)
	}
}

func totalCost(ct *CostTracker) float64 {
	if ct == nil {
		return 0
	}
	return ct.GetTotalCost()
}
