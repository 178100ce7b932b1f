// Package runtime supervises concurrently executing graph runs for a
// single agent: it owns the lifecycle state machine, accepts triggers from
// external entry points, and coordinates graceful shutdown.
package runtime

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/agentflow/core/graph"
)

// State is one state of the runtime lifecycle.
type State string

const (
	StateInitializing State = "initializing"
	StateReady        State = "ready"
	StateRunning      State = "running"
	StatePaused       State = "paused"
	StateDraining     State = "draining"
	StateStopped      State = "stopped"
	StateError        State = "error"
)

// Status is a point-in-time snapshot consumed by health.Server.
type Status struct {
	State          State     `json:"state"`
	UptimeSeconds  float64   `json:"uptime_seconds"`
	ActiveRunCount int       `json:"active_run_count"`
	LastError      string    `json:"last_error,omitempty"`
	startedAt      time.Time `json:"-"`
}

// RunHandle identifies one triggered run, returned by Trigger.
type RunHandle string

// runEntry tracks one in-flight or completed run.
type runEntry struct {
	mu       sync.Mutex
	done     chan struct{}
	result   graph.ExecutionResult
	cancel   context.CancelFunc
	finished bool
}

// Runtime is the Agent Runtime (C8): the state machine that turns external
// triggers into graph.Executor.Run calls and supervises their graceful
// drain on shutdown. States flow
// initializing -> ready -> running <-> paused -> draining -> stopped,
// with a sink state error reachable from anywhere.
type Runtime struct {
	exec    *graph.Executor
	g       *graph.GraphSpec
	goal    *graph.Goal
	agentID string

	drainTimeout time.Duration

	mu        sync.RWMutex
	state     State
	startedAt time.Time
	lastErr   error

	runs map[RunHandle]*runEntry

	shutdownOnce sync.Once
	shutdown     chan struct{}
	group        *errgroup.Group
}

// New builds a Runtime in state initializing and immediately transitions it
// to ready. exec, g, and goal are shared by every run this Runtime
// supervises; drainTimeout bounds how long Shutdown waits for in-flight
// runs before forcing a stop (zero means the 30s default).
func New(agentID string, exec *graph.Executor, g *graph.GraphSpec, goal *graph.Goal, drainTimeout time.Duration) *Runtime {
	if drainTimeout <= 0 {
		drainTimeout = 30 * time.Second
	}
	group, _ := errgroup.WithContext(context.Background())
	rt := &Runtime{
		exec:         exec,
		g:            g,
		goal:         goal,
		agentID:      agentID,
		drainTimeout: drainTimeout,
		state:        StateInitializing,
		runs:         make(map[RunHandle]*runEntry),
		shutdown:     make(chan struct{}),
		group:        group,
	}
	rt.startedAt = time.Now()
	rt.mu.Lock()
	rt.state = StateReady
	rt.mu.Unlock()
	return rt
}

// Trigger starts a new run at the node aliased by entryPointID, seeded with
// payload, and returns a handle for Wait/Cancel. No new run is accepted
// while the runtime is paused, draining, stopped, or in error.
func (rt *Runtime) Trigger(entryPointID string, payload map[string]any) (RunHandle, error) {
	rt.mu.Lock()
	switch rt.state {
	case StateReady, StateRunning:
	default:
		s := rt.state
		rt.mu.Unlock()
		return "", fmt.Errorf("runtime: cannot trigger a run while %s", s)
	}
	entryNodeID, ok := rt.g.EntryPoints[entryPointID]
	if !ok {
		rt.mu.Unlock()
		return "", fmt.Errorf("runtime: unknown entry point %q", entryPointID)
	}
	rt.state = StateRunning
	rt.mu.Unlock()

	sessionID := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	entry := &runEntry{done: make(chan struct{}), cancel: cancel}
	handle := RunHandle(sessionID)

	rt.mu.Lock()
	rt.runs[handle] = entry
	rt.mu.Unlock()

	rt.group.Go(func() error {
		result := rt.exec.Run(ctx, rt.agentID, sessionID, rt.g, rt.goal, entryNodeID, payload)
		entry.mu.Lock()
		entry.result = result
		entry.finished = true
		entry.mu.Unlock()
		close(entry.done)
		rt.onRunFinished()
		return nil
	})

	return handle, nil
}

func (rt *Runtime) onRunFinished() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.state == StateRunning && rt.activeCountLocked() == 0 {
		rt.state = StateReady
	}
}

// Wait blocks until the run identified by handle finishes, ctx is done, or
// timeout elapses (timeout <= 0 means wait indefinitely subject to ctx).
func (rt *Runtime) Wait(ctx context.Context, handle RunHandle, timeout time.Duration) (graph.ExecutionResult, error) {
	rt.mu.RLock()
	entry, ok := rt.runs[handle]
	rt.mu.RUnlock()
	if !ok {
		return graph.ExecutionResult{}, fmt.Errorf("runtime: unknown run %s", handle)
	}

	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case <-entry.done:
		entry.mu.Lock()
		defer entry.mu.Unlock()
		return entry.result, nil
	case <-waitCtx.Done():
		return graph.ExecutionResult{}, waitCtx.Err()
	}
}

// Cancel aborts the run identified by handle at its next suspension point.
func (rt *Runtime) Cancel(handle RunHandle) error {
	rt.mu.RLock()
	entry, ok := rt.runs[handle]
	rt.mu.RUnlock()
	if !ok {
		return fmt.Errorf("runtime: unknown run %s", handle)
	}
	entry.cancel()
	return nil
}

// Pause transitions the runtime to paused: no new run is accepted, but
// runs already in flight continue.
func (rt *Runtime) Pause() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	switch rt.state {
	case StateDraining, StateStopped, StateError:
		return fmt.Errorf("runtime: cannot pause while %s", rt.state)
	}
	rt.state = StatePaused
	return nil
}

// Resume transitions a paused runtime back to running (if runs are still
// in flight) or ready.
func (rt *Runtime) Resume() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.state != StatePaused {
		return fmt.Errorf("runtime: cannot resume from %s", rt.state)
	}
	if rt.activeCountLocked() > 0 {
		rt.state = StateRunning
	} else {
		rt.state = StateReady
	}
	return nil
}

// Fail moves the runtime into the sink error state. It is irreversible;
// a process in error is expected to be restarted, not recovered in place.
func (rt *Runtime) Fail(err error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.state = StateError
	rt.lastErr = err
}

// Shutdown requests a graceful stop: no new run is accepted, in-flight runs
// are given up to the configured drain timeout to finish, and anything
// still running past that deadline is cancelled. Shutdown is idempotent.
func (rt *Runtime) Shutdown(ctx context.Context) error {
	rt.shutdownOnce.Do(func() { close(rt.shutdown) })

	rt.mu.Lock()
	if rt.state == StateStopped {
		rt.mu.Unlock()
		return nil
	}
	rt.state = StateDraining
	rt.mu.Unlock()

	drainCtx, cancel := context.WithTimeout(ctx, rt.drainTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- rt.group.Wait() }()

	select {
	case <-done:
	case <-drainCtx.Done():
		rt.cancelAll()
		<-done
	}

	rt.mu.Lock()
	rt.state = StateStopped
	rt.mu.Unlock()
	return nil
}

func (rt *Runtime) cancelAll() {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	for _, e := range rt.runs {
		e.cancel()
	}
}

// HandleSignals installs a handler for the given OS signals that triggers
// Shutdown on receipt, returning once shutdown completes. Callers
// typically run this in its own goroutine alongside a blocking health
// server.
func (rt *Runtime) HandleSignals(sigs ...os.Signal) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	<-ch
	_ = rt.Shutdown(context.Background())
}

// Status reports the runtime's current lifecycle state, uptime, and active
// run count, consumed by the health endpoints (C9).
func (rt *Runtime) Status() Status {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	s := Status{
		State:          rt.state,
		UptimeSeconds:  time.Since(rt.startedAt).Seconds(),
		ActiveRunCount: rt.activeCountLocked(),
	}
	if rt.lastErr != nil {
		s.LastError = rt.lastErr.Error()
	}
	return s
}

func (rt *Runtime) activeCountLocked() int {
	n := 0
	for _, e := range rt.runs {
		e.mu.Lock()
		finished := e.finished
		e.mu.Unlock()
		if !finished {
			n++
		}
	}
	return n
}
