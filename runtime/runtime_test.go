package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/agentflow/core/graph"
)

func trivialGraph() *graph.GraphSpec {
	return &graph.GraphSpec{
		ID:            "g1",
		EntryNode:     "start",
		EntryPoints:   map[string]string{"default": "start"},
		TerminalNodes: map[string]struct{}{"start": {}},
		Nodes: []graph.NodeSpec{
			{ID: "start", Kind: graph.KindRouter, IsEntry: true, IsTerminal: true},
		},
	}
}

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	exec := graph.NewExecutor(graph.ExecutorDeps{})
	return New("agent-1", exec, trivialGraph(), &graph.Goal{ID: "goal-1"}, time.Second)
}

func TestRuntime_StartsReady(t *testing.T) {
	rt := newTestRuntime(t)
	if got := rt.Status().State; got != StateReady {
		t.Fatalf("expected initial state ready, got %s", got)
	}
}

func TestRuntime_TriggerUnknownEntryPoint(t *testing.T) {
	rt := newTestRuntime(t)
	if _, err := rt.Trigger("nope", nil); err == nil {
		t.Fatal("expected error for unknown entry point")
	}
}

func TestRuntime_TriggerAndWait(t *testing.T) {
	rt := newTestRuntime(t)
	handle, err := rt.Trigger("default", map[string]any{})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	result, err := rt.Wait(context.Background(), handle, 2*time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if result.Status != graph.RunSucceeded {
		t.Fatalf("expected run to succeed, got %s", result.Status)
	}
}

func TestRuntime_WaitUnknownHandle(t *testing.T) {
	rt := newTestRuntime(t)
	if _, err := rt.Wait(context.Background(), RunHandle("missing"), time.Second); err == nil {
		t.Fatal("expected error for unknown handle")
	}
}

func TestRuntime_CancelUnknownHandle(t *testing.T) {
	rt := newTestRuntime(t)
	if err := rt.Cancel(RunHandle("missing")); err == nil {
		t.Fatal("expected error for unknown handle")
	}
}

func TestRuntime_PauseRejectsNewRuns(t *testing.T) {
	rt := newTestRuntime(t)
	if err := rt.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if got := rt.Status().State; got != StatePaused {
		t.Fatalf("expected paused, got %s", got)
	}
	if _, err := rt.Trigger("default", nil); err == nil {
		t.Fatal("expected trigger to be rejected while paused")
	}
}

func TestRuntime_ResumeFromPaused(t *testing.T) {
	rt := newTestRuntime(t)
	if err := rt.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := rt.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if got := rt.Status().State; got != StateReady {
		t.Fatalf("expected ready after resume with no in-flight runs, got %s", got)
	}
}

func TestRuntime_ResumeWithoutPauseFails(t *testing.T) {
	rt := newTestRuntime(t)
	if err := rt.Resume(); err == nil {
		t.Fatal("expected error resuming a runtime that was never paused")
	}
}

func TestRuntime_FailMovesToErrorSink(t *testing.T) {
	rt := newTestRuntime(t)
	rt.Fail(context.DeadlineExceeded)
	status := rt.Status()
	if status.State != StateError {
		t.Fatalf("expected error state, got %s", status.State)
	}
	if status.LastError == "" {
		t.Fatal("expected LastError to be populated")
	}
}

func TestRuntime_ShutdownIsIdempotent(t *testing.T) {
	rt := newTestRuntime(t)
	if err := rt.Shutdown(context.Background()); err != nil {
		t.Fatalf("first Shutdown: %v", err)
	}
	if err := rt.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
	if got := rt.Status().State; got != StateStopped {
		t.Fatalf("expected stopped, got %s", got)
	}
}

func TestRuntime_ShutdownDrainsInFlightRuns(t *testing.T) {
	rt := newTestRuntime(t)
	handle, err := rt.Trigger("default", nil)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if err := rt.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	result, err := rt.Wait(context.Background(), handle, 0)
	if err != nil {
		t.Fatalf("Wait after shutdown: %v", err)
	}
	if result.Status != graph.RunSucceeded {
		t.Fatalf("expected the in-flight run to have finished, got %s", result.Status)
	}
}
