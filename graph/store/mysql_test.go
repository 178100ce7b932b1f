package store

import (
	"context"
	"os"
	"testing"

	"github.com/agentflow/core/graph/emit"
	"github.com/agentflow/core/graph/failure"
)

// newTestMySQLStore connects to TEST_MYSQL_DSN, skipping the test when it is
// unset. Prerequisites to actually run this suite:
//   - a MySQL server reachable at the configured DSN
//   - a database the configured user may CREATE/INSERT/SELECT/UPDATE in
//
// Example: export TEST_MYSQL_DSN="user:password@tcp(localhost:3306)/test_db?parseTime=true"
func newTestMySQLStore(t *testing.T) *MySQLStore {
	t.Helper()
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("set TEST_MYSQL_DSN to run MySQLStore tests against a real server")
	}
	s, err := NewMySQLStore(dsn)
	if err != nil {
		t.Fatalf("NewMySQLStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMySQLStore_AppendAndReadAttempt(t *testing.T) {
	s := newTestMySQLStore(t)
	ctx := context.Background()

	rec := AttemptRecord{AttemptID: "a1", NodeID: "n1", RunID: "r1", Status: "success"}
	if err := s.AppendAttempt(ctx, "agent-1", "sess-1", rec); err != nil {
		t.Fatalf("AppendAttempt: %v", err)
	}

	got, err := s.ReadByGoal(ctx, "agent-1", "goal-1")
	if err != nil {
		t.Fatalf("ReadByGoal: %v", err)
	}
	found := false
	for _, r := range got {
		if r.AttemptID == "a1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected attempt a1 among %+v", got)
	}
}

func TestMySQLStore_FailureSink(t *testing.T) {
	s := newTestMySQLStore(t)

	if err := s.WriteFailureStats("goal-mysql-test", map[string]any{"fp1": map[string]any{"count": 1}}); err != nil {
		t.Fatalf("WriteFailureStats: %v", err)
	}
	rec := failure.Record{Fingerprint: "fp1", GoalID: "goal-mysql-test", Message: "boom"}
	if err := s.AppendFailureRecord("goal-mysql-test", rec); err != nil {
		t.Fatalf("AppendFailureRecord: %v", err)
	}
}

func TestMySQLStore_Outbox(t *testing.T) {
	s := newTestMySQLStore(t)
	ctx := context.Background()

	s.StageEvent(emit.Event{RunID: "r-mysql-test", Step: 1, NodeID: "n1", Msg: "node_entered"})

	pending, err := s.PendingEvents(ctx, 0)
	if err != nil {
		t.Fatalf("PendingEvents: %v", err)
	}
	if len(pending) == 0 {
		t.Fatal("expected at least one pending event")
	}
}
