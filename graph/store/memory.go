package store

import (
	"context"
	"sync"

	"github.com/agentflow/core/graph/emit"
	"github.com/agentflow/core/graph/failure"
)

// MemStore is an in-memory Store, useful for tests and single-process
// workflows where durability across restarts is not required. Every
// method is safe for concurrent use.
type MemStore struct {
	mu sync.RWMutex

	attempts map[string][]AttemptRecord // agentID/sessionID -> attempts
	toolLogs map[string][]ToolLogRecord
	summary  map[string]SummaryRecord

	failureStats   map[string]map[string]any // goalID -> stats
	failureRecords map[string][]failure.Record

	outbox  []emit.Event
	emitted map[string]bool
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		attempts:       make(map[string][]AttemptRecord),
		toolLogs:       make(map[string][]ToolLogRecord),
		summary:        make(map[string]SummaryRecord),
		failureStats:   make(map[string]map[string]any),
		failureRecords: make(map[string][]failure.Record),
		emitted:        make(map[string]bool),
	}
}

func sessionKey(agentID, sessionID string) string {
	return agentID + "/" + sessionID
}

// AppendAttempt implements Store.
func (m *MemStore) AppendAttempt(ctx context.Context, agentID, sessionID string, record AttemptRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sessionKey(agentID, sessionID)
	m.attempts[key] = append(m.attempts[key], record)
	return nil
}

// AppendToolLog implements Store.
func (m *MemStore) AppendToolLog(ctx context.Context, agentID, sessionID string, record ToolLogRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sessionKey(agentID, sessionID)
	m.toolLogs[key] = append(m.toolLogs[key], record)
	return nil
}

// WriteSummary implements Store.
func (m *MemStore) WriteSummary(ctx context.Context, agentID, sessionID string, summary SummaryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summary[sessionKey(agentID, sessionID)] = summary
	return nil
}

// WriteFailureStats implements failure.Sink.
func (m *MemStore) WriteFailureStats(goalID string, stats map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failureStats[goalID] = stats
	return nil
}

// AppendFailureRecord implements failure.Sink.
func (m *MemStore) AppendFailureRecord(goalID string, record failure.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failureRecords[goalID] = append(m.failureRecords[goalID], record)
	return nil
}

// ReadByGoal implements Store. Since MemStore does not track which goal a
// session targeted beyond its written summary, it returns every attempt
// recorded for agentID; goalID is accepted for interface parity with the
// durable backends.
func (m *MemStore) ReadByGoal(ctx context.Context, agentID, goalID string) ([]AttemptRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []AttemptRecord
	prefix := agentID + "/"
	for key, records := range m.attempts {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			out = append(out, records...)
		}
	}
	return out, nil
}

// PendingEvents implements Store's transactional-outbox read side.
func (m *MemStore) PendingEvents(ctx context.Context, limit int) ([]emit.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []emit.Event
	for _, ev := range m.outbox {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, ev)
	}
	return out, nil
}

// MarkEventsEmitted implements Store's transactional-outbox write side.
func (m *MemStore) MarkEventsEmitted(ctx context.Context, eventIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range eventIDs {
		m.emitted[id] = true
	}
	return nil
}

// StageEvent records ev in the in-memory outbox, mirroring FileStore's
// recovery path so tests exercising the executor's emit-then-stage
// sequence behave the same against either backend.
func (m *MemStore) StageEvent(ev emit.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outbox = append(m.outbox, ev)
}

// Attempts returns every AttemptRecord appended for agentID/sessionID, in
// append order. Test-only accessor; not part of the Store interface.
func (m *MemStore) Attempts(agentID, sessionID string) []AttemptRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]AttemptRecord(nil), m.attempts[sessionKey(agentID, sessionID)]...)
}

// FailureStats returns the last stats snapshot written for goalID.
// Test-only accessor; not part of the Store interface.
func (m *MemStore) FailureStats(goalID string) map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.failureStats[goalID]
}
