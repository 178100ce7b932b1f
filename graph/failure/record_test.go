package failure

import (
	"errors"
	"sync"
	"testing"
)

type fakeSink struct {
	mu          sync.Mutex
	statsWrites []map[string]any
	records     []Record
	failWrites  bool
}

func (f *fakeSink) WriteFailureStats(goalID string, stats map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errors.New("sink unavailable")
	}
	f.statsWrites = append(f.statsWrites, stats)
	return nil
}

func (f *fakeSink) AppendFailureRecord(goalID string, record Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errors.New("sink unavailable")
	}
	f.records = append(f.records, record)
	return nil
}

func (f *fakeSink) recordCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func TestRecorder_RecordsUpToCap(t *testing.T) {
	sink := &fakeSink{}
	rec := NewRecorder(sink, nil, 2, nil)

	for i := 0; i < 5; i++ {
		rec.Record(Descriptor{GoalID: "g1", NodeID: "n1", ErrorKind: "llm.timeout", Message: "same failure"})
	}
	rec.Close()

	if got := sink.recordCount(); got != 2 {
		t.Fatalf("expected exactly 2 full records retained under cap=2, got %d", got)
	}
	if sink.records[0].OccurrenceCount != 1 || sink.records[1].OccurrenceCount != 2 {
		t.Fatalf("expected occurrence counts 1, 2 on the retained records, got %v", sink.records)
	}
}

func TestRecorder_DistinctFingerprintsEachGetOwnBudget(t *testing.T) {
	sink := &fakeSink{}
	rec := NewRecorder(sink, nil, 1, nil)

	rec.Record(Descriptor{GoalID: "g1", NodeID: "n1", ErrorKind: "llm.timeout", Message: "failure A"})
	rec.Record(Descriptor{GoalID: "g1", NodeID: "n2", ErrorKind: "llm.timeout", Message: "failure B"})
	rec.Close()

	if got := sink.recordCount(); got != 2 {
		t.Fatalf("expected 2 distinct fingerprints to each retain 1 record, got %d", got)
	}
}

func TestRecorder_DefaultCapWhenNonPositive(t *testing.T) {
	sink := &fakeSink{}
	rec := NewRecorder(sink, nil, 0, nil)
	if rec.capPerFP != 5 {
		t.Fatalf("expected default cap of 5, got %d", rec.capPerFP)
	}
	rec.Close()
}

func TestRecorder_SanitizesSnapshotsBeforePersisting(t *testing.T) {
	sink := &fakeSink{}
	rec := NewRecorder(sink, nil, 5, nil)

	rec.Record(Descriptor{
		GoalID:        "g1",
		NodeID:        "n1",
		ErrorKind:     "tool.error",
		Message:       "boom",
		InputSnapshot: map[string]any{"password": "hunter2"},
	})
	rec.Close()

	if got := sink.records[0].SanitizedInputSnapshot["password"]; got != maskValue {
		t.Fatalf("expected password to be masked before persisting, got %v", got)
	}
}

func TestRecorder_OnWrittenCallbackFires(t *testing.T) {
	sink := &fakeSink{}
	var firedFor string
	rec := NewRecorder(sink, nil, 5, func(goalID string) { firedFor = goalID })

	rec.Record(Descriptor{GoalID: "g1", NodeID: "n1", ErrorKind: "tool.error", Message: "boom"})
	rec.Close()

	if firedFor != "g1" {
		t.Fatalf("expected onWritten callback to fire with goal id g1, got %q", firedFor)
	}
}

func TestRecorder_SnapshotTracksWrittenAndDropped(t *testing.T) {
	sink := &fakeSink{}
	rec := NewRecorder(sink, nil, 5, nil)

	rec.Record(Descriptor{GoalID: "g1", NodeID: "n1", ErrorKind: "tool.error", Message: "boom"})
	rec.Close()

	m := rec.Snapshot()
	if m.Written != 1 {
		t.Fatalf("expected Written=1, got %d", m.Written)
	}
	if m.Dropped != 0 {
		t.Fatalf("expected Dropped=0, got %d", m.Dropped)
	}
}

func TestRecorder_DropsOnPersistentSinkFailure(t *testing.T) {
	sink := &fakeSink{failWrites: true}
	rec := NewRecorder(sink, nil, 5, nil)

	rec.Record(Descriptor{GoalID: "g1", NodeID: "n1", ErrorKind: "tool.error", Message: "boom"})
	rec.Close()

	m := rec.Snapshot()
	if m.Dropped != 1 {
		t.Fatalf("expected the descriptor to be dropped after repeated sink failures, got Dropped=%d", m.Dropped)
	}
	if m.Written != 0 {
		t.Fatalf("expected nothing written when the sink never succeeds, got Written=%d", m.Written)
	}
}

func TestRecorder_CloseDrainsPendingDescriptors(t *testing.T) {
	sink := &fakeSink{}
	rec := NewRecorder(sink, nil, 5, nil)
	for i := 0; i < 50; i++ {
		rec.Record(Descriptor{GoalID: "g1", NodeID: "n1", ErrorKind: "tool.error", Message: "boom"})
	}
	rec.Close()

	if got := sink.recordCount(); got != 5 {
		t.Fatalf("expected Close to drain all 50 descriptors down to the cap of 5 retained records, got %d", got)
	}
}
