package graph

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEffectiveToolTimeout_NodeOverrideWins(t *testing.T) {
	secs := 5
	got := effectiveToolTimeout(&secs, 30*time.Second)
	if got != 5*time.Second {
		t.Fatalf("expected node override to win, got %v", got)
	}
}

func TestEffectiveToolTimeout_EngineDefaultWhenNoOverride(t *testing.T) {
	got := effectiveToolTimeout(nil, 20*time.Second)
	if got != 20*time.Second {
		t.Fatalf("expected engine default, got %v", got)
	}
}

func TestEffectiveToolTimeout_FallsBackToConstant(t *testing.T) {
	got := effectiveToolTimeout(nil, 0)
	if got != DefaultToolTimeout {
		t.Fatalf("expected fallback to DefaultToolTimeout, got %v", got)
	}
}

func TestEffectiveToolTimeout_ZeroOrNegativeOverrideIgnored(t *testing.T) {
	zero := 0
	got := effectiveToolTimeout(&zero, 20*time.Second)
	if got != 20*time.Second {
		t.Fatalf("expected zero override to be ignored in favor of engine default, got %v", got)
	}
}

func TestWithTimeout_NoTimeoutRunsUnbounded(t *testing.T) {
	timedOut, err := withTimeout(context.Background(), 0, func(ctx context.Context) error {
		return nil
	})
	if timedOut || err != nil {
		t.Fatalf("expected no timeout and no error, got timedOut=%v err=%v", timedOut, err)
	}
}

func TestWithTimeout_DeadlineExceededDetected(t *testing.T) {
	timedOut, err := withTimeout(context.Background(), 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !timedOut {
		t.Fatal("expected withTimeout to detect a deadline-exceeded failure")
	}
	if err == nil {
		t.Fatal("expected the deadline error to propagate")
	}
}

func TestWithTimeout_OtherErrorNotMistakenForTimeout(t *testing.T) {
	wantErr := errors.New("some other failure")
	timedOut, err := withTimeout(context.Background(), time.Second, func(ctx context.Context) error {
		return wantErr
	})
	if timedOut {
		t.Fatal("expected a non-deadline error not to be reported as a timeout")
	}
	if err != wantErr {
		t.Fatalf("expected original error to propagate, got %v", err)
	}
}
