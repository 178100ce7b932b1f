package graph

import (
	"context"
	"time"
)

// DefaultToolTimeout is the per-tool-call deadline used when neither the
// node nor the engine configuration override it.
const DefaultToolTimeout = 30 * time.Second

// effectiveToolTimeout resolves the timeout precedence of:
// node override > graph/engine default > 30s.
func effectiveToolTimeout(nodeOverrideSeconds *int, engineDefault time.Duration) time.Duration {
	if nodeOverrideSeconds != nil && *nodeOverrideSeconds > 0 {
		return time.Duration(*nodeOverrideSeconds) * time.Second
	}
	if engineDefault > 0 {
		return engineDefault
	}
	return DefaultToolTimeout
}

// withTimeout runs fn under a context bounded by timeout (<=0 disables the
// bound) and reports whether fn's context deadline was exceeded — used to
// distinguish a genuine tool/LLM timeout from any other failure so the
// caller can classify the Attempt's evidence and error kind correctly.
func withTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) (timedOut bool, err error) {
	if timeout <= 0 {
		return false, fn(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err = fn(tctx)
	if err != nil && tctx.Err() == context.DeadlineExceeded {
		return true, err
	}
	return false, err
}
