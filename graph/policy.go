package graph

import (
	"math/rand"
	"time"
)

// DefaultRetryBaseDelay and DefaultRetryMaxDelay are the backoff bounds
// mandated by: exponential with jitter, base 500ms, cap 8s.
const (
	DefaultRetryBaseDelay = 500 * time.Millisecond
	DefaultRetryMaxDelay  = 8 * time.Second
)

// computeBackoff calculates the delay before retrying a failed node
// execution using exponential backoff with jitter.
// delay = min(base * 2^attempt, maxDelay) + jitter(0, base)
// attempt is zero-based (0 = first retry). rng is optional; when nil, a
// process-global source is used (acceptable off the replay path, since
// retry timing is not part of the determinism contract — only the
// resulting decision log entries are).
func computeBackoff(attempt int, base, maxDelay time.Duration, rng *rand.Rand) time.Duration {
	if base <= 0 {
		base = DefaultRetryBaseDelay
	}
	if maxDelay <= 0 {
		maxDelay = DefaultRetryMaxDelay
	}

	exponentialDelay := base * (1 << uint(attempt))
	if exponentialDelay > maxDelay || exponentialDelay <= 0 {
		exponentialDelay = maxDelay
	}

	var jitter time.Duration
	if rng != nil {
		jitter = time.Duration(rng.Int63n(int64(base)))
	} else {
		jitter = time.Duration(rand.Int63n(int64(base))) // #nosec G404 -- jitter for retry timing, not security
	}

	return exponentialDelay + jitter
}

// shouldRetry applies the default retry policy: retriable error kinds are
// retried until the node's effective max-retries budget is exhausted.
func shouldRetry(kind ErrorKind, attemptNumber, effectiveMaxRetries int) bool {
	if !IsRetriable(kind) {
		return false
	}
	return attemptNumber < effectiveMaxRetries
}
