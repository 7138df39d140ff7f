package pipeline

import (
	"context"
	"time"
)

// RetryPolicy parameterizes the single retryable-call primitive shared by
// every outbound request.
type RetryPolicy struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
	// Retryable reports whether a failed attempt should be retried. The
	// status is zero when the failure happened before a response arrived.
	Retryable func(status int, err error) bool
	// Sleep is swappable in tests; nil means a context-aware sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// attemptResult is what one attempt hands back to the retry loop.
type attemptResult struct {
	status int
	err    error
}

// callWithRetry runs fn up to MaxAttempts times, backing off exponentially
// between retryable failures. It returns the error of the final attempt.
func callWithRetry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) attemptResult) error {
	sleep := policy.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	backoff := policy.BackoffBase
	var last attemptResult
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		last = fn(ctx)
		if last.err == nil {
			return nil
		}
		if attempt == policy.MaxAttempts || !policy.Retryable(last.status, last.err) {
			return last.err
		}
		if err := sleep(ctx, backoff); err != nil {
			return last.err
		}
		backoff *= 2
		if backoff > policy.BackoffCap {
			backoff = policy.BackoffCap
		}
	}
	return last.err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
