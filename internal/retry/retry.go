// Package retry provides the retry policy shared by every component that re-attempts work.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"
)

// BackoffFunc returns the wait before the given retry (attempt starts at 1).
type BackoffFunc func(attempt int) time.Duration

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy bundles max attempts, a backoff function, and a retryable-error predicate.
type Policy struct {
	MaxAttempts int
	Backoff     BackoffFunc
	// Retryable decides whether an error is worth another attempt. Nil retries everything
	// except context cancellation.
	Retryable func(error) bool
	Sleep     SleepFunc
	// OnRetry is invoked before each wait.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("max retries exceeded after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do runs fn until it succeeds, returns a non-retryable error, or attempts run out.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !p.retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		wait := time.Duration(0)
		if p.Backoff != nil {
			wait = p.Backoff(attempt)
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
		if err := sleep(ctx, wait); err != nil {
			return fmt.Errorf("retry wait: %w", err)
		}
	}
	return &ExhaustedError{Attempts: attempts, Err: lastErr}
}

func (p Policy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

// Linear waits attempt×base.
func Linear(base time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * base
	}
}

// Constant always waits d.
func Constant(d time.Duration) BackoffFunc {
	return func(int) time.Duration {
		return d
	}
}

// Exponential doubles base per attempt up to maxDelay and applies half jitter.
func Exponential(base, maxDelay time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		delay := float64(base) * math.Pow(2, float64(attempt-1))
		if delay > float64(maxDelay) {
			delay = float64(maxDelay)
		}
		return time.Duration(delay/2) + randomJitter(time.Duration(delay)/2)
	}
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// SleepContext blocks for d unless ctx finishes first.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
