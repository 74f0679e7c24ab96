package runner

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/pagebench/internal/catalog"
	"github.com/torosent/pagebench/internal/failure"
	"github.com/torosent/pagebench/internal/protocol"
)

const (
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 5 * time.Second
)

// RetryPolicy configures retry behavior.
type RetryPolicy struct {
	MaxAttempts int                                        // total attempts including initial try
	Delay       time.Duration                              // fixed delay between retries (used if DelayFunc nil)
	ShouldRetry func(error) bool                           // predicate; if nil, all errors retried
	DelayFunc   func(attempt int, err error) time.Duration // dynamic backoff; attempt is 1-based
}

// NewRetryPolicy retries page launches up to retries times with exponential
// backoff and jitter. Cancellation and configuration errors are not retried.
func NewRetryPolicy(retries int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: retries + 1,
		ShouldRetry: func(err error) bool {
			if err == nil {
				return false
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return false
			}
			return failure.KindOf(err) != failure.KindConfiguration
		},
		DelayFunc: func(attempt int, err error) time.Duration {
			if attempt < 1 {
				attempt = 1
			}
			backoff := time.Duration(1<<uint(attempt-1)) * baseRetryDelay
			if backoff > maxRetryDelay {
				backoff = maxRetryDelay
			}
			return backoff + jitter(backoff/2)
		},
	}
}

func jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max)))
}

// retryLauncher wraps a Launcher with retry logic.
type retryLauncher struct {
	inner  Launcher
	policy RetryPolicy
}

// WithRetry wraps a Launcher with retry capability.
func WithRetry(l Launcher, policy RetryPolicy) Launcher {
	if policy.MaxAttempts <= 1 {
		return l // no retries needed
	}
	return &retryLauncher{
		inner:  l,
		policy: policy,
	}
}

func (r *retryLauncher) Open(ctx context.Context, s catalog.Suite) (protocol.Transport, error) {
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		t, err := r.inner.Open(ctx, s)
		if err == nil {
			return t, nil
		}
		lastErr = err

		// Don't delay after the last attempt.
		if attempt < r.policy.MaxAttempts {
			if r.policy.ShouldRetry != nil && !r.policy.ShouldRetry(lastErr) {
				return nil, lastErr
			}
			var delay time.Duration
			if r.policy.DelayFunc != nil {
				delay = r.policy.DelayFunc(attempt, lastErr)
			} else {
				delay = r.policy.Delay
			}
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
		}
	}
	return nil, lastErr
}

// loggingLauncher wraps a Launcher with structured logging.
type loggingLauncher struct {
	inner  Launcher
	logger *zap.Logger
}

// WithLogging wraps a Launcher to log page launches and their failures.
func WithLogging(l Launcher, logger *zap.Logger) Launcher {
	if logger == nil {
		return l
	}
	return &loggingLauncher{
		inner:  l,
		logger: logger,
	}
}

func (l *loggingLauncher) Open(ctx context.Context, s catalog.Suite) (protocol.Transport, error) {
	start := time.Now()
	t, err := l.inner.Open(ctx, s)
	fields := []zap.Field{
		zap.String("suite", s.Name),
		zap.String("page", s.PageKey()),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		l.logger.Warn("page launch failed", append(fields, zap.Error(err))...)
		return nil, err
	}
	l.logger.Debug("page launched", fields...)
	return t, nil
}
