package resilience

import (
	"context"
	"time"
)

type RetryConfig struct {
	MaxAttempts       uint
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      1 * time.Second,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2,
	}
}

type RetryHook interface {
	OnRetryAttempt(ctx context.Context, attempt uint, err error, nextDelay time.Duration)
	OnRetrySuccess(ctx context.Context, attempts uint, totalDuration time.Duration)
	OnRetryFailure(ctx context.Context, err error, attempts uint, totalDuration time.Duration)
}

// Retryable lets an error opt into retrying. Errors that do not implement it
// are treated as permanent.
type Retryable interface {
	Retryable() (bool, time.Duration)
}

// Retry runs fn up to MaxAttempts times with exponential backoff, honoring
// context cancellation between attempts. Only errors implementing Retryable
// and reporting true are retried.
func Retry(ctx context.Context, cfg *RetryConfig, hook RetryHook, fn func(ctx context.Context) error) error {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}

	start := time.Now()
	delay := cfg.InitialDelay

	var err error
	for attempt := uint(1); attempt <= cfg.MaxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			if hook != nil {
				hook.OnRetrySuccess(ctx, attempt, time.Since(start))
			}
			return nil
		}

		retryable, after := false, time.Duration(0)
		if r, ok := err.(Retryable); ok {
			retryable, after = r.Retryable()
		}
		if !retryable || attempt == cfg.MaxAttempts {
			break
		}

		next := delay
		if after > 0 {
			next = after
		}
		if next > cfg.MaxDelay {
			next = cfg.MaxDelay
		}
		if hook != nil {
			hook.OnRetryAttempt(ctx, attempt, err, next)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(next):
		}

		delay = time.Duration(float64(delay) * cfg.BackoffMultiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	if hook != nil {
		hook.OnRetryFailure(ctx, err, cfg.MaxAttempts, time.Since(start))
	}
	return err
}
