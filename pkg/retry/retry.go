// Package retry provides exponential backoff for logfs's mount-time I/O;
// cmd/lfsmount uses it around opening the backing image. It is never used
// inside an internal/lfs operation — those never retry.
package retry

import (
	stderr "errors"
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/logfs/logfs/pkg/lfserr"
)

// Config defines retry behavior configuration.
type Config struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	Jitter         bool
	RetryableKinds []lfserr.Kind
	OnRetry        func(attempt int, err error, delay time.Duration)
}

// DefaultConfig returns the retry policy cmd/lfsmount uses around opening
// the backing image: only errors of kind IoError are retried, since the
// other kinds (bad magic, not found) won't fix themselves.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    5,
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       10 * time.Second,
		Multiplier:     2.0,
		Jitter:         true,
		RetryableKinds: []lfserr.Kind{lfserr.IoError},
	}
}

// Retryer runs a function with exponential backoff between attempts.
type Retryer struct {
	config Config
}

// New creates a Retryer, filling in zero-valued fields with DefaultConfig's.
func New(config Config) *Retryer {
	defaults := DefaultConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = defaults.InitialDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = defaults.MaxDelay
	}
	if config.Multiplier <= 0 {
		config.Multiplier = defaults.Multiplier
	}
	if config.RetryableKinds == nil {
		config.RetryableKinds = defaults.RetryableKinds
	}
	return &Retryer{config: config}
}

// Do runs fn, retrying on retryable errors up to MaxAttempts times.
func (r *Retryer) Do(fn func() error) error {
	return r.DoWithContext(context.Background(), func(ctx context.Context) error {
		return fn()
	})
}

// DoWithContext runs fn with context cancellation honored between attempts.
func (r *Retryer) DoWithContext(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry: canceled: %w", ctx.Err())
		default:
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !r.shouldRetry(err, attempt) {
			return err
		}

		if attempt < r.config.MaxAttempts {
			delay := r.calculateDelay(attempt)
			if r.config.OnRetry != nil {
				r.config.OnRetry(attempt, err, delay)
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry: canceled after %d attempts: %w", attempt, ctx.Err())
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("retry: %d attempts exhausted: %w", r.config.MaxAttempts, lastErr)
}

func (r *Retryer) shouldRetry(err error, attempt int) bool {
	if attempt >= r.config.MaxAttempts {
		return false
	}
	var lerr *lfserr.Error
	if !stderr.As(err, &lerr) {
		return false
	}
	for _, kind := range r.config.RetryableKinds {
		if lerr.Kind == kind {
			return true
		}
	}
	return false
}

func (r *Retryer) calculateDelay(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))
	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}
	if r.config.Jitter {
		delay += delay * 0.2 * (rand.Float64()*2 - 1)
	}
	return time.Duration(delay)
}
