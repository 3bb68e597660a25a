// Package retry implements capped exponential backoff with jitter. The
// telemetry worker uses it to redeliver access-record batches to the
// indexing backend without hammering a backend that is coming back up.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

const (
	// DefaultMaxRetries bounds redelivery attempts after the first try.
	DefaultMaxRetries = 3

	// DefaultInitialBackoff is the first sleep between attempts.
	DefaultInitialBackoff = 100 * time.Millisecond

	// DefaultMaxBackoff caps the sleep regardless of attempt count.
	DefaultMaxBackoff = 30 * time.Second

	// DefaultJitterFactor spreads sleeps by up to 25% of the base value.
	DefaultJitterFactor = 0.25

	// MaxJitterFactor is the largest accepted jitter factor.
	MaxJitterFactor = 1.0
)

// Config controls how many times Do retries and how long it sleeps in
// between. The zero value (or a nil pointer) falls back to the package
// defaults field by field.
type Config struct {
	// MaxRetries is the number of attempts after the initial one.
	MaxRetries int

	// InitialBackoff is the sleep before the first retry. Each further
	// retry doubles it.
	InitialBackoff time.Duration

	// MaxBackoff caps the doubled sleep.
	MaxBackoff time.Duration

	// JitterFactor in (0, 1] randomizes each sleep upward by up to that
	// fraction of the base value.
	JitterFactor float64
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:     DefaultMaxRetries,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
		JitterFactor:   DefaultJitterFactor,
	}
}

// GetMaxRetries resolves the retry count, defaulting when unset.
func (c *Config) GetMaxRetries() int {
	if c == nil || c.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return c.MaxRetries
}

// GetInitialBackoff resolves the first sleep, defaulting when unset.
func (c *Config) GetInitialBackoff() time.Duration {
	if c == nil || c.InitialBackoff <= 0 {
		return DefaultInitialBackoff
	}
	return c.InitialBackoff
}

// GetMaxBackoff resolves the sleep cap, defaulting when unset.
func (c *Config) GetMaxBackoff() time.Duration {
	if c == nil || c.MaxBackoff <= 0 {
		return DefaultMaxBackoff
	}
	return c.MaxBackoff
}

// GetJitterFactor resolves the jitter factor, defaulting when unset and
// clamping values above MaxJitterFactor.
func (c *Config) GetJitterFactor() float64 {
	if c == nil || c.JitterFactor <= 0 {
		return DefaultJitterFactor
	}
	return math.Min(c.JitterFactor, MaxJitterFactor)
}

// RetryableFunc is the operation Do drives.
type RetryableFunc func() error

// ShouldRetryFunc classifies an error as retryable or terminal.
type ShouldRetryFunc func(error) bool

// OnRetryFunc observes each retry before its backoff sleep. attempt is
// 1-based and counts retries, not total calls.
type OnRetryFunc func(attempt int, err error, backoff time.Duration)

// Options carries the optional hooks for Do.
type Options struct {
	// ShouldRetry, when set, stops retrying as soon as it returns false.
	// When nil every error is retried.
	ShouldRetry ShouldRetryFunc

	// OnRetry, when set, runs before every backoff sleep.
	OnRetry OnRetryFunc
}

// Do calls fn until it succeeds, the attempts run out, ShouldRetry
// rejects the error, or ctx is cancelled. Context cancellation wins
// over the backoff sleep and is reported as ctx.Err().
func Do(ctx context.Context, cfg *Config, fn RetryableFunc, opts *Options) error {
	maxRetries := cfg.GetMaxRetries()
	initial := cfg.GetInitialBackoff()
	ceiling := cfg.GetMaxBackoff()
	jitter := cfg.GetJitterFactor()

	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if opts != nil && opts.ShouldRetry != nil && !opts.ShouldRetry(lastErr) {
			return lastErr
		}
		if attempt >= maxRetries {
			return lastErr
		}

		wait := CalculateBackoff(attempt, initial, ceiling, jitter)
		if opts != nil && opts.OnRetry != nil {
			opts.OnRetry(attempt+1, lastErr, wait)
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// CalculateBackoff returns the sleep for a 0-based attempt: the initial
// backoff doubled per attempt, stretched by random jitter, capped at
// maxBackoff.
func CalculateBackoff(attempt int, initialBackoff, maxBackoff time.Duration, jitterFactor float64) time.Duration {
	base := float64(initialBackoff) * math.Pow(2, float64(attempt))

	// Randomized spread keeps concurrent workers from retrying in
	// lockstep against a recovering backend.
	//nolint:gosec // G404: timing jitter, not security-sensitive
	base += base * jitterFactor * rand.Float64()

	return time.Duration(math.Min(base, float64(maxBackoff)))
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
