package retry

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/5g-empower/empower-runtime-sub001/errors"
)

var (
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// NonRetryableError marks an error that stops Do immediately.
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable wraps err so that Do returns it without another attempt.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable reports whether err was wrapped by NonRetryable.
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}

// Retryable is the default retry predicate: invalid and fatal errors are
// final, everything else is worth another attempt.
func Retryable(err error) bool {
	if IsNonRetryable(err) {
		return false
	}
	return !errors.IsInvalid(err) && !errors.IsFatal(err)
}

// Config describes a backoff schedule.
type Config struct {
	MaxAttempts  int           // 0 runs once
	InitialDelay time.Duration // first backoff
	MaxDelay     time.Duration // backoff ceiling
	Multiplier   float64       // growth per attempt
	AddJitter    bool          // up to 25% extra per delay

	// ShouldRetry decides whether an error gets another attempt. Nil means
	// Retryable.
	ShouldRetry func(error) bool
	// OnRetry, when set, is called before each backoff sleep.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig is a short schedule for ordinary operations.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// Quick is used at startup: opening the database, the first NATS connect.
func Quick() Config {
	return Config{
		MaxAttempts:  10,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   1.5,
		AddJitter:    true,
	}
}

// Persistent keeps trying for resources the controller cannot run without.
func Persistent() Config {
	return Config{
		MaxAttempts:  30,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

func (c Config) normalize() (Config, error) {
	if c.InitialDelay < 0 || c.MaxDelay < 0 || c.Multiplier < 0 {
		return c, errors.Invalidf(errors.ErrInvalidConfig, "retry: negative delay or multiplier")
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2.0
	}
	c.Multiplier = min(c.Multiplier, 1000)
	if c.MaxDelay < c.InitialDelay {
		return c, errors.Invalidf(errors.ErrInvalidConfig, "retry: MaxDelay %s below InitialDelay %s", c.MaxDelay, c.InitialDelay)
	}
	if c.ShouldRetry == nil {
		c.ShouldRetry = Retryable
	}
	return c, nil
}

// Backoff returns the delay before attempt n+1 (n starts at 1), without
// jitter.
func (c Config) Backoff(n int) time.Duration {
	c, err := c.normalize()
	if err != nil {
		return 0
	}
	d := float64(c.InitialDelay)
	for i := 1; i < n; i++ {
		d *= c.Multiplier
		if d >= float64(c.MaxDelay) {
			return c.MaxDelay
		}
	}
	return time.Duration(d)
}

func jitter(d time.Duration) time.Duration {
	if d < 4 {
		return d
	}
	randMu.Lock()
	defer randMu.Unlock()
	return d + time.Duration(randSource.Int63n(int64(d/4)))
}

// Do runs fn until it succeeds, ShouldRetry rejects its error, the attempts
// run out or ctx is done.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	cfg, err := cfg.normalize()
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !cfg.ShouldRetry(err) {
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("retry cancelled before attempt %d: %w", attempt, ctx.Err())
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := cfg.Backoff(attempt)
		if cfg.AddJitter {
			delay = jitter(delay)
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled during backoff for attempt %d: %w", attempt+1, ctx.Err())
		case <-timer.C:
		}
	}
	return fmt.Errorf("retry failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// DoWithResult is Do for functions that return a value.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	return result, err
}
