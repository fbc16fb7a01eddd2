// Package retry runs operations with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"dgsync/internal/application/common/slogger"
)

// Config defines retry behavior.
type Config struct {
	MaxRetries    int           `json:"max_retries"    mapstructure:"max_retries"`
	InitialDelay  time.Duration `json:"initial_delay"  mapstructure:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay"      mapstructure:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor" mapstructure:"backoff_factor"`
	Jitter        bool          `json:"jitter"         mapstructure:"jitter"`
}

// DefaultConfig returns a default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:    3,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
}

// Operation is an operation that can be retried.
type Operation func(ctx context.Context) error

// Checker classifies errors as retryable.
type Checker interface {
	IsRetryable(err error) bool
}

// Temporary is implemented by errors that know whether they are transient.
type Temporary interface {
	IsRetryable() bool
}

// Executor handles retry logic with exponential backoff.
type Executor struct {
	config  Config
	checker Checker
}

// NewExecutor creates an executor. A nil checker selects DefaultChecker.
func NewExecutor(config Config, checker Checker) *Executor {
	if config.BackoffFactor < 1 {
		config.BackoffFactor = 1
	}
	if checker == nil {
		checker = DefaultChecker{}
	}
	return &Executor{config: config, checker: checker}
}

// Execute runs operation until it succeeds, fails with a non-retryable error,
// exhausts MaxRetries or ctx ends.
func (r *Executor) Execute(ctx context.Context, operation Operation) error {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.delay(attempt)
			slogger.Debug(ctx, "Retrying operation after delay", slogger.Fields3(
				"attempt", attempt,
				"max_retries", r.config.MaxRetries,
				"delay_ms", delay.Milliseconds(),
			))

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err := operation(ctx)
		if err == nil {
			if attempt > 0 {
				slogger.Info(ctx, "Operation succeeded after retries", slogger.Field("attempt", attempt+1))
			}
			return nil
		}
		lastErr = err

		if !r.checker.IsRetryable(err) {
			return err
		}

		slogger.Warn(ctx, "Operation failed, will retry", slogger.Fields3(
			"error", err.Error(),
			"attempt", attempt+1,
			"max_retries", r.config.MaxRetries,
		))
	}

	return fmt.Errorf("operation failed after %d retries: %w", r.config.MaxRetries, lastErr)
}

func (r *Executor) delay(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffFactor, float64(attempt-1))
	if r.config.MaxDelay > 0 && delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}
	if r.config.Jitter {
		// up to 25% either way
		delay += (rand.Float64()*2 - 1) * delay * 0.25
	}
	return time.Duration(delay)
}

// DefaultChecker retries errors that declare themselves transient and
// falls back to matching common network failure text.
type DefaultChecker struct{}

var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"temporarily unavailable",
	"try again",
	"no route to host",
	"database is locked",
}

// IsRetryable reports whether err should be retried.
func (DefaultChecker) IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var temp Temporary
	if errors.As(err, &temp) {
		return temp.IsRetryable()
	}
	text := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(text, pattern) {
			return true
		}
	}
	return false
}
