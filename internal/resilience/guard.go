// Package resilience wraps outbound calls in a retry loop and a circuit
// breaker.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// BreakerSettings configures the circuit breaker.
type BreakerSettings struct {
	MaxRequests int
	Interval    time.Duration
	Timeout     time.Duration
	Threshold   float64 // Failure ratio threshold (0.0-1.0)
}

// RetrySettings configures exponential backoff.
type RetrySettings struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
	Multiplier   float64
}

// Permanent marks an error that must not be retried.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }

func (p *Permanent) Unwrap() error { return p.Err }

// Stop wraps err so Guard.Execute returns it without retrying.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return &Permanent{Err: err}
}

// Guard runs operations through a shared circuit breaker with retries.
type Guard struct {
	breaker *gobreaker.CircuitBreaker
	retry   RetrySettings
	logger  zerolog.Logger
}

// NewGuard creates a guard named name.
func NewGuard(name string, cb BreakerSettings, retry RetrySettings, logger zerolog.Logger) *Guard {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}
	if retry.Multiplier <= 0 {
		retry.Multiplier = 1
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(cb.MaxRequests),
		Interval:    cb.Interval,
		Timeout:     cb.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < uint32(cb.MaxRequests) {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cb.Threshold
		},
		IsSuccessful: func(err error) bool {
			var p *Permanent
			return err == nil || errors.As(err, &p)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info().
				Str("name", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})

	return &Guard{
		breaker: breaker,
		retry:   retry,
		logger:  logger,
	}
}

// State reports the breaker state.
func (g *Guard) State() gobreaker.State {
	return g.breaker.State()
}

// Execute runs fn until it succeeds, returns a Permanent error, the context
// ends, or the attempts are exhausted. The last error is wrapped in the
// returned error.
func (g *Guard) Execute(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	delay := g.retry.InitialDelay
	var lastErr error

	for attempt := 0; attempt < g.retry.MaxAttempts; attempt++ {
		_, err := g.breaker.Execute(func() (interface{}, error) {
			return nil, fn(ctx)
		})
		if err == nil {
			return nil
		}
		lastErr = err

		var p *Permanent
		if errors.As(err, &p) {
			return p.Err
		}

		if attempt < g.retry.MaxAttempts-1 {
			g.logger.Warn().
				Err(err).
				Str("operation", operation).
				Int("attempt", attempt+1).
				Int("max_attempts", g.retry.MaxAttempts).
				Dur("retry_delay", delay).
				Msg("Operation failed, retrying")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}

			delay = time.Duration(float64(delay) * g.retry.Multiplier)
			if g.retry.MaxDelay > 0 && delay > g.retry.MaxDelay {
				delay = g.retry.MaxDelay
			}
		}
	}

	return fmt.Errorf("operation %s failed after %d attempts: %w", operation, g.retry.MaxAttempts, lastErr)
}
