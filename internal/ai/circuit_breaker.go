package ai

import (
	"fmt"

	"github.com/mfarzz/jobai/internal/config"
	"github.com/mfarzz/jobai/internal/errors"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreaker guards calls returning T. A nil *CircuitBreaker is valid
// and executes calls directly.
type CircuitBreaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// NewCircuitBreaker creates a breaker for one operation using the configured
// failure ratio. Returns nil when the breaker is disabled.
func NewCircuitBreaker[T any](name string, cfg *config.CircuitBreakerConfig, logger *errors.Logger) *CircuitBreaker[T] {
	if cfg == nil || !cfg.Enabled {
		return nil
	}

	minRequests := cfg.MinRequests
	threshold := cfg.FailureThreshold
	return newBreaker[T](name, cfg, func(counts gobreaker.Counts) bool {
		if counts.Requests == 0 {
			return false
		}
		failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
		return counts.Requests >= minRequests && failureRatio >= threshold
	}, logger)
}

// NewModelCircuitBreaker creates a breaker for model metadata lookups.
// Those are less critical, so it trips later than the completion breaker.
func NewModelCircuitBreaker[T any](name string, cfg *config.CircuitBreakerConfig, logger *errors.Logger) *CircuitBreaker[T] {
	if cfg == nil || !cfg.Enabled {
		return nil
	}

	return newBreaker[T](name, cfg, func(counts gobreaker.Counts) bool {
		if counts.Requests == 0 {
			return false
		}
		failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
		return counts.Requests >= 5 && failureRatio >= 0.8
	}, logger)
}

func newBreaker[T any](name string, cfg *config.CircuitBreakerConfig, readyToTrip func(gobreaker.Counts) bool, logger *errors.Logger) *CircuitBreaker[T] {
	settings := gobreaker.Settings{
		Name:        fmt.Sprintf("AI-%s", name),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: readyToTrip,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger == nil {
				return
			}
			logger.Info("Circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
				"max_requests", cfg.MaxRequests,
				"failure_threshold", cfg.FailureThreshold)
		},
	}

	return &CircuitBreaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// Execute runs fn with circuit breaker protection
func (cb *CircuitBreaker[T]) Execute(fn func() (T, error)) (T, error) {
	if cb == nil || cb.cb == nil {
		return fn()
	}
	return cb.cb.Execute(fn)
}

// GetStats returns circuit breaker statistics
func (cb *CircuitBreaker[T]) GetStats() map[string]any {
	if cb == nil || cb.cb == nil {
		return map[string]any{
			"enabled": false,
		}
	}

	return map[string]any{
		"name":    cb.cb.Name(),
		"state":   cb.cb.State().String(),
		"counts":  cb.cb.Counts(),
		"enabled": true,
	}
}

// IsHealthy reports whether the breaker is closed. A missing breaker is healthy.
func (cb *CircuitBreaker[T]) IsHealthy() bool {
	if cb == nil || cb.cb == nil {
		return true
	}
	return cb.cb.State() == gobreaker.StateClosed
}
