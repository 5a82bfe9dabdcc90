package ai

import (
	"fmt"
	"testing"
	"time"

	"github.com/mfarzz/jobai/internal/config"
)

func breakerConfig(minRequests uint32, threshold float64) *config.CircuitBreakerConfig {
	return &config.CircuitBreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		MinRequests:      minRequests,
		FailureThreshold: threshold,
	}
}

func TestIndependentCircuitBreakers(t *testing.T) {
	analysisCB := NewCircuitBreaker[string]("analysis", breakerConfig(3, 0.6), nil)
	questCB := NewCircuitBreaker[string]("quest", breakerConfig(2, 0.5), nil)

	t.Run("AnalysisCircuitBreaker", func(t *testing.T) {
		stats := analysisCB.GetStats()

		name, ok := stats["name"].(string)
		if !ok {
			t.Fatal("Circuit breaker name not found")
		}
		if name != "AI-analysis" {
			t.Errorf("Expected circuit breaker name 'AI-analysis', got '%s'", name)
		}

		state, ok := stats["state"].(string)
		if !ok {
			t.Fatal("Circuit breaker state not found")
		}
		if state != "closed" {
			t.Errorf("Expected initial state 'closed', got '%s'", state)
		}

		if enabled, _ := stats["enabled"].(bool); !enabled {
			t.Error("Circuit breaker should be enabled")
		}
	})

	t.Run("IndependentHealthStates", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			_, _ = questCB.Execute(func() (string, error) { return "", fmt.Errorf("boom") })
		}
		if questCB.IsHealthy() {
			t.Error("Quest circuit breaker should be open after repeated failures")
		}
		if !analysisCB.IsHealthy() {
			t.Error("Analysis circuit breaker should stay healthy")
		}
	})
}

func TestCircuitBreakerOpensAndRejects(t *testing.T) {
	cb := NewCircuitBreaker[int]("test", breakerConfig(3, 0.6), nil)

	calls := 0
	failing := func() (int, error) {
		calls++
		return 0, fmt.Errorf("upstream down")
	}

	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(failing); err == nil {
			t.Fatal("Expected error from failing call")
		}
	}

	if cb.IsHealthy() {
		t.Fatal("Expected circuit breaker to be open")
	}

	// Open breaker rejects without calling fn
	if _, err := cb.Execute(failing); err == nil {
		t.Error("Expected open circuit breaker to reject the call")
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls to reach fn, got %d", calls)
	}
}

func TestCircuitBreakerBelowMinRequestsStaysClosed(t *testing.T) {
	cb := NewCircuitBreaker[int]("test", breakerConfig(5, 0.5), nil)

	for i := 0; i < 4; i++ {
		_, _ = cb.Execute(func() (int, error) { return 0, fmt.Errorf("fail") })
	}
	if !cb.IsHealthy() {
		t.Error("Circuit breaker should not trip before MinRequests")
	}
}

func TestDisabledCircuitBreaker(t *testing.T) {
	disabled := &config.CircuitBreakerConfig{Enabled: false}

	cb := NewCircuitBreaker[int]("off", disabled, nil)
	if cb != nil {
		t.Fatal("Expected nil circuit breaker when disabled")
	}

	result, err := cb.Execute(func() (int, error) { return 42, nil })
	if err != nil || result != 42 {
		t.Errorf("Expected nil breaker to pass through, got %d, %v", result, err)
	}
	if !cb.IsHealthy() {
		t.Error("Nil circuit breaker should report healthy")
	}
	if enabled, _ := cb.GetStats()["enabled"].(bool); enabled {
		t.Error("Nil circuit breaker stats should report disabled")
	}

	if NewModelCircuitBreaker[int]("off", nil, nil) != nil {
		t.Error("Expected nil model circuit breaker for nil config")
	}
}

func TestModelCircuitBreakerIsLenient(t *testing.T) {
	cb := NewModelCircuitBreaker[int]("model", breakerConfig(1, 0.1), nil)

	for i := 0; i < 4; i++ {
		_, _ = cb.Execute(func() (int, error) { return 0, fmt.Errorf("fail") })
	}
	if !cb.IsHealthy() {
		t.Error("Model circuit breaker should not trip before 5 requests")
	}

	_, _ = cb.Execute(func() (int, error) { return 0, fmt.Errorf("fail") })
	if cb.IsHealthy() {
		t.Error("Model circuit breaker should trip after 5 failed requests")
	}
}
