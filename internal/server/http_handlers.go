package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"time"

	"github.com/mfarzz/jobai/internal/errors"
)

const defaultHealthCheckTimeout = 5 * time.Second

func (s *Server) healthTimeouts() (overall, model time.Duration) {
	overall, model = defaultHealthCheckTimeout, defaultHealthCheckTimeout
	if s.AppConfig != nil {
		if t := s.AppConfig.Observability.HealthCheck.Timeout; t > 0 {
			overall = t
		}
		if t := s.AppConfig.Observability.HealthCheck.AIModelCheckTimeout; t > 0 {
			model = t
		}
	}
	return overall, model
}

// healthHandler reports storage reachability and, with ?models=true, the
// availability of each configured AI model
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	overallTimeout, modelTimeout := s.healthTimeouts()
	ctx, cancel := context.WithTimeout(r.Context(), overallTimeout)
	defer cancel()

	response := map[string]any{
		"status":  "healthy",
		"service": "jobai",
		"version": s.Version,
	}
	healthy := true

	if s.deps.Backend != nil {
		if err := s.deps.Backend.Ping(ctx); err != nil {
			healthy = false
			response["database"] = map[string]any{"available": false, "error": err.Error()}
		} else {
			response["database"] = map[string]any{"available": true}
		}
	}

	aiStatus := make(map[string]any, len(s.deps.Models))
	for operation, inspector := range s.deps.Models {
		status := map[string]any{"configured": true}
		if r.URL.Query().Get("models") == "true" {
			modelCtx, modelCancel := context.WithTimeout(ctx, modelTimeout)
			info, err := inspector.GetModelInfo(modelCtx)
			modelCancel()
			status["available"] = err == nil && info != nil && info.Available
			if info != nil {
				status["model"] = info.Name
			}
			if err != nil {
				status["error"] = err.Error()
				healthy = false
			}
		}
		if reporter, ok := inspector.(interface{ GetCircuitBreakerStats() map[string]any }); ok {
			status["circuit_breakers"] = reporter.GetCircuitBreakerStats()
		}
		aiStatus[operation] = status
	}
	response["ai_models"] = aiStatus

	status := http.StatusOK
	if !healthy {
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// statsHandler provides server statistics including rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service": "jobai",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
			"api_keys_configured":    s.apiKeyCount(),
		},
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{
			"enabled": false,
		}
	}

	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"by_ip":            s.RateLimit.ByIP,
			"by_api_key":       s.RateLimit.ByAPIKey,
		}
	}

	if s.deps.Backend != nil {
		if stats, err := s.deps.Backend.Stats(r.Context()); err != nil {
			s.Logger.LogError(err, "Failed to collect storage stats")
		} else {
			response["storage"] = stats
		}
	}

	writeJSON(w, http.StatusOK, response)
}

// parseJSONRequest parses JSON request body into the provided struct
func parseJSONRequest(r *http.Request, v any) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return fmt.Errorf("content-type must be application/json")
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			return fmt.Errorf("request body too large (limit is %d bytes)", maxBytesErr.Limit)
		}
		return fmt.Errorf("failed to read request body: %w", err)
	}
	defer func() {
		if err := r.Body.Close(); err != nil {
			log.Printf("Failed to close request body: %v", err)
		}
	}()

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// writeAppError maps err onto its HTTP status and logs server-side failures
func writeAppError(w http.ResponseWriter, logger *errors.Logger, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.LogError(err, "Request failed")
	}

	title := http.StatusText(status)
	message := err.Error()
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		title = appErr.Code
		message = appErr.Message
	}
	writeErrorResponse(w, title, message, status)
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, error, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   error,
		Message: message,
	})
}
