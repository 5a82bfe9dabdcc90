package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/mfarzz/jobai/internal/errors"
	"github.com/mfarzz/jobai/internal/observability"
)

type contextKey string

const userIDKey contextKey = "jobai.user_id"

// route is one authenticated API endpoint
type route struct {
	pattern string
	summary string
	handler http.HandlerFunc
}

// apiRoutes lists the /api endpoints. setupRoutes and the startup banner
// both read it.
func (s *Server) apiRoutes(om *observability.ObservabilityManager) []route {
	return []route{
		{"POST /api/jobs/{id}/analyze", "Analyze the caller's match for a job", s.createAnalyzeHandler(om)},
		{"GET /api/jobs/{id}/analyze", "Fetch the stored analysis", s.createGetAnalysisHandler(om)},
		{"GET /api/jobs/{id}/quests", "List quests (?count=1-3)", s.createListQuestsHandler(om)},
		{"POST /api/jobs/{id}/quests", "Generate quests (?count=1-3)", s.createGenerateQuestsHandler(om)},
		{"POST /api/quests/{id}/submit", "Submit a quest answer", s.createSubmitHandler(om)},
	}
}

// setupRoutes builds the mux. API routes run rate limit, API key, user
// header and body size checks in that order.
func (s *Server) setupRoutes(om *observability.ObservabilityManager) *http.ServeMux {
	mux := http.NewServeMux()

	limit := s.createRateLimitMiddleware(om)
	maxBody := s.requestSizeLimitMiddleware()
	attrs := observability.RequestAttributes(s.UserHeader)

	mux.Handle("GET /health", attrs(http.HandlerFunc(s.healthHandler)))
	mux.Handle("GET /stats", attrs(http.HandlerFunc(s.statsHandler)))

	for _, rt := range s.apiRoutes(om) {
		mux.Handle(rt.pattern, attrs(limit(s.authMiddleware(s.userMiddleware(maxBody(rt.handler))))))
	}

	return mux
}

// authMiddleware provides API key authentication
func (s *Server) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apiKey := extractAPIKey(r)
		required, valid := s.apiKeyState(apiKey)
		if !required {
			next(w, r)
			return
		}

		if apiKey == "" {
			s.Logger.Info("Authentication failed: missing API key",
				"endpoint", r.URL.Path,
				"client_ip", r.RemoteAddr)
			writeAppError(w, s.Logger, errors.NewUnauthorizedError(errors.ErrCodeUnauthorized,
				"X-API-Key header or Authorization Bearer token required"))
			return
		}

		if !valid {
			s.Logger.Info("Authentication failed: invalid API key",
				"endpoint", r.URL.Path,
				"client_ip", r.RemoteAddr,
				"api_key_prefix", maskAPIKey(apiKey))
			writeAppError(w, s.Logger, errors.NewUnauthorizedError(errors.ErrCodeUnauthorized, "invalid API key"))
			return
		}

		s.Logger.Debug("API authentication successful",
			"endpoint", r.URL.Path,
			"api_key_prefix", maskAPIKey(apiKey))

		next(w, r)
	}
}

// userMiddleware requires the authenticated user header set by the gateway
// in front of this service
func (s *Server) userMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(s.UserHeader))
		if userID == "" {
			writeAppError(w, s.Logger, errors.NewUnauthorizedError(errors.ErrCodeUnauthorized,
				s.UserHeader+" header is required"))
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	}
}

func userIDFrom(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

// requestSizeLimitMiddleware limits the size of incoming requests
func (s *Server) requestSizeLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if s.MaxRequestSize > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, s.MaxRequestSize)
			}
			next(w, r)
		}
	}
}

func extractAPIKey(r *http.Request) string {
	if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
		return apiKey
	}
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return after
	}
	return ""
}

// maskAPIKey masks an API key for logging (shows only first 8 characters)
func maskAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "****"
	}
	return apiKey[:8] + "****"
}
