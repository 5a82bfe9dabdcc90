package server

import (
	"context"
	"sync"
	"time"

	"github.com/mfarzz/jobai/internal/ai"
	"github.com/mfarzz/jobai/internal/config"
	"github.com/mfarzz/jobai/internal/errors"
	"github.com/mfarzz/jobai/internal/observability"
	"github.com/mfarzz/jobai/internal/store"
	"github.com/mfarzz/jobai/internal/types"
)

// SubmitRequest is the body of POST /api/quests/{id}/submit
type SubmitRequest struct {
	Option string `json:"option"`
}

// GenerateResponse is the body returned by POST /api/jobs/{id}/quests
type GenerateResponse struct {
	Quest  *types.Quest  `json:"quest"`
	Quests []types.Quest `json:"quests"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// AnalysisService is the match analysis API the handlers call
type AnalysisService interface {
	Analyze(ctx context.Context, userID string, jobID int64) (*types.MatchAnalysis, error)
	GetExisting(ctx context.Context, userID string, jobID int64) (*types.MatchAnalysis, error)
}

// QuestService is the quest API the handlers call
type QuestService interface {
	List(ctx context.Context, jobID int64, userID string, count int) (*types.QuestList, error)
	Generate(ctx context.Context, jobID int64, count int) ([]types.Quest, error)
	Submit(ctx context.Context, questID, userID, option string) (*types.SubmissionResult, error)
}

// Backend is the storage view used by /health and /stats
type Backend interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (*store.Stats, error)
}

// Dependencies are the services a Server routes requests to
type Dependencies struct {
	Analysis      AnalysisService
	Quests        QuestService
	Backend       Backend
	Models        map[string]ai.ModelInspector
	Observability *observability.ObservabilityManager
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	// Full application configuration
	AppConfig *config.Config

	// API Authentication; replaced atomically on key rotation
	apiKeysMu sync.RWMutex
	apiKeys   map[string]bool

	// UserHeader names the header carrying the authenticated user id
	UserHeader string

	// Timeout configurations
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Request size limit
	MaxRequestSize int64

	// Rate limiting
	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	deps Dependencies

	// Logger
	Logger *errors.Logger
}

// ServerConfig holds configuration for creating a Server instance
type ServerConfig struct {
	Host           string
	Port           string
	Version        string
	APIKeys        []string
	UserHeader     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxRequestSize int64
	RateLimit      *config.RateLimitConfig
}

// DefaultUserHeader is used when no user header is configured
const DefaultUserHeader = "X-User-ID"

// NewServer creates a new Server instance from a ServerConfig struct
func NewServer(appCfg *config.Config, cfg ServerConfig, deps Dependencies, logger *errors.Logger) *Server {
	var rateLimiter *RateLimiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.BurstCapacity, logger)
	}

	userHeader := cfg.UserHeader
	if userHeader == "" {
		userHeader = DefaultUserHeader
	}

	s := &Server{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        cfg.Version,
		AppConfig:      appCfg,
		UserHeader:     userHeader,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		RateLimit:      cfg.RateLimit,
		RateLimiter:    rateLimiter,
		deps:           deps,
		Logger:         logger,
	}
	s.SetAPIKeys(cfg.APIKeys)
	return s
}

// SetAPIKeys replaces the accepted API keys. An empty set disables API key
// authentication.
func (s *Server) SetAPIKeys(keys []string) {
	apiKeyMap := make(map[string]bool, len(keys))
	for _, key := range keys {
		if key != "" {
			apiKeyMap[key] = true
		}
	}
	s.apiKeysMu.Lock()
	s.apiKeys = apiKeyMap
	s.apiKeysMu.Unlock()
}

func (s *Server) apiKeyState(key string) (required, valid bool) {
	s.apiKeysMu.RLock()
	defer s.apiKeysMu.RUnlock()
	return len(s.apiKeys) > 0, s.apiKeys[key]
}

func (s *Server) apiKeyCount() int {
	s.apiKeysMu.RLock()
	defer s.apiKeysMu.RUnlock()
	return len(s.apiKeys)
}
