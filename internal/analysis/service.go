// Package analysis computes and persists job match analyses, using the model
// gateway when one is configured and the rule-based scorer otherwise.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mfarzz/jobai/internal/ai"
	"github.com/mfarzz/jobai/internal/config"
	"github.com/mfarzz/jobai/internal/errors"
	"github.com/mfarzz/jobai/internal/events"
	"github.com/mfarzz/jobai/internal/observability"
	"github.com/mfarzz/jobai/internal/types"

	"go.opentelemetry.io/otel/attribute"
)

// Store is the persistence the analysis service needs
type Store interface {
	GetJobSummary(ctx context.Context, jobID int64) (*types.JobSummary, error)
	GetProfileBundle(ctx context.Context, userID string) (*types.ProfileBundle, error)
	UpsertAnalysis(ctx context.Context, analysis types.MatchAnalysis) (*types.MatchAnalysis, error)
	GetAnalysis(ctx context.Context, userID string, jobID int64) (*types.MatchAnalysis, error)
	StaleAnalyses(ctx context.Context, before time.Time, limit int) ([]types.StalePair, error)
}

// Service analyzes how well a user's profile matches a job
type Service struct {
	store     Store
	gateway   ai.Gateway
	publisher events.Publisher
	obs       *observability.ObservabilityManager
	logger    *errors.Logger
	now       func() time.Time
}

// Option customizes a Service
type Option func(*Service)

// WithClock overrides the time source used for analyzedAt
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPublisher sets the event publisher
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithObservability enables AI tracing and business metrics
func WithObservability(om *observability.ObservabilityManager) Option {
	return func(s *Service) { s.obs = om }
}

// NewService creates an analysis service. A nil gateway means every analysis
// uses the fallback scorer.
func NewService(store Store, gateway ai.Gateway, logger *errors.Logger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		gateway:   gateway,
		publisher: events.NopPublisher{},
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = errors.NewLogger(slog.LevelInfo)
	}
	return s
}

// analysisResult is produced by exactly one of the two analysis paths
type analysisResult interface {
	analysis() types.MatchAnalysis
	sealed()
}

type aiResult struct {
	payload *ai.AnalysisPayload
}

func (r aiResult) analysis() types.MatchAnalysis {
	return types.MatchAnalysis{
		MatchScore:     r.payload.MatchScore,
		SkillGap:       r.payload.SkillGap,
		Recommendation: r.payload.Recommendation,
		Source:         types.SourceAI,
	}
}

func (aiResult) sealed() {}

type fallbackResult struct {
	result types.MatchAnalysis
}

func (r fallbackResult) analysis() types.MatchAnalysis { return r.result }

func (fallbackResult) sealed() {}

// Analyze computes, stores and returns the analysis of userID against jobID
func (s *Service) Analyze(ctx context.Context, userID string, jobID int64) (*types.MatchAnalysis, error) {
	job, err := s.store.GetJobSummary(ctx, jobID)
	if err != nil {
		return nil, errors.FromStore(err, errors.ErrCodeJobNotFound, fmt.Sprintf("job %d not found", jobID))
	}
	profile, err := s.store.GetProfileBundle(ctx, userID)
	if err != nil {
		return nil, errors.FromStore(err, errors.ErrCodeNotFound, "profile not found")
	}

	result := s.produce(ctx, *profile, *job)

	analysis := result.analysis()
	analysis.UserID = userID
	analysis.JobID = jobID
	analysis.AnalyzedAt = s.now().UTC()

	stored, err := s.store.UpsertAnalysis(ctx, analysis)
	if err != nil {
		return nil, errors.FromStore(err, errors.ErrCodeNotFound, "")
	}

	s.obs.GetMetrics().RecordBusinessMetric(ctx, observability.MetricAnalysisCompleted, true, s.obs,
		attribute.String("source", string(stored.Source)))
	s.publisher.Publish(ctx, events.AnalysisCompleted, events.AnalysisCompletedPayload{
		UserID:     userID,
		JobID:      jobID,
		MatchScore: stored.MatchScore,
		Source:     string(stored.Source),
		AnalyzedAt: stored.AnalyzedAt,
	})

	return stored, nil
}

// produce runs the model path and falls back to the rule-based scorer on any
// gateway or parse failure
func (s *Service) produce(ctx context.Context, profile types.ProfileBundle, job types.JobSummary) analysisResult {
	if s.gateway == nil {
		return s.fallback(ctx, profile, job, nil)
	}

	var payload *ai.AnalysisPayload
	err := s.obs.GetMetrics().TrackAIOperationWithTokens(ctx, config.OperationAnalysis,
		func(ctx context.Context) *observability.AIOperationResult {
			completion, err := s.gateway.Complete(ctx, ai.BuildAnalysisPrompt(profile, job))
			if err != nil {
				return &observability.AIOperationResult{Error: err}
			}
			result := &observability.AIOperationResult{TokenUsage: tokenUsage(completion.Usage)}
			payload, result.Error = ai.ParseAnalysis(completion.Text)
			return result
		}, s.obs)
	if err != nil {
		return s.fallback(ctx, profile, job, err)
	}
	return aiResult{payload: payload}
}

func (s *Service) fallback(ctx context.Context, profile types.ProfileBundle, job types.JobSummary, cause error) analysisResult {
	if cause != nil {
		s.logger.Warn("AI analysis failed, using fallback scorer", "job_id", job.ID, "error", cause.Error())
	}
	s.obs.GetMetrics().RecordBusinessMetric(ctx, observability.MetricAnalysisFallback, true, s.obs)
	return fallbackResult{result: FallbackScore(profile, job)}
}

func tokenUsage(u *ai.TokenUsage) *observability.TokenUsage {
	if u == nil {
		return nil
	}
	return &observability.TokenUsage{
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		TotalTokens:  u.TotalTokens,
	}
}

// GetExisting returns the stored analysis without computing anything
func (s *Service) GetExisting(ctx context.Context, userID string, jobID int64) (*types.MatchAnalysis, error) {
	analysis, err := s.store.GetAnalysis(ctx, userID, jobID)
	if err != nil {
		return nil, errors.FromStore(err, errors.ErrCodeAnalysisNotFound, fmt.Sprintf("no analysis for job %d", jobID))
	}
	return analysis, nil
}

// Refresh re-analyzes up to limit pairs whose analysis is older than
// olderThan and returns how many were refreshed. A pair that fails is logged
// and skipped.
func (s *Service) Refresh(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	pairs, err := s.store.StaleAnalyses(ctx, s.now().Add(-olderThan), limit)
	if err != nil {
		return 0, errors.FromStore(err, errors.ErrCodeNotFound, "")
	}

	refreshed := 0
	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}
		if _, err := s.Analyze(ctx, pair.UserID, pair.JobID); err != nil {
			s.logger.LogError(err, "Failed to refresh analysis", "user_id", pair.UserID, "job_id", pair.JobID)
			continue
		}
		refreshed++
		s.obs.GetMetrics().RecordBusinessMetric(ctx, observability.MetricAnalysisRefreshed, true, s.obs)
	}
	return refreshed, nil
}
