package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/mfarzz/jobai/internal/config"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// Business metric types accepted by RecordBusinessMetric
const (
	MetricAnalysisCompleted = "analysis_completed"
	MetricAnalysisFallback  = "analysis_fallback"
	MetricAnalysisRefreshed = "analysis_refreshed"
	MetricQuestsGenerated   = "quests_generated"
	MetricQuestSubmitted    = "quest_submitted"
	MetricRateLimitHit      = "rate_limit_hit"
)

// Metrics holds the jobai instruments. The zero value records nothing.
type Metrics struct {
	AIProcessingTime metric.Float64Histogram
	AIRequestCount   metric.Int64Counter
	AIErrorCount     metric.Int64Counter
	AITokenUsage     metric.Int64Histogram

	AnalysesCompleted metric.Int64Counter
	AnalysisFallbacks metric.Int64Counter
	AnalysesRefreshed metric.Int64Counter
	QuestsGenerated   metric.Int64Counter
	QuestSubmissions  metric.Int64Counter

	RateLimitHits metric.Int64Counter
}

// AIOperationResult holds the result of an AI operation including token usage
type AIOperationResult struct {
	Error      error
	TokenUsage *TokenUsage
}

// TokenUsage represents token usage information from AI responses
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

func (om *ObservabilityManager) initCustomMetrics() error {
	meter := om.meterProvider.Meter(om.config.ServiceName)
	m := &Metrics{}

	var err error
	m.AIProcessingTime, err = meter.Float64Histogram("jobai_ai_processing_duration_seconds",
		metric.WithDescription("Time spent waiting on the model"),
		metric.WithUnit("s"))
	if err != nil {
		return fmt.Errorf("failed to create AI duration metric: %w", err)
	}

	m.AITokenUsage, err = meter.Int64Histogram("jobai_ai_token_usage_total",
		metric.WithDescription("Tokens per model call, by token_type"),
		metric.WithUnit("tokens"))
	if err != nil {
		return fmt.Errorf("failed to create AI token metric: %w", err)
	}

	counters := []struct {
		target *metric.Int64Counter
		name   string
		desc   string
	}{
		{&m.AIRequestCount, "jobai_ai_requests_total", "Model calls made"},
		{&m.AIErrorCount, "jobai_ai_errors_total", "Model calls that failed"},
		{&m.AnalysesCompleted, "jobai_analyses_completed_total", "Match analyses persisted, by source"},
		{&m.AnalysisFallbacks, "jobai_analysis_fallbacks_total", "Analyses scored by the heuristic fallback"},
		{&m.AnalysesRefreshed, "jobai_analyses_refreshed_total", "Stale analyses recomputed"},
		{&m.QuestsGenerated, "jobai_quests_generated_total", "Quests generated"},
		{&m.QuestSubmissions, "jobai_quest_submissions_total", "Quest answers submitted"},
		{&m.RateLimitHits, "jobai_rate_limit_hits_total", "Requests rejected by the rate limiter"},
	}
	for _, c := range counters {
		if *c.target, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return fmt.Errorf("failed to create %s: %w", c.name, err)
		}
	}

	om.metrics = m
	return nil
}

// GetMetrics returns the instruments. It never returns nil.
func (om *ObservabilityManager) GetMetrics() *Metrics {
	if om == nil || om.metrics == nil {
		return &Metrics{}
	}
	return om.metrics
}

// tracks reports whether a custom metric toggle is on. Without a full config
// every metric is tracked.
func (om *ObservabilityManager) tracks(toggle func(config.CustomMetricsConfig) bool) bool {
	if om == nil || om.fullConfig == nil {
		return true
	}
	return toggle(om.fullConfig.Observability.CustomMetrics)
}

// TrackAIOperationWithTokens runs fn inside an "ai.<operation>" span and
// records duration, request, error and token metrics for it.
func (m *Metrics) TrackAIOperationWithTokens(ctx context.Context, operation string, fn func(context.Context) *AIOperationResult, om *ObservabilityManager) error {
	if m == nil || m.AIRequestCount == nil {
		if result := fn(ctx); result != nil {
			return result.Error
		}
		return nil
	}

	ctx, span := om.Tracer("jobai.ai").Start(ctx, "ai."+operation)
	defer span.End()

	start := time.Now()
	result := fn(ctx)
	elapsed := time.Since(start).Seconds()
	if result == nil {
		result = &AIOperationResult{}
	}

	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.Bool("success", result.Error == nil),
	}
	span.SetAttributes(attrs...)
	if result.Error != nil {
		span.RecordError(result.Error)
		span.SetStatus(codes.Error, result.Error.Error())
	}
	if usage := result.TokenUsage; usage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", usage.InputTokens),
			attribute.Int64("ai.tokens.output", usage.OutputTokens),
			attribute.Int64("ai.tokens.total", usage.TotalTokens),
		)
	}

	if !om.tracks(func(c config.CustomMetricsConfig) bool { return c.AIOperations.Enabled }) {
		return result.Error
	}

	set := metric.WithAttributes(attrs...)
	m.AIRequestCount.Add(ctx, 1, set)
	if result.Error != nil {
		m.AIErrorCount.Add(ctx, 1, set)
	}
	if om.tracks(func(c config.CustomMetricsConfig) bool { return c.AIOperations.TrackDuration }) {
		m.AIProcessingTime.Record(ctx, elapsed, set)
	}
	if usage := result.TokenUsage; usage != nil &&
		om.tracks(func(c config.CustomMetricsConfig) bool { return c.AIOperations.TrackTokenUsage }) {
		for tokenType, n := range map[string]int64{
			"input":  usage.InputTokens,
			"output": usage.OutputTokens,
			"total":  usage.TotalTokens,
		} {
			m.AITokenUsage.Record(ctx, n, metric.WithAttributes(append(attrs, attribute.String("token_type", tokenType))...))
		}
	}

	return result.Error
}

// RecordBusinessMetric increments the counter for metricType. Unknown types
// are ignored.
func (m *Metrics) RecordBusinessMetric(ctx context.Context, metricType string, success bool, om *ObservabilityManager, attributes ...attribute.KeyValue) {
	if m == nil {
		return
	}

	var counter metric.Int64Counter
	enabled := om.tracks(func(c config.CustomMetricsConfig) bool { return c.BusinessMetrics.Enabled })
	switch metricType {
	case MetricAnalysisCompleted:
		counter = m.AnalysesCompleted
	case MetricAnalysisFallback:
		counter = m.AnalysisFallbacks
		enabled = enabled && om.tracks(func(c config.CustomMetricsConfig) bool { return c.BusinessMetrics.TrackFallbacks })
	case MetricAnalysisRefreshed:
		counter = m.AnalysesRefreshed
	case MetricQuestsGenerated:
		counter = m.QuestsGenerated
	case MetricQuestSubmitted:
		counter = m.QuestSubmissions
	case MetricRateLimitHit:
		counter = m.RateLimitHits
		enabled = om.tracks(func(c config.CustomMetricsConfig) bool {
			return c.Infrastructure.Enabled && c.Infrastructure.TrackRateLimits
		})
	}
	if counter == nil || !enabled {
		return
	}

	attrs := append([]attribute.KeyValue{attribute.Bool("success", success)}, attributes...)
	counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}
