package ai

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mfarzz/jobai/internal/config"
	"github.com/mfarzz/jobai/internal/errors"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

const modelCheckTimeout = 10 * time.Second

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

type getModelFunc func(ctx context.Context, model string) (*genai.Model, error)

// GeminiGateway implements Gateway for Google Gemini. It makes exactly one
// attempt per call.
type GeminiGateway struct {
	cfg          *config.OperationAIConfig
	operation    string
	systemPrompt func() string

	breaker      *CircuitBreaker[*genai.GenerateContentResponse]
	modelBreaker *CircuitBreaker[*genai.Model]

	generate generateFunc
	getModel getModelFunc

	logger *errors.Logger
}

var (
	_ Gateway        = (*GeminiGateway)(nil)
	_ ModelInspector = (*GeminiGateway)(nil)
)

// NewGeminiGateway creates a Gemini gateway for one operation. systemPrompt is
// consulted on every call so reloaded prompts take effect immediately.
func NewGeminiGateway(ctx context.Context, cfg *config.OperationAIConfig, operation string, systemPrompt func() string, logger *errors.Logger) (*GeminiGateway, error) {
	if cfg.APIKey == "" {
		return nil, errors.NewConfigError(errors.ErrCodeMissingAPIKey,
			fmt.Sprintf("no API key configured for %s", operation), nil)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "failed to create Gemini client", err)
	}

	g := newGeminiGateway(cfg, operation, systemPrompt, logger)
	g.generate = client.Models.GenerateContent
	g.getModel = func(ctx context.Context, model string) (*genai.Model, error) {
		return client.Models.Get(ctx, model, &genai.GetModelConfig{})
	}
	return g, nil
}

func newGeminiGateway(cfg *config.OperationAIConfig, operation string, systemPrompt func() string, logger *errors.Logger) *GeminiGateway {
	if systemPrompt == nil {
		systemPrompt = func() string { return "" }
	}
	return &GeminiGateway{
		cfg:          cfg,
		operation:    operation,
		systemPrompt: systemPrompt,
		breaker:      NewCircuitBreaker[*genai.GenerateContentResponse](operation, cfg.CircuitBreaker, logger),
		modelBreaker: NewModelCircuitBreaker[*genai.Model]("Model-"+operation, cfg.CircuitBreaker, logger),
		logger:       logger,
	}
}

// Complete sends the prompt and returns the model's raw text
func (g *GeminiGateway) Complete(ctx context.Context, prompt string) (*Completion, error) {
	tracer := otel.Tracer("jobai.ai.gemini")
	ctx, span := tracer.Start(ctx, "gemini.complete")
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.model", g.cfg.Model),
		attribute.String("ai.operation", g.operation),
		attribute.Int("input.prompt_length", len(prompt)),
	)

	if g.cfg.Timeout != nil && *g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *g.cfg.Timeout)
		defer cancel()
	}

	genaiConfig := g.buildConfig()

	result, err := g.breaker.Execute(func() (*genai.GenerateContentResponse, error) {
		return g.generate(ctx, g.cfg.Model, genai.Text(prompt), genaiConfig)
	})
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return nil, g.classifyError(ctx, err)
	}

	text := ""
	if result != nil {
		text = strings.TrimSpace(result.Text())
	}
	if text == "" {
		span.SetAttributes(attribute.Bool("success", false))
		return nil, errors.NewUpstreamError(errors.ErrCodeModelUnavailable,
			"model returned an empty response", nil).WithContext("operation", g.operation)
	}

	usage := extractTokenUsage(result)
	if usage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", usage.InputTokens),
			attribute.Int64("ai.tokens.output", usage.OutputTokens),
			attribute.Int64("ai.tokens.total", usage.TotalTokens),
		)
	}
	span.SetAttributes(attribute.Bool("success", true))

	if g.logger != nil {
		g.logger.Debug("Model call completed",
			"operation", g.operation,
			"model", g.cfg.Model,
			"response_length", len(text))
	}

	return &Completion{Text: text, Model: g.cfg.Model, Usage: usage}, nil
}

func (g *GeminiGateway) buildConfig() *genai.GenerateContentConfig {
	genaiConfig := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchemaFor(g.operation),
	}

	if g.cfg.Temperature != nil && *g.cfg.Temperature > 0 {
		temperature := *g.cfg.Temperature
		genaiConfig.Temperature = &temperature
	}

	if systemPrompt := g.systemPrompt(); systemPrompt != "" {
		genaiConfig.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	return genaiConfig
}

// classifyError maps a failed call to an upstream AppError
func (g *GeminiGateway) classifyError(ctx context.Context, err error) error {
	code := errors.ErrCodeModelUnavailable
	message := "model call failed"

	var netErr net.Error
	var apiErr *googleapi.Error
	var genaiErr genai.APIError
	switch {
	case stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded):
		code = errors.ErrCodeModelTimeout
		message = "model call timed out"
	case stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests):
		message = "model circuit breaker is open"
	case stderrors.As(err, &netErr) && netErr.Timeout():
		code = errors.ErrCodeModelTimeout
		message = "model call timed out"
	case stderrors.As(err, &genaiErr):
		message = statusMessage(genaiErr.Code)
	case stderrors.As(err, &apiErr):
		message = statusMessage(apiErr.Code)
	}

	if g.logger != nil {
		g.logger.Warn("Model call failed",
			"operation", g.operation,
			"model", g.cfg.Model,
			"code", code,
			"error", err.Error())
	}

	return errors.NewUpstreamError(code, message, err).WithContext("operation", g.operation)
}

// GetModelInfo checks the readiness and availability of the configured model
func (g *GeminiGateway) GetModelInfo(ctx context.Context) (*ModelInfo, error) {
	modelInfo := &ModelInfo{Name: g.cfg.Model}

	checkCtx, cancel := context.WithTimeout(ctx, modelCheckTimeout)
	defer cancel()

	model, err := g.modelBreaker.Execute(func() (*genai.Model, error) {
		return g.getModel(checkCtx, g.cfg.Model)
	})
	if err != nil {
		modelInfo.Error = fmt.Sprintf("Failed to get model info: %v", err)
		if g.logger != nil {
			g.logger.Warn("Model availability check failed",
				"model", g.cfg.Model,
				"operation", g.operation,
				"error", err.Error())
		}
		return modelInfo, errors.NewUpstreamError(errors.ErrCodeModelUnavailable, "model is not available", err)
	}

	modelInfo.Available = true
	if model != nil {
		modelInfo.DisplayName = model.DisplayName
		modelInfo.Version = model.Version
	}
	return modelInfo, nil
}

// GetCircuitBreakerStats returns statistics for both breakers
func (g *GeminiGateway) GetCircuitBreakerStats() map[string]any {
	return map[string]any{
		"completion": g.breaker.GetStats(),
		"model":      g.modelBreaker.GetStats(),
	}
}

// IsHealthy reports whether the completion breaker is closed
func (g *GeminiGateway) IsHealthy() bool {
	return g.breaker.IsHealthy()
}

// extractTokenUsage extracts token usage information from a Gemini response
func extractTokenUsage(result *genai.GenerateContentResponse) *TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return nil
	}

	usage := result.UsageMetadata
	return &TokenUsage{
		InputTokens:  int64(usage.PromptTokenCount),
		OutputTokens: int64(usage.CandidatesTokenCount),
		TotalTokens:  int64(usage.TotalTokenCount),
	}
}

// responseSchemaFor constrains the model output for known operations. The
// parser still validates every field.
func responseSchemaFor(operation string) *genai.Schema {
	switch operation {
	case config.OperationAnalysis:
		return &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"matchScore": {Type: genai.TypeInteger},
				"skillGap": {
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"missing": {
							Type: genai.TypeArray,
							Items: &genai.Schema{
								Type: genai.TypeObject,
								Properties: map[string]*genai.Schema{
									"skill":      {Type: genai.TypeString},
									"importance": {Type: genai.TypeString, Enum: []string{"high", "medium", "low"}},
								},
								Required: []string{"skill", "importance"},
							},
						},
						"existing": {
							Type: genai.TypeArray,
							Items: &genai.Schema{
								Type: genai.TypeObject,
								Properties: map[string]*genai.Schema{
									"skill": {Type: genai.TypeString},
									"level": {Type: genai.TypeString, Enum: []string{"expert", "intermediate", "beginner"}},
								},
								Required: []string{"skill", "level"},
							},
						},
					},
					Required: []string{"missing", "existing"},
				},
				"recommendation": {Type: genai.TypeString},
			},
			Required: []string{"matchScore", "skillGap", "recommendation"},
		}
	case config.OperationQuest:
		option := &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"label":       {Type: genai.TypeString, Enum: []string{"A", "B", "C"}},
				"text":        {Type: genai.TypeString},
				"xp":          {Type: genai.TypeInteger},
				"explanation": {Type: genai.TypeString},
			},
			Required: []string{"label", "text", "xp"},
		}
		return &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"question": {Type: genai.TypeString},
				"options":  {Type: genai.TypeArray, Items: option},
				"answer":   {Type: genai.TypeString, Enum: []string{"A", "B", "C"}},
			},
			Required: []string{"question", "options", "answer"},
		}
	}
	return nil
}

func statusMessage(status int) string {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return "model rejected the API key"
	case http.StatusTooManyRequests:
		return "model quota exceeded"
	default:
		return fmt.Sprintf("model returned HTTP %d", status)
	}
}
