package ai

import (
	"context"
	stderrors "errors"

	"github.com/mfarzz/jobai/internal/config"
	"github.com/mfarzz/jobai/internal/errors"
)

// NewGateway creates the gateway for one operation based on its provider
func NewGateway(ctx context.Context, cfg *config.Config, operation string, logger *errors.Logger) (Gateway, error) {
	opConfig := cfg.GetOperationConfig(operation)

	switch opConfig.Provider {
	case "gemini", "":
		gateway, err := NewGeminiGateway(ctx, &opConfig, operation, systemPromptWithDefault(cfg, operation), logger)
		if err != nil {
			return nil, err
		}
		if logger != nil {
			logger.Info("Model gateway ready",
				"operation", operation,
				"provider", "gemini",
				"model", opConfig.Model)
		}
		return gateway, nil
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			"unsupported AI provider: "+opConfig.Provider, nil).WithContext("operation", operation)
	}
}

// systemPromptWithDefault falls back to the built-in system prompt when
// system prompts are enabled but none is configured for the operation
func systemPromptWithDefault(cfg *config.Config, operation string) func() string {
	lookup := cfg.SystemPromptFor(operation)
	return func() string {
		if prompt := lookup(); prompt != "" {
			return prompt
		}
		opConfig := cfg.GetOperationConfig(operation)
		if opConfig.UseSystemPrompts != nil && *opConfig.UseSystemPrompts {
			return DefaultSystemPrompts[operation]
		}
		return ""
	}
}

// IsMissingAPIKey reports whether err means no API key was configured
func IsMissingAPIKey(err error) bool {
	var appErr *errors.AppError
	return stderrors.As(err, &appErr) && appErr.Code == errors.ErrCodeMissingAPIKey
}
