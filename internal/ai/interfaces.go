package ai

import "context"

// Gateway sends a single prompt to a language model and returns its raw text.
// It performs no parsing or validation of the returned text.
type Gateway interface {
	Complete(ctx context.Context, prompt string) (*Completion, error)
}

// ModelInspector is implemented by gateways that can report model metadata
type ModelInspector interface {
	GetModelInfo(ctx context.Context) (*ModelInfo, error)
}

// Completion is the raw model output for one prompt
type Completion struct {
	Text  string
	Model string
	Usage *TokenUsage
}

// TokenUsage represents token consumption for a model call
type TokenUsage struct {
	InputTokens  int64 `json:"inputTokens"`
	OutputTokens int64 `json:"outputTokens"`
	TotalTokens  int64 `json:"totalTokens"`
}

// ModelInfo contains information about the configured model
type ModelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}
