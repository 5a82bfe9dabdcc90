package config

// Operation names used for per-operation AI configuration and prompts
const (
	OperationAnalysis = "analysis"
	OperationQuest    = "quest"
)

// applyOperationDefaults applies global defaults to operation-specific configuration
func (c *Config) applyOperationDefaults(opCfg *OperationAIConfig) {
	if opCfg.Provider == "" {
		opCfg.Provider = c.AI.Provider
	}
	if opCfg.Model == "" {
		opCfg.Model = c.AI.Model
	}
	if opCfg.Timeout == nil {
		timeout := c.AI.Timeout
		opCfg.Timeout = &timeout
	}
	if opCfg.APIKey == "" {
		opCfg.APIKey = c.AI.APIKey
	}
	if opCfg.Temperature == nil {
		temperature := c.AI.Temperature
		opCfg.Temperature = &temperature
	}
	if opCfg.UseSystemPrompts == nil {
		useSystemPrompts := c.AI.UseSystemPrompts
		opCfg.UseSystemPrompts = &useSystemPrompts
	}
	if opCfg.CircuitBreaker == nil {
		cb := c.AI.CircuitBreaker
		opCfg.CircuitBreaker = &cb
	}
}

// GetAnalysisConfig returns the AI configuration for match analysis with fallback to global config
func (c *Config) GetAnalysisConfig() OperationAIConfig {
	config := c.AI.Analysis
	c.applyOperationDefaults(&config)
	return config
}

// GetQuestConfig returns the AI configuration for quest generation with fallback to global config
func (c *Config) GetQuestConfig() OperationAIConfig {
	config := c.AI.Quest
	c.applyOperationDefaults(&config)
	return config
}

// GetOperationConfig returns the resolved configuration for the named operation
func (c *Config) GetOperationConfig(operation string) OperationAIConfig {
	if operation == OperationQuest {
		return c.GetQuestConfig()
	}
	return c.GetAnalysisConfig()
}

// SystemPromptFor returns a lookup for the operation's system prompt. File
// content wins over inline config, and is re-read on every call so that
// reloads by PromptWatcher take effect without a restart.
func (c *Config) SystemPromptFor(operation string) func() string {
	return func() string {
		opCfg := c.GetOperationConfig(operation)
		if opCfg.UseSystemPrompts != nil && !*opCfg.UseSystemPrompts {
			return ""
		}
		if c.Prompts != nil {
			if loaded := c.Prompts.Get(operation); loaded != "" {
				return loaded
			}
		}
		return opCfg.SystemPrompt
	}
}
