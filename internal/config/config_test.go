package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		AI: AIConfig{
			Provider: "gemini",
			Model:    "gemini-2.5-flash-lite",
			Timeout:  time.Minute,
		},
		Database: DatabaseConfig{Driver: "sqlite", SQLitePath: "jobai.db"},
		Server:   ServerConfig{Port: "8080"},
		App:      AppConfig{DefaultFormat: "text", SupportedFormats: []string{"json", "text"}},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing api key is allowed", mutate: func(c *Config) { c.AI.APIKey = "" }},
		{name: "zero timeout", mutate: func(c *Config) { c.AI.Timeout = 0 }, wantErr: "timeout"},
		{name: "missing port", mutate: func(c *Config) { c.Server.Port = "" }, wantErr: "port"},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: "driver"},
		{name: "postgres without url", mutate: func(c *Config) { c.Database.Driver = "postgres" }, wantErr: "url"},
		{name: "redis without url", mutate: func(c *Config) { c.Redis.Enabled = true }, wantErr: "redis"},
		{
			name: "bad scheduler spec",
			mutate: func(c *Config) {
				c.Scheduler = SchedulerConfig{Enabled: true, Spec: "not a spec", StaleAfter: time.Hour}
			},
			wantErr: "scheduler",
		},
		{
			name: "scheduler descriptor",
			mutate: func(c *Config) {
				c.Scheduler = SchedulerConfig{Enabled: true, Spec: "@every 6h", StaleAfter: time.Hour}
			},
		},
		{
			name:    "rate limit without rate",
			mutate:  func(c *Config) { c.Server.RateLimit = RateLimitConfig{Enabled: true, BurstCapacity: 1} },
			wantErr: "requestsPerMin",
		},
		{name: "bad default format", mutate: func(c *Config) { c.App.DefaultFormat = "xml" }, wantErr: "format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestOperationDefaults(t *testing.T) {
	questTimeout := 5 * time.Second
	c := validConfig()
	c.AI.APIKey = "global-key"
	c.AI.Temperature = 0.4
	c.AI.UseSystemPrompts = true
	c.AI.CircuitBreaker = CircuitBreakerConfig{Enabled: true, FailureThreshold: 0.5}
	c.AI.Quest = OperationAIConfig{Model: "quest-model", Timeout: &questTimeout}

	analysis := c.GetAnalysisConfig()
	assert.Equal(t, "gemini", analysis.Provider)
	assert.Equal(t, "gemini-2.5-flash-lite", analysis.Model)
	assert.Equal(t, time.Minute, *analysis.Timeout)
	assert.Equal(t, "global-key", analysis.APIKey)
	assert.InDelta(t, 0.4, float64(*analysis.Temperature), 0.0001)
	assert.True(t, analysis.CircuitBreaker.Enabled)

	quest := c.GetOperationConfig(OperationQuest)
	assert.Equal(t, "quest-model", quest.Model)
	assert.Equal(t, questTimeout, *quest.Timeout)

	// Resolved configs must not alias the global values
	*analysis.Timeout = time.Hour
	assert.Equal(t, time.Minute, c.AI.Timeout)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
ai:
  model: custom-model
  quest:
    timeout: 10s
database:
  driver: sqlite
  sqlitePath: ` + filepath.Join(dir, "test.db") + `
server:
  port: "9999"
scheduler:
  enabled: true
  spec: "@every 1h"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	t.Setenv("GEMINI_API_KEY", "env-gemini-key")

	cfg, err := LoadConfigFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "custom-model", cfg.AI.Model)
	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "env-gemini-key", cfg.AI.APIKey)
	assert.Equal(t, 10*time.Second, *cfg.GetQuestConfig().Timeout)
	assert.Equal(t, 90*time.Second, *cfg.GetAnalysisConfig().Timeout)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 7*24*time.Hour, cfg.Scheduler.StaleAfter)
	assert.NotNil(t, cfg.Prompts)
	assert.NotEmpty(t, cfg.Observability.ServiceInstance)
}

func TestSplitAndTrim(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a, ,b "))
	assert.Empty(t, splitAndTrim(""))
}
