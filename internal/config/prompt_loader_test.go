package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePromptFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to create prompt file: %v", err)
	}
	return path
}

func TestLoadPromptsFromFiles(t *testing.T) {
	tempDir := t.TempDir()
	analysisFile := writePromptFile(t, tempDir, "analysis.md", "  You are a career advisor.\n")

	config := &Config{
		AI: AIConfig{
			Analysis: OperationAIConfig{SystemPromptFile: analysisFile},
		},
	}

	if err := config.loadPromptsFromFiles(); err != nil {
		t.Fatalf("Failed to load prompts from files: %v", err)
	}

	if got := config.Prompts.Get(OperationAnalysis); got != "You are a career advisor." {
		t.Errorf("Expected trimmed prompt content, got %q", got)
	}
	if got := config.Prompts.Get(OperationQuest); got != "" {
		t.Errorf("Expected no quest prompt, got %q", got)
	}
}

func TestValidatePromptFiles(t *testing.T) {
	tempDir := t.TempDir()
	validFile := writePromptFile(t, tempDir, "valid.md", "Valid content")

	config := &Config{
		AI: AIConfig{
			Quest: OperationAIConfig{SystemPromptFile: validFile},
		},
	}

	if err := config.validatePromptFiles(); err != nil {
		t.Errorf("Expected validation to pass for valid file, got error: %v", err)
	}

	config.AI.Quest.SystemPromptFile = filepath.Join(tempDir, "nonexistent.md")
	if err := config.validatePromptFiles(); err == nil {
		t.Error("Expected validation to fail for non-existent file")
	}
}

func TestLoadPromptFromFile(t *testing.T) {
	tempDir := t.TempDir()

	content, err := loadPromptFromFile(writePromptFile(t, tempDir, "ok.md", "Prompt"), OperationQuest)
	require.NoError(t, err)
	assert.Equal(t, "Prompt", content)

	_, err = loadPromptFromFile(writePromptFile(t, tempDir, "empty.md", "   "), OperationQuest)
	assert.Error(t, err)

	_, err = loadPromptFromFile(filepath.Join(tempDir, "missing.md"), OperationQuest)
	assert.Error(t, err)
}

func TestSystemPromptForPrecedence(t *testing.T) {
	tempDir := t.TempDir()
	file := writePromptFile(t, tempDir, "quest.md", "from file")

	config := &Config{
		AI: AIConfig{
			UseSystemPrompts: true,
			Analysis:         OperationAIConfig{SystemPrompt: "inline analysis"},
			Quest:            OperationAIConfig{SystemPrompt: "inline quest", SystemPromptFile: file},
		},
	}
	require.NoError(t, config.loadPromptsFromFiles())

	assert.Equal(t, "inline analysis", config.SystemPromptFor(OperationAnalysis)())
	assert.Equal(t, "from file", config.SystemPromptFor(OperationQuest)())

	disabled := false
	config.AI.Analysis.UseSystemPrompts = &disabled
	assert.Equal(t, "", config.SystemPromptFor(OperationAnalysis)())
}

func TestReloadPrompt(t *testing.T) {
	tempDir := t.TempDir()
	file := writePromptFile(t, tempDir, "analysis.md", "first")

	config := &Config{AI: AIConfig{Analysis: OperationAIConfig{SystemPromptFile: file}}}
	require.NoError(t, config.loadPromptsFromFiles())

	writePromptFile(t, tempDir, "analysis.md", "second")
	require.NoError(t, config.ReloadPrompt(OperationAnalysis))
	assert.Equal(t, "second", config.Prompts.Get(OperationAnalysis))

	// A failed reload keeps the previous prompt
	writePromptFile(t, tempDir, "analysis.md", "")
	assert.Error(t, config.ReloadPrompt(OperationAnalysis))
	assert.Equal(t, "second", config.Prompts.Get(OperationAnalysis))

	assert.Error(t, config.ReloadPrompt(OperationQuest))
}

func TestPromptWatcherReloadsChangedFile(t *testing.T) {
	tempDir := t.TempDir()
	file := writePromptFile(t, tempDir, "quest.md", "original")

	config := &Config{AI: AIConfig{Quest: OperationAIConfig{SystemPromptFile: file}}}
	require.NoError(t, config.loadPromptsFromFiles())

	watcher, err := NewPromptWatcher(config, 10*time.Millisecond, newMockLogger())
	require.NoError(t, err)
	require.True(t, watcher.HasFiles())

	reloaded := make(chan string, 4)
	watcher.onReload = func(op string) { reloaded <- op }

	require.NoError(t, watcher.Start())
	defer func() { _ = watcher.Stop() }()

	// Ensure the new mtime is strictly later than the recorded one
	future := time.Now().Add(2 * time.Second)
	writePromptFile(t, tempDir, "quest.md", "updated")
	require.NoError(t, os.Chtimes(file, future, future))

	select {
	case op := <-reloaded:
		assert.Equal(t, OperationQuest, op)
	case <-time.After(5 * time.Second):
		t.Fatal("prompt was not reloaded")
	}
	assert.Equal(t, "updated", config.Prompts.Get(OperationQuest))
}
