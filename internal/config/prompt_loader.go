package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// PromptStore holds system prompts loaded from files, keyed by operation.
// It is safe for concurrent use; PromptWatcher replaces entries at runtime.
type PromptStore struct {
	mu      sync.RWMutex
	prompts map[string]string
}

// NewPromptStore creates an empty prompt store
func NewPromptStore() *PromptStore {
	return &PromptStore{prompts: make(map[string]string)}
}

// Get returns the loaded prompt for an operation, or "" when none was loaded
func (s *PromptStore) Get(operation string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prompts[operation]
}

// Set replaces the loaded prompt for an operation
func (s *PromptStore) Set(operation, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts[operation] = content
}

// Count returns how many operations have a loaded prompt
func (s *PromptStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.prompts)
}

// promptFiles maps operations to their configured system prompt file
func (c *Config) promptFiles() map[string]string {
	files := make(map[string]string)
	if c.AI.Analysis.SystemPromptFile != "" {
		files[OperationAnalysis] = c.AI.Analysis.SystemPromptFile
	}
	if c.AI.Quest.SystemPromptFile != "" {
		files[OperationQuest] = c.AI.Quest.SystemPromptFile
	}
	return files
}

// loadPromptsFromFiles loads custom system prompts from external files
func (c *Config) loadPromptsFromFiles() error {
	log.Println("[CONFIG] Starting custom prompt loading from files")

	if c.Prompts == nil {
		c.Prompts = NewPromptStore()
	}

	for operation, file := range c.promptFiles() {
		content, err := loadPromptFromFile(file, operation)
		if err != nil {
			return err
		}
		c.Prompts.Set(operation, content)
	}

	if count := c.Prompts.Count(); count == 0 {
		log.Println("[CONFIG] No custom prompts loaded - using built-in defaults")
	} else {
		log.Printf("[CONFIG] Total custom prompts loaded: %d", count)
	}
	return nil
}

// ReloadPrompt re-reads the prompt file of one operation into the store
func (c *Config) ReloadPrompt(operation string) error {
	file, ok := c.promptFiles()[operation]
	if !ok {
		return fmt.Errorf("no prompt file configured for %s", operation)
	}
	content, err := loadPromptFromFile(file, operation)
	if err != nil {
		return err
	}
	c.Prompts.Set(operation, content)
	return nil
}

// loadPromptFromFile loads a prompt from a file with proper error handling and logging
func loadPromptFromFile(filePath, operation string) (string, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %s prompt file '%s': %w", operation, filePath, err)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s prompt file '%s': %w", operation, absPath, err)
	}

	trimmedContent := strings.TrimSpace(string(content))
	if trimmedContent == "" {
		return "", fmt.Errorf("%s prompt file '%s' is empty", operation, absPath)
	}

	log.Printf("[CONFIG] Successfully loaded %s system prompt from file: %s (%d characters)",
		operation, absPath, len(trimmedContent))

	return trimmedContent, nil
}

// validatePromptFiles validates that prompt files exist before loading
func (c *Config) validatePromptFiles() error {
	var validationErrors []string

	for operation, filePath := range c.promptFiles() {
		absPath, err := filepath.Abs(filePath)
		if err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("invalid path for %s prompt: %s", operation, filePath))
			continue
		}
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			validationErrors = append(validationErrors, fmt.Sprintf("%s prompt file not found: %s", operation, absPath))
		}
	}

	if len(validationErrors) > 0 {
		return fmt.Errorf("prompt file validation failed:\n%s", strings.Join(validationErrors, "\n"))
	}
	return nil
}
