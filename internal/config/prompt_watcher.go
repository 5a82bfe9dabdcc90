package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mfarzz/jobai/internal/errors"
)

// PromptWatcher watches system prompt files and reloads them into the
// config's PromptStore when they change.
type PromptWatcher struct {
	mu sync.Mutex

	cfg *Config

	// operation -> absolute file path
	files       map[string]string
	lastModTime map[string]time.Time

	fsWatcher     *fsnotify.Watcher
	debounceDelay time.Duration
	debounceTimer *time.Timer

	stopChan   chan struct{}
	reloadChan chan struct{}

	// onReload is called after each successful reload; used in tests
	onReload func(operation string)
	logger   *errors.Logger

	running bool
}

// NewPromptWatcher creates a watcher for every configured prompt file
func NewPromptWatcher(cfg *Config, debounceDelay time.Duration, logger *errors.Logger) (*PromptWatcher, error) {
	if debounceDelay == 0 {
		debounceDelay = time.Second
	}

	files := make(map[string]string)
	for operation, file := range cfg.promptFiles() {
		absPath, err := filepath.Abs(file)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve prompt file %s: %w", file, err)
		}
		files[operation] = absPath
	}

	return &PromptWatcher{
		cfg:           cfg,
		files:         files,
		lastModTime:   make(map[string]time.Time),
		debounceDelay: debounceDelay,
		stopChan:      make(chan struct{}),
		reloadChan:    make(chan struct{}, 1),
		logger:        logger,
	}, nil
}

// HasFiles reports whether there is anything to watch
func (pw *PromptWatcher) HasFiles() bool {
	return len(pw.files) > 0
}

// Start begins watching prompt files for changes
func (pw *PromptWatcher) Start() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if pw.running {
		return fmt.Errorf("prompt watcher is already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	pw.fsWatcher = watcher

	pw.updateModTimes()

	// Watch directories so editors that replace files atomically are seen
	dirs := make(map[string]bool)
	for _, file := range pw.files {
		dirs[filepath.Dir(file)] = true
	}
	for dir := range dirs {
		if err := pw.fsWatcher.Add(dir); err != nil && pw.logger != nil {
			pw.logger.Warn("Failed to watch prompt directory", "directory", dir, "error", err)
		}
	}

	pw.running = true
	go pw.watchLoop()

	if pw.logger != nil {
		pw.logger.Info("Prompt file watcher started",
			"files", len(pw.files),
			"debounce_delay", pw.debounceDelay)
	}
	return nil
}

// Stop stops the watcher
func (pw *PromptWatcher) Stop() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if !pw.running {
		return nil
	}

	close(pw.stopChan)
	if pw.debounceTimer != nil {
		pw.debounceTimer.Stop()
	}
	pw.running = false

	if pw.fsWatcher != nil {
		return pw.fsWatcher.Close()
	}
	return nil
}

func (pw *PromptWatcher) updateModTimes() {
	for _, file := range pw.files {
		if stat, err := os.Stat(file); err == nil {
			pw.lastModTime[file] = stat.ModTime()
		}
	}
}

func (pw *PromptWatcher) watchLoop() {
	for {
		select {
		case event, ok := <-pw.fsWatcher.Events:
			if !ok {
				return
			}
			if pw.shouldProcessEvent(event) {
				pw.scheduleReload()
			}

		case err, ok := <-pw.fsWatcher.Errors:
			if !ok {
				return
			}
			if pw.logger != nil {
				pw.logger.LogError(err, "Prompt watcher error")
			}

		case <-pw.reloadChan:
			pw.reloadChanged()

		case <-pw.stopChan:
			return
		}
	}
}

func (pw *PromptWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	for _, file := range pw.files {
		if event.Name == file || filepath.Base(event.Name) == filepath.Base(file) {
			return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Chmod) != 0
		}
	}
	return false
}

// scheduleReload schedules a debounced reload
func (pw *PromptWatcher) scheduleReload() {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if pw.debounceTimer != nil {
		pw.debounceTimer.Stop()
	}
	pw.debounceTimer = time.AfterFunc(pw.debounceDelay, func() {
		select {
		case pw.reloadChan <- struct{}{}:
		default:
		}
	})
}

func (pw *PromptWatcher) reloadChanged() {
	for operation, file := range pw.files {
		stat, err := os.Stat(file)
		if err != nil {
			continue
		}
		if last, ok := pw.lastModTime[file]; ok && !stat.ModTime().After(last) {
			continue
		}
		pw.lastModTime[file] = stat.ModTime()

		if err := pw.cfg.ReloadPrompt(operation); err != nil {
			// Keep serving the previous prompt
			if pw.logger != nil {
				pw.logger.LogError(err, "Failed to reload prompt file", "operation", operation, "file", file)
			}
			continue
		}
		if pw.logger != nil {
			pw.logger.Info("Reloaded system prompt", "operation", operation, "file", file)
		}
		if pw.onReload != nil {
			pw.onReload(operation)
		}
	}
}
