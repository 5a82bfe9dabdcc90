package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/mfarzz/jobai/internal/config"
	"github.com/mfarzz/jobai/internal/errors"
)

// VaultClientInterface defines the Vault operations needed for key rotation
type VaultClientInterface interface {
	GetSecretV2(path string) (*config.VaultSecret, error)
	GetStringSliceSecret(path, key string) ([]string, error)
}

// KeySink receives a rotated set of API keys
type KeySink interface {
	SetAPIKeys(keys []string)
}

// apiKeysField is the KVv2 field holding the comma-separated key list
const apiKeysField = "keys"

// VaultWatcher polls a Vault secret and pushes new API keys to the server
// whenever the secret version increases.
type VaultWatcher struct {
	mu sync.RWMutex

	client       VaultClientInterface
	secretPath   string
	pollInterval time.Duration
	sink         KeySink
	logger       *errors.Logger

	stopChan    chan struct{}
	running     bool
	lastVersion int64
	rotations   int
}

// NewVaultWatcher creates a new VaultWatcher
func NewVaultWatcher(client VaultClientInterface, secretPath string, pollInterval time.Duration, sink KeySink, logger *errors.Logger) *VaultWatcher {
	return &VaultWatcher{
		client:       client,
		secretPath:   secretPath,
		pollInterval: pollInterval,
		sink:         sink,
		logger:       logger,
		stopChan:     make(chan struct{}),
	}
}

// Start records the current secret version and begins polling
func (vw *VaultWatcher) Start() error {
	vw.mu.Lock()
	defer vw.mu.Unlock()
	if vw.running {
		return fmt.Errorf("vault watcher is already running")
	}
	if vw.pollInterval <= 0 {
		return fmt.Errorf("vault watcher poll interval must be positive, got %s", vw.pollInterval)
	}

	// Keys loaded at startup already reflect the current version
	if secret, err := vw.client.GetSecretV2(vw.secretPath); err == nil && secret != nil {
		vw.lastVersion = secret.Version
	}

	vw.running = true
	go vw.pollLoop()
	if vw.logger != nil {
		vw.logger.Info("Vault key watcher started", "secret_path", vw.secretPath, "poll_interval", vw.pollInterval)
	}
	return nil
}

// Stop stops the Vault watcher
func (vw *VaultWatcher) Stop() error {
	vw.mu.Lock()
	defer vw.mu.Unlock()
	if !vw.running {
		return nil
	}
	close(vw.stopChan)
	vw.running = false
	if vw.logger != nil {
		vw.logger.Info("Vault key watcher stopped")
	}
	return nil
}

func (vw *VaultWatcher) pollLoop() {
	ticker := time.NewTicker(vw.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := vw.poll(); err != nil && vw.logger != nil {
				vw.logger.LogError(err, "Failed to rotate API keys from Vault")
			}
		case <-vw.stopChan:
			return
		}
	}
}

// poll performs a single version check and rotates keys on change
func (vw *VaultWatcher) poll() error {
	changed, err := vw.checkForUpdates()
	if err != nil || !changed {
		return err
	}

	keys, err := vw.client.GetStringSliceSecret(vw.secretPath, apiKeysField)
	if err != nil {
		return fmt.Errorf("failed to fetch API keys from vault: %w", err)
	}
	if len(keys) == 0 {
		// An empty list would silently disable authentication
		if vw.logger != nil {
			vw.logger.Warn("Vault secret has no API keys, keeping current set", "path", vw.secretPath)
		}
		return nil
	}

	vw.sink.SetAPIKeys(keys)

	vw.mu.Lock()
	vw.rotations++
	vw.mu.Unlock()

	if vw.logger != nil {
		vw.logger.Info("API keys rotated from Vault", "count", len(keys))
	}
	return nil
}

// checkForUpdates checks if the Vault secret version has changed
func (vw *VaultWatcher) checkForUpdates() (bool, error) {
	secret, err := vw.client.GetSecretV2(vw.secretPath)
	if err != nil {
		return false, fmt.Errorf("failed to read secret: %w", err)
	}
	if secret == nil {
		return false, nil
	}

	vw.mu.Lock()
	defer vw.mu.Unlock()
	if secret.Version > vw.lastVersion {
		vw.lastVersion = secret.Version
		return true, nil
	}
	return false, nil
}

// Status returns the current status of the VaultWatcher for health reporting
func (vw *VaultWatcher) Status() map[string]any {
	vw.mu.RLock()
	defer vw.mu.RUnlock()
	return map[string]any{
		"running":       vw.running,
		"poll_interval": vw.pollInterval.String(),
		"secret_path":   vw.secretPath,
		"last_version":  vw.lastVersion,
		"rotations":     vw.rotations,
	}
}
