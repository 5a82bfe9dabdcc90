package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/vault/api"
	"github.com/mfarzz/jobai/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockLogger() *errors.Logger {
	logger, _ := errors.New("debug")
	return logger
}

type fakeSecretReader struct {
	strings map[string]string
	slices  map[string][]string
	err     error
}

func (f *fakeSecretReader) GetStringSecret(path, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.strings[path+"#"+key], nil
}

func (f *fakeSecretReader) GetStringSliceSecret(path, key string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.slices[path+"#"+key], nil
}

func TestParseVersionValue(t *testing.T) {
	tests := []struct {
		name        string
		input       any
		expected    int64
		expectError bool
	}{
		{name: "int64 value", input: int64(42), expected: 42},
		{name: "float64 value", input: float64(42.0), expected: 42},
		{name: "json number", input: json.Number("7"), expected: 7},
		{name: "string value", input: "42", expected: 42},
		{name: "invalid string value", input: "not-a-number", expectError: true},
		{name: "unsupported type", input: []string{"42"}, expectError: true},
		{name: "nil", input: nil, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseVersionValue(tt.input, "secret/test")
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestApplyGeminiKeyToConfig(t *testing.T) {
	config := &Config{
		AI: AIConfig{
			Analysis: OperationAIConfig{APIKey: "existing-analysis-key"},
		},
	}

	applyGeminiKeyToConfig(config, "vault-key")

	assert.Equal(t, "vault-key", config.AI.APIKey)
	assert.Equal(t, "existing-analysis-key", config.AI.Analysis.APIKey)
	assert.Equal(t, "vault-key", config.AI.Quest.APIKey)
}

func TestApplySecrets(t *testing.T) {
	config := &Config{
		Vault: VaultConfig{
			Enabled: true,
			Secrets: VaultSecrets{
				APIKeys:   "secret/data/jobai/api",
				GeminiKey: "secret/data/jobai/gemini",
				Database:  "secret/data/jobai/db",
			},
		},
	}
	reader := &fakeSecretReader{
		strings: map[string]string{
			"secret/data/jobai/gemini#api_key": "gem-key",
			"secret/data/jobai/db#url":         "postgres://jobai@db/jobai",
		},
		slices: map[string][]string{
			"secret/data/jobai/api#keys": {"k1", "k2"},
		},
	}

	require.NoError(t, applySecrets(reader, config, newMockLogger()))

	assert.Equal(t, []string{"k1", "k2"}, config.Server.APIKeys)
	assert.Equal(t, "gem-key", config.AI.APIKey)
	assert.Equal(t, "postgres://jobai@db/jobai", config.Database.URL)
}

func TestApplySecretsPropagatesErrors(t *testing.T) {
	config := &Config{Vault: VaultConfig{Secrets: VaultSecrets{GeminiKey: "secret/data/x"}}}
	reader := &fakeSecretReader{err: fmt.Errorf("permission denied")}

	err := applySecrets(reader, config, newMockLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Gemini API key")
}

func TestApplyVaultSecretsDisabled(t *testing.T) {
	config := &Config{Vault: VaultConfig{Enabled: false}}
	assert.NoError(t, ApplyVaultSecrets(config, newMockLogger()))
}

func TestSecretString(t *testing.T) {
	secret := &VaultSecret{Data: map[string]any{"url": "db-url", "count": 3}}

	value, err := secretString(secret, "p", "url")
	require.NoError(t, err)
	assert.Equal(t, "db-url", value)

	_, err = secretString(secret, "p", "count")
	assert.Error(t, err)

	_, err = secretString(secret, "p", "missing")
	assert.Error(t, err)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "abcd****wxyz", maskSecret("abcdefghijklmnopqrstuvwxyz"))
	assert.Equal(t, "****", maskSecret("short"))
	assert.Equal(t, "", maskSecret(""))
}

func TestResolveVaultToken(t *testing.T) {
	t.Run("token from config", func(t *testing.T) {
		token, err := resolveVaultToken(VaultConfig{Token: "direct-token"}, newMockLogger())
		assert.NoError(t, err)
		assert.Equal(t, "direct-token", token)
	})

	t.Run("token from file", func(t *testing.T) {
		tokenFile := filepath.Join(t.TempDir(), "token")
		require.NoError(t, os.WriteFile(tokenFile, []byte("  file-token\n"), 0600))

		token, err := resolveVaultToken(VaultConfig{TokenFile: tokenFile}, newMockLogger())
		assert.NoError(t, err)
		assert.Equal(t, "file-token", token)
	})

	t.Run("token from environment", func(t *testing.T) {
		t.Setenv("VAULT_TOKEN", "env-token")
		token, err := resolveVaultToken(VaultConfig{}, newMockLogger())
		assert.NoError(t, err)
		assert.Equal(t, "env-token", token)
	})

	t.Run("missing token", func(t *testing.T) {
		t.Setenv("VAULT_TOKEN", "")
		_, err := resolveVaultToken(VaultConfig{}, newMockLogger())
		assert.Error(t, err)
	})

	t.Run("unreadable token file", func(t *testing.T) {
		_, err := resolveVaultToken(VaultConfig{TokenFile: filepath.Join(t.TempDir(), "missing")}, newMockLogger())
		assert.Error(t, err)
	})
}

func TestVaultClientExtractSecretData(t *testing.T) {
	vc := &VaultClient{logger: newMockLogger()}

	data, err := vc.extractSecretData(&api.Secret{
		Data: map[string]any{"data": map[string]any{"api_key": "v"}},
	}, "secret/test")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"api_key": "v"}, data)

	_, err = vc.extractSecretData(&api.Secret{Data: map[string]any{"data": "not-a-map"}}, "secret/test")
	assert.Error(t, err)
}

func TestVaultClientExtractSecretVersion(t *testing.T) {
	vc := &VaultClient{logger: newMockLogger()}

	version, err := vc.extractSecretVersion(&api.Secret{
		Data: map[string]any{"metadata": map[string]any{"version": float64(3)}},
	}, "secret/test")
	require.NoError(t, err)
	assert.Equal(t, int64(3), version)

	_, err = vc.extractSecretVersion(&api.Secret{
		Data: map[string]any{"metadata": map[string]any{"other": 1}},
	}, "secret/test")
	assert.Error(t, err)

	_, err = vc.extractSecretVersion(&api.Secret{Data: map[string]any{}}, "secret/test")
	assert.Error(t, err)
}

func TestGetSecretV2NilClient(t *testing.T) {
	var vc *VaultClient
	_, err := vc.GetSecretV2("secret/test")
	assert.Error(t, err)
}
