package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateInputFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(file, []byte("jobs: []"), 0600))

	assert.NoError(t, ValidateInputFile(file))
	assert.ErrorContains(t, ValidateInputFile(""), "empty")
	assert.ErrorContains(t, ValidateInputFile(filepath.Join(dir, "missing.yaml")), "does not exist")
	assert.ErrorContains(t, ValidateInputFile(dir), "directory")
}

func TestValidateOutputFileCreatesDirectory(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "out", "analysis.json")

	require.NoError(t, ValidateOutputFile(target))
	info, err := os.Stat(filepath.Dir(target))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	assert.NoError(t, ValidateOutputFile(""))
	assert.NoError(t, ValidateOutputFile("local.json"))
}

func TestIsSeedFile(t *testing.T) {
	assert.True(t, IsSeedFile("seed.YAML"))
	assert.True(t, IsSeedFile("data/seed.yml"))
	assert.True(t, IsSeedFile("seed.json"))
	assert.False(t, IsSeedFile("seed.txt"))
	assert.False(t, IsSeedFile("seed"))
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatFileSize(512))
	assert.Equal(t, "64 KiB", FormatFileSize(64*1024))
	assert.Equal(t, "1.5 MiB", FormatFileSize(1536*1024))
	assert.Equal(t, "0 B", FormatFileSize(-1))
}
