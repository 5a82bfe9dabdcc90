package common

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mfarzz/jobai/internal/errors"
	"github.com/mfarzz/jobai/internal/formatters"
	"github.com/mfarzz/jobai/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateOutputFormat(t *testing.T) {
	supported := []string{"json", "text", "markdown"}

	tests := []struct {
		name      string
		format    string
		supported []string
		wantErr   string
	}{
		{name: "json", format: "json", supported: supported},
		{name: "markdown", format: "markdown", supported: supported},
		{name: "unknown", format: "xml", supported: supported, wantErr: "unsupported output format 'xml'. Supported formats: [json text markdown]"},
		{name: "case sensitive", format: "JSON", supported: supported, wantErr: "unsupported output format 'JSON'"},
		{name: "empty format", format: "", supported: supported, wantErr: "unsupported output format ''"},
		{name: "no restrictions", format: "xml", supported: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputFormat(tt.format, tt.supported)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func testHandler(buf *bytes.Buffer) *OutputHandler {
	return &OutputHandler{
		fileProcessor: NewFileProcessor(0, nil),
		registry:      formatters.GlobalRegistry,
		stdout:        buf,
	}
}

func TestHandleOutputStdoutAndFile(t *testing.T) {
	var buf bytes.Buffer
	result := types.SubmissionResult{QuestID: "q1", Status: types.StatusCompleted, IsCorrect: true}

	require.NoError(t, testHandler(&buf).HandleOutput(result, CommandConfig{OutputFormat: "text"}))
	assert.Contains(t, buf.String(), "Result: Correct")

	target := filepath.Join(t.TempDir(), "out", "result.json")
	require.NoError(t, testHandler(&buf).HandleOutput(result, CommandConfig{OutputFormat: "json", OutputFile: target}))
	written, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(written), `"questId": "q1"`)
}

func TestHandleOutputUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := testHandler(&buf).HandleOutput(types.SubmissionResult{}, CommandConfig{OutputFormat: "yaml"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestRunCommand(t *testing.T) {
	cfg := CommandConfig{OutputFormat: "json", SupportedFormats: []string{"json"}, OutputFile: filepath.Join(t.TempDir(), "out.json")}

	err := RunCommand(context.Background(), nil, cfg, func(context.Context) (map[string]int, error) {
		return map[string]int{"jobs": 3}, nil
	})
	require.NoError(t, err)

	boom := errors.NewNotFoundError(errors.ErrCodeJobNotFound, "job 9 not found", nil)
	err = RunCommand(context.Background(), nil, cfg, func(context.Context) (map[string]int, error) {
		return nil, boom
	})
	assert.Same(t, boom, err)

	cfg.OutputFormat = "text"
	err = RunCommand(context.Background(), nil, cfg, func(context.Context) (map[string]int, error) {
		t.Fatal("operation must not run with an unsupported format")
		return nil, nil
	})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestReadInputFile(t *testing.T) {
	dir := t.TempDir()
	seed := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seed, []byte("jobs: []\n"), 0600))

	content, err := NewFileProcessor(0, nil).ReadInputFile(seed)
	require.NoError(t, err)
	assert.Equal(t, "jobs: []\n", string(content))

	big := filepath.Join(dir, "big.yaml")
	require.NoError(t, os.WriteFile(big, []byte(strings.Repeat("x", 101)), 0600))
	_, err = NewFileProcessor(100, nil).ReadInputFile(big)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = NewFileProcessor(0, nil).ReadInputFile(filepath.Join(dir, "nope.yaml"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation), fmt.Sprint(err))
}
