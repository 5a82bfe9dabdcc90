package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unauthorized", NewUnauthorizedError(ErrCodeUnauthorized, "no user"), http.StatusUnauthorized},
		{"not found", NewNotFoundError(ErrCodeJobNotFound, "job not found", nil), http.StatusNotFound},
		{"validation", NewValidationError(ErrCodeInvalidOption, "bad option", nil), http.StatusBadRequest},
		{"upstream", NewUpstreamError(ErrCodeModelUnavailable, "model down", nil), http.StatusBadGateway},
		{"malformed", NewMalformedResponseError("bad json", nil), http.StatusBadGateway},
		{"config", NewConfigError(ErrCodeMissingAPIKey, "missing key", nil), http.StatusInternalServerError},
		{"plain error", stderrors.New("boom"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("outer: %w", NewNotFoundError(ErrCodeQuestNotFound, "quest", nil)), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := NewInternalError(ErrCodeStorageFailed, "upsert failed", ErrRecordNotFound)

	assert.True(t, stderrors.Is(err, ErrRecordNotFound))
	assert.Contains(t, err.Error(), "caused by")
	assert.True(t, IsType(err, ErrorTypeInternal))
	assert.False(t, IsType(nil, ErrorTypeInternal))
}

func TestFromStore(t *testing.T) {
	missing := FromStore(fmt.Errorf("get job: %w", ErrRecordNotFound), ErrCodeJobNotFound, "job 7 not found")
	var appErr *AppError
	assert.ErrorAs(t, missing, &appErr)
	assert.Equal(t, ErrorTypeNotFound, appErr.Type)
	assert.Equal(t, ErrCodeJobNotFound, appErr.Code)
	assert.Equal(t, "job 7 not found", appErr.Message)

	// Without a not-found message a miss is a storage failure
	assert.True(t, IsType(FromStore(ErrRecordNotFound, "", ""), ErrorTypeInternal))

	validation := NewValidationError(ErrCodeInvalidOption, "bad option", nil)
	assert.Same(t, validation, FromStore(validation, ErrCodeQuestNotFound, "quest"))

	failed := FromStore(stderrors.New("disk full"), ErrCodeJobNotFound, "job")
	assert.ErrorAs(t, failed, &appErr)
	assert.Equal(t, ErrCodeStorageFailed, appErr.Code)
	assert.Equal(t, ErrorTypeInternal, appErr.Type)
}

func TestWithContext(t *testing.T) {
	err := NewValidationError(ErrCodeInvalidRequest, "bad", nil).
		WithContext("job_id", 7).
		WithContext("field", "count")

	assert.Equal(t, 7, err.Context["job_id"])
	assert.Equal(t, "count", err.Context["field"])
}

func TestNewLoggerLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		logger, err := New(level)
		assert.NoError(t, err)
		assert.NotNil(t, logger)
	}

	_, err := New("verbose")
	assert.Error(t, err)
}
