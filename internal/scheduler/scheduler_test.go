package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mfarzz/jobai/internal/config"
	"github.com/mfarzz/jobai/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRefresher struct {
	calls     atomic.Int32
	olderThan time.Duration
	limit     int
	err       error
}

func (f *fakeRefresher) Refresh(_ context.Context, olderThan time.Duration, limit int) (int, error) {
	f.calls.Add(1)
	f.olderThan, f.limit = olderThan, limit
	return 2, f.err
}

func testConfig(spec string) config.SchedulerConfig {
	return config.SchedulerConfig{Enabled: true, Spec: spec, StaleAfter: 24 * time.Hour, BatchSize: 5}
}

func TestNewRejectsInvalidSpec(t *testing.T) {
	_, err := New(testConfig("every now and then"), &fakeRefresher{}, errors.NewLogger(8))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestRunOncePassesConfig(t *testing.T) {
	refresher := &fakeRefresher{}
	s, err := New(testConfig("@every 6h"), refresher, errors.NewLogger(8))
	require.NoError(t, err)

	assert.Equal(t, 2, s.RunOnce(context.Background()))
	assert.Equal(t, 24*time.Hour, refresher.olderThan)
	assert.Equal(t, 5, refresher.limit)

	refresher.err = fmt.Errorf("store down")
	assert.Equal(t, 2, s.RunOnce(context.Background()))
	assert.Equal(t, int32(2), refresher.calls.Load())
}

func TestStartRunsJob(t *testing.T) {
	refresher := &fakeRefresher{}
	s, err := New(testConfig("@every 1s"), refresher, errors.NewLogger(8))
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Eventually(t, func() bool { return refresher.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}
