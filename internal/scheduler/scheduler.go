// Package scheduler runs the periodic re-analysis of stale match results.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mfarzz/jobai/internal/config"
	"github.com/mfarzz/jobai/internal/errors"

	"github.com/robfig/cron/v3"
)

// Refresher re-analyzes stale (user, job) pairs
type Refresher interface {
	Refresh(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// Scheduler wraps robfig/cron and owns the refresh job
type Scheduler struct {
	cron       *cron.Cron
	refresher  Refresher
	spec       string
	staleAfter time.Duration
	batchSize  int
	logger     *errors.Logger

	mu      sync.Mutex
	running bool
}

// New creates a scheduler for the configured spec. The spec accepts the
// standard five-field format and descriptors such as "@every 6h".
func New(cfg config.SchedulerConfig, refresher Refresher, logger *errors.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(cfg.Spec); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("invalid scheduler spec %q", cfg.Spec), err)
	}
	return &Scheduler{
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		refresher:  refresher,
		spec:       cfg.Spec,
		staleAfter: cfg.StaleAfter,
		batchSize:  cfg.BatchSize,
		logger:     logger,
	}, nil
}

// Start registers the refresh job and starts the cron loop. Jobs run with
// ctx and stop early once it is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.cron.Start()
	s.logger.Info("Scheduler started", "spec", s.spec, "stale_after", s.staleAfter.String(), "batch_size", s.batchSize)
	return nil
}

// Stop halts the cron loop and waits for a running job to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// RunOnce performs a single refresh cycle. Overlapping calls are skipped.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return 0
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	refreshed, err := s.refresher.Refresh(ctx, s.staleAfter, s.batchSize)
	if err != nil {
		s.logger.LogError(err, "Refresh cycle failed", "refreshed", refreshed)
		return refreshed
	}
	s.logger.Info("Refresh cycle complete", "refreshed", refreshed)
	return refreshed
}
