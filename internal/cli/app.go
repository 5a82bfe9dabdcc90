package cli

import (
	"context"
	"fmt"

	"github.com/mfarzz/jobai/internal/ai"
	"github.com/mfarzz/jobai/internal/analysis"
	"github.com/mfarzz/jobai/internal/config"
	"github.com/mfarzz/jobai/internal/errors"
	"github.com/mfarzz/jobai/internal/events"
	"github.com/mfarzz/jobai/internal/observability"
	"github.com/mfarzz/jobai/internal/quest"
	"github.com/mfarzz/jobai/internal/store"
)

// app bundles the components every command needs
type app struct {
	store     store.Store
	analysis  *analysis.Service
	quests    *quest.Service
	publisher events.Publisher
	models    map[string]ai.ModelInspector
	closers   []func() error
	logger    *errors.Logger
}

// openStore connects to the configured database and applies migrations
func openStore(ctx context.Context, cfg *config.Config, logger *errors.Logger) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// newGateway builds the model gateway for an operation. A missing API key is
// not an error: it yields a nil gateway so analysis falls back to heuristic
// scoring and quest generation reports MISSING_API_KEY.
func newGateway(ctx context.Context, cfg *config.Config, operation string, logger *errors.Logger) (ai.Gateway, error) {
	gateway, err := ai.NewGateway(ctx, cfg, operation, logger)
	if err != nil {
		if ai.IsMissingAPIKey(err) {
			logger.Warn("No AI API key configured", "operation", operation)
			return nil, nil
		}
		return nil, err
	}
	return gateway, nil
}

// newPublisher returns a Redis publisher when enabled, otherwise a no-op
func newPublisher(ctx context.Context, cfg *config.Config, logger *errors.Logger) (events.Publisher, func() error, error) {
	if !cfg.Redis.Enabled {
		return events.NopPublisher{}, nil, nil
	}
	publisher, err := events.NewRedisPublisher(ctx, cfg.Redis.URL, cfg.Redis.Prefix, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect event publisher: %w", err)
	}
	return publisher, publisher.Close, nil
}

// newApp wires storage, model gateways, events and services. om may be nil.
func newApp(ctx context.Context, cfg *config.Config, om *observability.ObservabilityManager, logger *errors.Logger) (*app, error) {
	a := &app{models: make(map[string]ai.ModelInspector), logger: logger}

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.store = st
	a.closers = append(a.closers, st.Close)

	publisher, closePublisher, err := newPublisher(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.publisher = publisher
	if closePublisher != nil {
		a.closers = append(a.closers, closePublisher)
	}

	analysisGateway, err := newGateway(ctx, cfg, config.OperationAnalysis, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	questGateway, err := newGateway(ctx, cfg, config.OperationQuest, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.registerModel(config.OperationAnalysis, analysisGateway)
	a.registerModel(config.OperationQuest, questGateway)

	a.analysis = analysis.NewService(st, analysisGateway, logger,
		analysis.WithPublisher(publisher),
		analysis.WithObservability(om))
	a.quests = quest.NewService(st, questGateway, logger,
		quest.WithPublisher(publisher),
		quest.WithObservability(om))

	return a, nil
}

func (a *app) registerModel(operation string, gateway ai.Gateway) {
	if inspector, ok := gateway.(ai.ModelInspector); ok {
		a.models[operation] = inspector
	}
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Failed to release resource", "error", err.Error())
		}
	}
	a.closers = nil
}
