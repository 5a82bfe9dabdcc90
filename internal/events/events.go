// Package events publishes domain events to Redis pub/sub so other services
// (notifications, leaderboards) can react to analyses and quests.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mfarzz/jobai/internal/errors"

	"github.com/redis/go-redis/v9"
)

// Event channel suffixes; the configured prefix is prepended
const (
	AnalysisCompleted = "analysis.completed"
	QuestsGenerated   = "quests.generated"
	QuestSubmitted    = "quest.submitted"
)

// Publisher delivers domain events. Publishing is fire and forget: callers
// never fail a request because an event could not be delivered.
type Publisher interface {
	Publish(ctx context.Context, event string, payload any)
}

// AnalysisCompletedPayload is published after a match analysis is stored
type AnalysisCompletedPayload struct {
	UserID     string    `json:"userId"`
	JobID      int64     `json:"jobId"`
	MatchScore int       `json:"matchScore"`
	Source     string    `json:"source"`
	AnalyzedAt time.Time `json:"analyzedAt"`
}

// QuestsGeneratedPayload is published after a quest batch is stored
type QuestsGeneratedPayload struct {
	JobID    int64    `json:"jobId"`
	QuestIDs []string `json:"questIds"`
}

// QuestSubmittedPayload is published after a quest answer is stored
type QuestSubmittedPayload struct {
	UserID    string `json:"userId"`
	QuestID   string `json:"questId"`
	IsCorrect bool   `json:"isCorrect"`
	XPEarned  int    `json:"xpEarned"`
}

// envelope wraps every payload with its type and emission time
type envelope struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisPublisher publishes events on Redis pub/sub channels
type RedisPublisher struct {
	client redisPublisher
	closer func() error
	prefix string
	now    func() time.Time
	logger *errors.Logger
}

// NewRedisPublisher connects to Redis and verifies the connection
func NewRedisPublisher(ctx context.Context, redisURL, prefix string, logger *errors.Logger) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	if logger != nil {
		logger.Info("Connected to Redis for event publishing", "addr", opts.Addr, "prefix", prefix)
	}

	return &RedisPublisher{
		client: rdb,
		closer: rdb.Close,
		prefix: prefix,
		now:    time.Now,
		logger: logger,
	}, nil
}

// Channel returns the full channel name for an event
func (p *RedisPublisher) Channel(event string) string {
	if p.prefix == "" {
		return event
	}
	return p.prefix + "." + event
}

// Publish sends the payload as JSON. Failures are logged at warn level.
func (p *RedisPublisher) Publish(ctx context.Context, event string, payload any) {
	channel := p.Channel(event)
	body, err := json.Marshal(envelope{Type: event, OccurredAt: p.now().UTC(), Data: payload})
	if err != nil {
		p.warn("encode event failed", channel, err)
		return
	}
	if err := p.client.Publish(ctx, channel, body).Err(); err != nil {
		p.warn("publish event failed", channel, err)
	}
}

func (p *RedisPublisher) warn(msg, channel string, err error) {
	if p.logger != nil {
		p.logger.Warn(msg, "channel", channel, "error", err.Error())
	}
}

// Close releases the Redis connection
func (p *RedisPublisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}

// NopPublisher discards every event; used when Redis is disabled
type NopPublisher struct{}

// Publish does nothing
func (NopPublisher) Publish(context.Context, string, any) {}
