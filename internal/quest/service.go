// Package quest generates scenario quests for jobs with the model gateway,
// lists them with the caller's answers and grades submissions.
package quest

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/mfarzz/jobai/internal/ai"
	"github.com/mfarzz/jobai/internal/config"
	"github.com/mfarzz/jobai/internal/errors"
	"github.com/mfarzz/jobai/internal/events"
	"github.com/mfarzz/jobai/internal/observability"
	"github.com/mfarzz/jobai/internal/store"
	"github.com/mfarzz/jobai/internal/types"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Store is the persistence the quest service needs
type Store interface {
	GetJobSummary(ctx context.Context, jobID int64) (*types.JobSummary, error)
	InsertQuests(ctx context.Context, quests []store.QuestRecord) error
	ListQuestsByJob(ctx context.Context, jobID int64, limit int) ([]store.QuestRecord, error)
	GetQuest(ctx context.Context, questID string) (*store.QuestRecord, error)
	GetSubmissions(ctx context.Context, userID string, questIDs []string) ([]types.QuestSubmission, error)
	UpsertSubmission(ctx context.Context, submission types.QuestSubmission) (*types.QuestSubmission, error)
}

// Service manages quests and their submissions
type Service struct {
	store     Store
	gateway   ai.Gateway
	publisher events.Publisher
	obs       *observability.ObservabilityManager
	logger    *errors.Logger
	now       func() time.Time
	shuffle   func([]string)
}

// Option customizes a Service
type Option func(*Service)

// WithClock overrides the time source for createdAt and completedAt
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithShuffle overrides how themes are ordered before picking
func WithShuffle(shuffle func([]string)) Option {
	return func(s *Service) { s.shuffle = shuffle }
}

// WithPublisher sets the event publisher
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithObservability enables AI tracing and business metrics
func WithObservability(om *observability.ObservabilityManager) Option {
	return func(s *Service) { s.obs = om }
}

// NewService creates a quest service. Generation requires a gateway; listing
// and submitting work without one.
func NewService(store Store, gateway ai.Gateway, logger *errors.Logger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		gateway:   gateway,
		publisher: events.NopPublisher{},
		logger:    logger,
		now:       time.Now,
		shuffle: func(themes []string) {
			rand.Shuffle(len(themes), func(i, j int) { themes[i], themes[j] = themes[j], themes[i] })
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = errors.NewLogger(slog.LevelInfo)
	}
	return s
}

// List returns the newest count quests of a job and userID's answers to them
func (s *Service) List(ctx context.Context, jobID int64, userID string, count int) (*types.QuestList, error) {
	records, err := s.store.ListQuestsByJob(ctx, jobID, ClampCount(count))
	if err != nil {
		return nil, errors.FromStore(err, "", "")
	}

	list := &types.QuestList{
		Quests:     make([]types.Quest, 0, len(records)),
		UserQuests: []types.SubmissionResult{},
	}
	ids := make([]string, 0, len(records))
	correct := make(map[string]string, len(records))
	for _, rec := range records {
		list.Quests = append(list.Quests, fromRecord(rec))
		ids = append(ids, rec.ID)
		correct[rec.ID] = rec.CorrectOption
	}
	if len(list.Quests) > 0 {
		list.Quest = &list.Quests[0]
	}

	if userID != "" && len(ids) > 0 {
		submissions, err := s.store.GetSubmissions(ctx, userID, ids)
		if err != nil {
			return nil, errors.FromStore(err, "", "")
		}
		for _, sub := range submissions {
			list.UserQuests = append(list.UserQuests, types.SubmissionResult{
				QuestID:        sub.QuestID,
				Status:         sub.Status,
				XPEarned:       sub.XPEarned,
				IsCorrect:      sub.Status == types.StatusCompleted,
				Feedback:       sub.Feedback,
				SelectedOption: sub.SelectedOption,
				CorrectOption:  correct[sub.QuestID],
			})
		}
	}
	return list, nil
}

// Generate asks the model for count quests on distinct themes and stores
// them together. Either every quest is stored or none is.
func (s *Service) Generate(ctx context.Context, jobID int64, count int) ([]types.Quest, error) {
	count = ClampCount(count)

	job, err := s.store.GetJobSummary(ctx, jobID)
	if err != nil {
		return nil, errors.FromStore(err, errors.ErrCodeJobNotFound, fmt.Sprintf("job %d not found", jobID))
	}
	if s.gateway == nil {
		return nil, errors.NewConfigError(errors.ErrCodeMissingAPIKey, "quest generation requires an AI API key", nil)
	}

	themes := append([]string(nil), Themes...)
	s.shuffle(themes)
	themes = themes[:count]

	payloads := make([]*ai.QuestPayload, count)
	g, gctx := errgroup.WithContext(ctx)
	for i, theme := range themes {
		g.Go(func() error {
			payload, err := s.generateOne(gctx, *job, theme)
			if err != nil {
				return err
			}
			payloads[i] = payload
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.LogError(err, "Quest generation failed", "job_id", jobID, "count", count)
		return nil, generationFailed(err)
	}

	createdAt := s.now().UTC()
	quests := make([]types.Quest, count)
	records := make([]store.QuestRecord, count)
	for i, p := range payloads {
		quests[i] = types.Quest{
			JobID:         jobID,
			Title:         "Simulation: " + job.Title,
			Scenario:      p.Question,
			Options:       p.Options,
			Explanations:  p.Explanations,
			CorrectOption: p.Answer,
			XPReward:      maxXP(p.Options),
			GeneratedByAI: true,
			CreatedAt:     createdAt,
		}
		records[i] = toRecord(quests[i])
	}

	if err := s.store.InsertQuests(ctx, records); err != nil {
		return nil, errors.FromStore(err, "", "")
	}

	ids := make([]string, count)
	for i := range records {
		quests[i].ID = records[i].ID
		ids[i] = records[i].ID
	}

	s.obs.GetMetrics().RecordBusinessMetric(ctx, observability.MetricQuestsGenerated, true, s.obs,
		attribute.Int("count", count))
	s.publisher.Publish(ctx, events.QuestsGenerated, events.QuestsGeneratedPayload{JobID: jobID, QuestIDs: ids})

	return quests, nil
}

func (s *Service) generateOne(ctx context.Context, job types.JobSummary, theme string) (*ai.QuestPayload, error) {
	prompt := ai.BuildQuestPrompt(ai.QuestPromptInput{
		JobTitle:          job.Title,
		JobDescription:    cmp.Or(job.ShortDescription, job.Description),
		JobQualifications: job.Qualifications,
		Skills:            job.RequiredSkills,
		Theme:             theme,
	})

	var payload *ai.QuestPayload
	err := s.obs.GetMetrics().TrackAIOperationWithTokens(ctx, config.OperationQuest,
		func(ctx context.Context) *observability.AIOperationResult {
			completion, err := s.gateway.Complete(ctx, prompt)
			if err != nil {
				return &observability.AIOperationResult{Error: err}
			}
			result := &observability.AIOperationResult{}
			if completion.Usage != nil {
				result.TokenUsage = &observability.TokenUsage{
					InputTokens:  completion.Usage.InputTokens,
					OutputTokens: completion.Usage.OutputTokens,
					TotalTokens:  completion.Usage.TotalTokens,
				}
			}
			payload, result.Error = ai.ParseQuest(completion.Text)
			return result
		}, s.obs)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func maxXP(options []types.QuestOption) int {
	best := 0
	for i, opt := range options {
		if i == 0 || opt.XP > best {
			best = opt.XP
		}
	}
	return best
}

// generationFailed keeps the failure's category and marks it GENERATION_FAILED
func generationFailed(err error) error {
	message := "quest generation failed"
	if errors.IsType(err, errors.ErrorTypeMalformed) {
		appErr := errors.NewMalformedResponseError(message, err)
		appErr.Code = errors.ErrCodeGenerationFailed
		return appErr
	}
	return errors.NewUpstreamError(errors.ErrCodeGenerationFailed, message, err)
}

// Submit grades userID's answer to a quest and stores it, replacing any
// earlier answer.
func (s *Service) Submit(ctx context.Context, questID, userID, option string) (*types.SubmissionResult, error) {
	selected := strings.ToUpper(strings.TrimSpace(option))
	if !types.IsOptionLabel(selected) {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidOption,
			fmt.Sprintf("option must be one of A, B, C; got %q", option), nil)
	}

	rec, err := s.store.GetQuest(ctx, questID)
	if err != nil {
		return nil, errors.FromStore(err, errors.ErrCodeQuestNotFound, fmt.Sprintf("quest %s not found", questID))
	}

	isCorrect := strings.EqualFold(selected, rec.CorrectOption)

	xp, ok := parseXP(rec.OptionText(selected))
	if !ok {
		xp = rec.XPReward
	}

	status, score := types.StatusAttempted, 50
	if isCorrect {
		status, score = types.StatusCompleted, 100
	}

	feedback := rec.Explanations[selected]
	if feedback == "" {
		feedback = incorrectFeedback
		if isCorrect {
			feedback = correctFeedback
		}
	}

	stored, err := s.store.UpsertSubmission(ctx, types.QuestSubmission{
		UserID:         userID,
		QuestID:        questID,
		Status:         status,
		Score:          score,
		XPEarned:       xp,
		SelectedOption: selected,
		Feedback:       feedback,
		CompletedAt:    s.now().UTC(),
	})
	if err != nil {
		return nil, errors.FromStore(err, "", "")
	}

	s.obs.GetMetrics().RecordBusinessMetric(ctx, observability.MetricQuestSubmitted, true, s.obs,
		attribute.Bool("correct", isCorrect))
	s.publisher.Publish(ctx, events.QuestSubmitted, events.QuestSubmittedPayload{
		UserID:    userID,
		QuestID:   questID,
		IsCorrect: isCorrect,
		XPEarned:  xp,
	})

	return &types.SubmissionResult{
		QuestID:        questID,
		Status:         stored.Status,
		XPEarned:       stored.XPEarned,
		IsCorrect:      isCorrect,
		Feedback:       stored.Feedback,
		SelectedOption: stored.SelectedOption,
		CorrectOption:  rec.CorrectOption,
	}, nil
}
