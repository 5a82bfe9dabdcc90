package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/mfarzz/jobai/internal/errors"
	"github.com/mfarzz/jobai/internal/types"

	"github.com/google/uuid"
)

type sqlStore struct {
	db     backend
	logger *errors.Logger
}

func newSQLStore(db backend, logger *errors.Logger) *sqlStore {
	return &sqlStore{db: db, logger: logger}
}

func internal(message string, err error) error {
	return errors.NewInternalError(errors.ErrCodeStorageFailed, message, err)
}

// notFoundOr maps a backend "no rows" error to ErrRecordNotFound
func (s *sqlStore) notFoundOr(message string, err error) error {
	if s.db.isNoRows(err) {
		return errors.ErrRecordNotFound
	}
	return internal(message, err)
}

func (s *sqlStore) timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return s.db.timeArg(*t)
}

func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.ping(ctx)
}

func (s *sqlStore) Close() error {
	return s.db.close()
}

func (s *sqlStore) GetJobSummary(ctx context.Context, jobID int64) (*types.JobSummary, error) {
	job := &types.JobSummary{}
	err := s.db.queryRow(ctx,
		`SELECT id, title, short_description, description, qualifications FROM jobs WHERE id = $1`, jobID).
		Scan(&job.ID, &job.Title, &job.ShortDescription, &job.Description, &job.Qualifications)
	if err != nil {
		return nil, s.notFoundOr("get job", err)
	}

	r, err := s.db.query(ctx, `SELECT name FROM job_skills WHERE job_id = $1 ORDER BY position`, jobID)
	if err != nil {
		return nil, internal("list job skills", err)
	}
	defer r.Close()

	job.RequiredSkills = []string{}
	for r.Next() {
		var name string
		if err := r.Scan(&name); err != nil {
			return nil, internal("scan job skill", err)
		}
		job.RequiredSkills = append(job.RequiredSkills, name)
	}
	if err := r.Err(); err != nil {
		return nil, internal("list job skills", err)
	}
	return job, nil
}

func (s *sqlStore) UpsertJob(ctx context.Context, job types.JobSummary) error {
	err := s.db.inTx(ctx, func(q querier) error {
		err := q.exec(ctx, `INSERT INTO jobs (id, title, short_description, description, qualifications)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    title = excluded.title,
    short_description = excluded.short_description,
    description = excluded.description,
    qualifications = excluded.qualifications`,
			job.ID, job.Title, job.ShortDescription, job.Description, job.Qualifications)
		if err != nil {
			return err
		}
		if err := q.exec(ctx, `DELETE FROM job_skills WHERE job_id = $1`, job.ID); err != nil {
			return err
		}
		for i, skill := range job.RequiredSkills {
			if err := q.exec(ctx, `INSERT INTO job_skills (job_id, position, name) VALUES ($1, $2, $3)`, job.ID, i, skill); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return internal(fmt.Sprintf("upsert job %d", job.ID), err)
	}
	return nil
}

// GetProfileBundle never reports a missing user: a user without entries has
// an empty bundle.
func (s *sqlStore) GetProfileBundle(ctx context.Context, userID string) (*types.ProfileBundle, error) {
	bundle := &types.ProfileBundle{}

	err := s.collect(ctx, `SELECT name, level FROM user_skills WHERE user_id = $1 ORDER BY position`, userID,
		func(r row) error {
			var skill types.Skill
			if err := r.Scan(&skill.Name, &skill.Level); err != nil {
				return err
			}
			bundle.Skills = append(bundle.Skills, skill)
			return nil
		})
	if err != nil {
		return nil, internal("load skills", err)
	}

	err = s.collect(ctx, `SELECT title, company, location, start_date, end_date, is_current, description
FROM user_experiences WHERE user_id = $1 ORDER BY position`, userID,
		func(r row) error {
			var exp types.Experience
			var start, end dbTime
			if err := r.Scan(&exp.Title, &exp.Company, &exp.Location, &start, &end, &exp.IsCurrent, &exp.Description); err != nil {
				return err
			}
			exp.StartDate, exp.EndDate = start.Time, end.Ptr()
			bundle.Experiences = append(bundle.Experiences, exp)
			return nil
		})
	if err != nil {
		return nil, internal("load experiences", err)
	}

	err = s.collect(ctx, `SELECT school, degree, field, start_date, end_date, is_current, description
FROM user_educations WHERE user_id = $1 ORDER BY position`, userID,
		func(r row) error {
			var edu types.Education
			var start, end dbTime
			if err := r.Scan(&edu.School, &edu.Degree, &edu.Field, &start, &end, &edu.IsCurrent, &edu.Description); err != nil {
				return err
			}
			edu.StartDate, edu.EndDate = start.Ptr(), end.Ptr()
			bundle.Educations = append(bundle.Educations, edu)
			return nil
		})
	if err != nil {
		return nil, internal("load educations", err)
	}

	err = s.collect(ctx, `SELECT name, issuer, issue_date, expiry_date FROM user_certifications WHERE user_id = $1 ORDER BY position`, userID,
		func(r row) error {
			var cert types.Certification
			var issued, expires dbTime
			if err := r.Scan(&cert.Name, &cert.Issuer, &issued, &expires); err != nil {
				return err
			}
			cert.IssueDate, cert.ExpiryDate = issued.Time, expires.Ptr()
			bundle.Certifications = append(bundle.Certifications, cert)
			return nil
		})
	if err != nil {
		return nil, internal("load certifications", err)
	}

	err = s.collect(ctx, `SELECT name, description FROM user_projects WHERE user_id = $1 ORDER BY position`, userID,
		func(r row) error {
			var project types.Project
			if err := r.Scan(&project.Name, &project.Description); err != nil {
				return err
			}
			bundle.Projects = append(bundle.Projects, project)
			return nil
		})
	if err != nil {
		return nil, internal("load projects", err)
	}

	bundle.Normalize()
	return bundle, nil
}

func (s *sqlStore) collect(ctx context.Context, query string, arg any, scan func(r row) error) error {
	r, err := s.db.query(ctx, query, arg)
	if err != nil {
		return err
	}
	defer r.Close()
	for r.Next() {
		if err := scan(r); err != nil {
			return err
		}
	}
	return r.Err()
}

func (s *sqlStore) ReplaceProfile(ctx context.Context, userID string, profile types.ProfileBundle) error {
	err := s.db.inTx(ctx, func(q querier) error {
		for _, table := range []string{"user_skills", "user_experiences", "user_educations", "user_certifications", "user_projects"} {
			if err := q.exec(ctx, `DELETE FROM `+table+` WHERE user_id = $1`, userID); err != nil {
				return err
			}
		}
		for i, skill := range profile.Skills {
			if err := q.exec(ctx, `INSERT INTO user_skills (user_id, position, name, level) VALUES ($1, $2, $3, $4)`,
				userID, i, skill.Name, skill.Level); err != nil {
				return err
			}
		}
		for i, exp := range profile.Experiences {
			if err := q.exec(ctx, `INSERT INTO user_experiences
(user_id, position, title, company, location, start_date, end_date, is_current, description)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				userID, i, exp.Title, exp.Company, exp.Location, s.timeArg(&exp.StartDate), s.timeArg(exp.EndDate), exp.IsCurrent, exp.Description); err != nil {
				return err
			}
		}
		for i, edu := range profile.Educations {
			if err := q.exec(ctx, `INSERT INTO user_educations
(user_id, position, school, degree, field, start_date, end_date, is_current, description)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				userID, i, edu.School, edu.Degree, edu.Field, s.timeArg(edu.StartDate), s.timeArg(edu.EndDate), edu.IsCurrent, edu.Description); err != nil {
				return err
			}
		}
		for i, cert := range profile.Certifications {
			if err := q.exec(ctx, `INSERT INTO user_certifications (user_id, position, name, issuer, issue_date, expiry_date)
VALUES ($1, $2, $3, $4, $5, $6)`,
				userID, i, cert.Name, cert.Issuer, s.timeArg(&cert.IssueDate), s.timeArg(cert.ExpiryDate)); err != nil {
				return err
			}
		}
		for i, project := range profile.Projects {
			if err := q.exec(ctx, `INSERT INTO user_projects (user_id, position, name, description) VALUES ($1, $2, $3, $4)`,
				userID, i, project.Name, project.Description); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return internal("replace profile", err)
	}
	return nil
}

const analysisColumns = `id, user_id, job_id, match_score, skill_gap, recommendation, source, analyzed_at`

// UpsertAnalysis writes the analysis for (user, job). An existing row keeps
// its id.
func (s *sqlStore) UpsertAnalysis(ctx context.Context, analysis types.MatchAnalysis) (*types.MatchAnalysis, error) {
	if analysis.ID == "" {
		analysis.ID = uuid.NewString()
	}
	gap, err := json.Marshal(analysis.SkillGap)
	if err != nil {
		return nil, internal("encode skill gap", err)
	}

	r := s.db.queryRow(ctx, `INSERT INTO match_analyses (`+analysisColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (user_id, job_id) DO UPDATE SET
    match_score = excluded.match_score,
    skill_gap = excluded.skill_gap,
    recommendation = excluded.recommendation,
    source = excluded.source,
    analyzed_at = excluded.analyzed_at
RETURNING `+analysisColumns,
		analysis.ID, analysis.UserID, analysis.JobID, analysis.MatchScore, string(gap),
		analysis.Recommendation, string(analysis.Source), s.db.timeArg(analysis.AnalyzedAt))

	stored, err := scanAnalysis(r)
	if err != nil {
		return nil, internal("upsert analysis", err)
	}
	return stored, nil
}

func (s *sqlStore) GetAnalysis(ctx context.Context, userID string, jobID int64) (*types.MatchAnalysis, error) {
	r := s.db.queryRow(ctx, `SELECT `+analysisColumns+` FROM match_analyses WHERE user_id = $1 AND job_id = $2`, userID, jobID)
	analysis, err := scanAnalysis(r)
	if err != nil {
		return nil, s.notFoundOr("get analysis", err)
	}
	return analysis, nil
}

func scanAnalysis(r row) (*types.MatchAnalysis, error) {
	var (
		a      types.MatchAnalysis
		gap    string
		source string
		at     dbTime
	)
	if err := r.Scan(&a.ID, &a.UserID, &a.JobID, &a.MatchScore, &gap, &a.Recommendation, &source, &at); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(gap), &a.SkillGap); err != nil {
		return nil, fmt.Errorf("decode skill gap: %w", err)
	}
	if a.SkillGap.Missing == nil {
		a.SkillGap.Missing = []types.MissingSkill{}
	}
	if a.SkillGap.Existing == nil {
		a.SkillGap.Existing = []types.ExistingSkill{}
	}
	a.Source = types.AnalysisSource(source)
	a.AnalyzedAt = at.Time
	return &a, nil
}

// StaleAnalyses lists analyses computed before the cutoff, oldest first
func (s *sqlStore) StaleAnalyses(ctx context.Context, before time.Time, limit int) ([]types.StalePair, error) {
	r, err := s.db.query(ctx, `SELECT user_id, job_id, analyzed_at FROM match_analyses
WHERE analyzed_at < $1 ORDER BY analyzed_at, id LIMIT $2`, s.db.timeArg(before), limit)
	if err != nil {
		return nil, internal("list stale analyses", err)
	}
	defer r.Close()

	var pairs []types.StalePair
	for r.Next() {
		var p types.StalePair
		var at dbTime
		if err := r.Scan(&p.UserID, &p.JobID, &at); err != nil {
			return nil, internal("scan stale analysis", err)
		}
		p.AnalyzedAt = at.Time
		pairs = append(pairs, p)
	}
	if err := r.Err(); err != nil {
		return nil, internal("list stale analyses", err)
	}
	return pairs, nil
}

const questColumns = `id, job_id, title, scenario, option_a, option_b, option_c, correct_option, explanations, xp_reward, generated_by_ai, created_at`

// InsertQuests stores all quests in one transaction. Empty ids are assigned.
func (s *sqlStore) InsertQuests(ctx context.Context, quests []QuestRecord) error {
	err := s.db.inTx(ctx, func(q querier) error {
		for i := range quests {
			quest := &quests[i]
			if quest.ID == "" {
				quest.ID = uuid.NewString()
			}
			explanations := quest.Explanations
			if explanations == nil {
				explanations = map[string]string{}
			}
			encoded, err := json.Marshal(explanations)
			if err != nil {
				return err
			}
			err = q.exec(ctx, `INSERT INTO quests (`+questColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
				quest.ID, quest.JobID, quest.Title, quest.Scenario, quest.OptionA, quest.OptionB, quest.OptionC,
				quest.CorrectOption, string(encoded), quest.XPReward, quest.GeneratedByAI, s.db.timeArg(quest.CreatedAt))
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return internal("insert quests", err)
	}
	return nil
}

// ListQuestsByJob returns the newest quests of a job first
func (s *sqlStore) ListQuestsByJob(ctx context.Context, jobID int64, limit int) ([]QuestRecord, error) {
	r, err := s.db.query(ctx, `SELECT `+questColumns+` FROM quests
WHERE job_id = $1 ORDER BY created_at DESC, id LIMIT $2`, jobID, limit)
	if err != nil {
		return nil, internal("list quests", err)
	}
	defer r.Close()

	quests := []QuestRecord{}
	for r.Next() {
		quest, err := scanQuest(r)
		if err != nil {
			return nil, internal("scan quest", err)
		}
		quests = append(quests, *quest)
	}
	if err := r.Err(); err != nil {
		return nil, internal("list quests", err)
	}
	return quests, nil
}

func (s *sqlStore) GetQuest(ctx context.Context, questID string) (*QuestRecord, error) {
	quest, err := scanQuest(s.db.queryRow(ctx, `SELECT `+questColumns+` FROM quests WHERE id = $1`, questID))
	if err != nil {
		return nil, s.notFoundOr("get quest", err)
	}
	return quest, nil
}

func scanQuest(r row) (*QuestRecord, error) {
	var (
		q            QuestRecord
		explanations string
		created      dbTime
	)
	err := r.Scan(&q.ID, &q.JobID, &q.Title, &q.Scenario, &q.OptionA, &q.OptionB, &q.OptionC,
		&q.CorrectOption, &explanations, &q.XPReward, &q.GeneratedByAI, &created)
	if err != nil {
		return nil, err
	}
	q.Explanations = map[string]string{}
	if explanations != "" {
		if err := json.Unmarshal([]byte(explanations), &q.Explanations); err != nil {
			return nil, fmt.Errorf("decode explanations: %w", err)
		}
	}
	q.CreatedAt = created.Time
	return &q, nil
}

const submissionColumns = `id, user_id, quest_id, status, score, xp_earned, selected_option, feedback, completed_at`

// GetSubmissions returns the user's submissions for the given quests
func (s *sqlStore) GetSubmissions(ctx context.Context, userID string, questIDs []string) ([]types.QuestSubmission, error) {
	submissions := []types.QuestSubmission{}
	if len(questIDs) == 0 {
		return submissions, nil
	}

	args := []any{userID}
	placeholders := make([]string, len(questIDs))
	for i, id := range questIDs {
		args = append(args, id)
		placeholders[i] = fmt.Sprintf("$%d", i+2)
	}

	r, err := s.db.query(ctx, `SELECT `+submissionColumns+` FROM user_quests
WHERE user_id = $1 AND quest_id IN (`+strings.Join(placeholders, ", ")+`)`, args...)
	if err != nil {
		return nil, internal("list submissions", err)
	}
	defer r.Close()

	for r.Next() {
		sub, err := scanSubmission(r)
		if err != nil {
			return nil, internal("scan submission", err)
		}
		submissions = append(submissions, *sub)
	}
	if err := r.Err(); err != nil {
		return nil, internal("list submissions", err)
	}
	return submissions, nil
}

// UpsertSubmission keeps one row per (user, quest); later answers overwrite
func (s *sqlStore) UpsertSubmission(ctx context.Context, sub types.QuestSubmission) (*types.QuestSubmission, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	r := s.db.queryRow(ctx, `INSERT INTO user_quests (`+submissionColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (user_id, quest_id) DO UPDATE SET
    status = excluded.status,
    score = excluded.score,
    xp_earned = excluded.xp_earned,
    selected_option = excluded.selected_option,
    feedback = excluded.feedback,
    completed_at = excluded.completed_at
RETURNING `+submissionColumns,
		sub.ID, sub.UserID, sub.QuestID, sub.Status, sub.Score, sub.XPEarned, sub.SelectedOption, sub.Feedback,
		s.db.timeArg(sub.CompletedAt))

	stored, err := scanSubmission(r)
	if err != nil {
		return nil, internal("upsert submission", err)
	}
	return stored, nil
}

func scanSubmission(r row) (*types.QuestSubmission, error) {
	var sub types.QuestSubmission
	var completed dbTime
	if err := r.Scan(&sub.ID, &sub.UserID, &sub.QuestID, &sub.Status, &sub.Score, &sub.XPEarned,
		&sub.SelectedOption, &sub.Feedback, &completed); err != nil {
		return nil, err
	}
	sub.CompletedAt = completed.Time
	return &sub, nil
}

func (s *sqlStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{AnalysesBySource: map[string]int64{}}

	counts := []struct {
		query string
		dest  *int64
	}{
		{`SELECT COUNT(*) FROM jobs`, &stats.Jobs},
		{`SELECT COUNT(*) FROM match_analyses`, &stats.Analyses},
		{`SELECT COUNT(*) FROM quests`, &stats.Quests},
		{`SELECT COUNT(*) FROM user_quests`, &stats.Submissions},
		{`SELECT COUNT(*) FROM user_quests WHERE status = 'completed'`, &stats.CorrectSubmission},
	}
	for _, c := range counts {
		if err := s.db.queryRow(ctx, c.query).Scan(c.dest); err != nil {
			return nil, internal("collect stats", err)
		}
	}

	r, err := s.db.query(ctx, `SELECT source, COUNT(*) FROM match_analyses GROUP BY source`)
	if err != nil {
		return nil, internal("collect stats", err)
	}
	defer r.Close()
	for r.Next() {
		var source string
		var n int64
		if err := r.Scan(&source, &n); err != nil {
			return nil, internal("collect stats", err)
		}
		stats.AnalysesBySource[source] = n
	}
	if err := r.Err(); err != nil {
		return nil, internal("collect stats", err)
	}
	return stats, nil
}

// IsNotFound reports whether err is a store miss
func IsNotFound(err error) bool {
	return stderrors.Is(err, errors.ErrRecordNotFound)
}
