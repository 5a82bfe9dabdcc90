package types

import (
	"slices"
	"time"
)

// Skill is a named user skill with an optional 0-100 proficiency level
type Skill struct {
	Name  string `json:"name" yaml:"name"`
	Level *int   `json:"level,omitempty" yaml:"level,omitempty"`
}

// Experience represents a work history entry
type Experience struct {
	Title       string     `json:"title" yaml:"title"`
	Company     string     `json:"company" yaml:"company"`
	Location    *string    `json:"location,omitempty" yaml:"location,omitempty"`
	StartDate   time.Time  `json:"startDate" yaml:"start_date"`
	EndDate     *time.Time `json:"endDate,omitempty" yaml:"end_date,omitempty"`
	IsCurrent   bool       `json:"isCurrent" yaml:"current"`
	Description *string    `json:"description,omitempty" yaml:"description,omitempty"`
}

// Education represents a school or degree entry
type Education struct {
	School      string     `json:"school" yaml:"school"`
	Degree      *string    `json:"degree,omitempty" yaml:"degree,omitempty"`
	Field       *string    `json:"field,omitempty" yaml:"field,omitempty"`
	StartDate   *time.Time `json:"startDate,omitempty" yaml:"start_date,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty" yaml:"end_date,omitempty"`
	IsCurrent   bool       `json:"isCurrent" yaml:"current"`
	Description *string    `json:"description,omitempty" yaml:"description,omitempty"`
}

// Certification represents a professional certificate
type Certification struct {
	Name       string     `json:"name" yaml:"name"`
	Issuer     string     `json:"issuer" yaml:"issuer"`
	IssueDate  time.Time  `json:"issueDate" yaml:"issue_date"`
	ExpiryDate *time.Time `json:"expiryDate,omitempty" yaml:"expiry_date,omitempty"`
}

// Project represents a portfolio project
type Project struct {
	Name        string  `json:"name" yaml:"name"`
	Description *string `json:"description,omitempty" yaml:"description,omitempty"`
}

// ProfileBundle is the aggregated career profile of one user. Every
// category is an empty slice when the user has no entries.
type ProfileBundle struct {
	Skills         []Skill         `json:"skills" yaml:"skills"`
	Experiences    []Experience    `json:"experiences" yaml:"experiences"`
	Educations     []Education     `json:"educations" yaml:"educations"`
	Certifications []Certification `json:"certifications" yaml:"certifications"`
	Projects       []Project       `json:"projects" yaml:"projects"`
}

// Normalize replaces nil categories with empty slices
func (p *ProfileBundle) Normalize() {
	if p.Skills == nil {
		p.Skills = []Skill{}
	}
	if p.Experiences == nil {
		p.Experiences = []Experience{}
	}
	if p.Educations == nil {
		p.Educations = []Education{}
	}
	if p.Certifications == nil {
		p.Certifications = []Certification{}
	}
	if p.Projects == nil {
		p.Projects = []Project{}
	}
}

// JobSummary is the read-only view of a job posting used by analysis and quests
type JobSummary struct {
	ID               int64    `json:"id" yaml:"id"`
	Title            string   `json:"title" yaml:"title"`
	ShortDescription string   `json:"shortDescription,omitempty" yaml:"short_description,omitempty"`
	Description      string   `json:"description" yaml:"description"`
	Qualifications   string   `json:"qualifications" yaml:"qualifications"`
	RequiredSkills   []string `json:"requiredSkills" yaml:"skills"`
}

// Importance values for missing skills
const (
	ImportanceHigh   = "high"
	ImportanceMedium = "medium"
	ImportanceLow    = "low"
)

// Level values for existing skills
const (
	LevelExpert       = "expert"
	LevelIntermediate = "intermediate"
	LevelBeginner     = "beginner"
)

// MissingSkill is a job requirement the user does not hold
type MissingSkill struct {
	Skill      string `json:"skill"`
	Importance string `json:"importance"`
}

// ExistingSkill is a job requirement the user already holds
type ExistingSkill struct {
	Skill string `json:"skill"`
	Level string `json:"level"`
}

// SkillGap splits the job's required skills into held and missing
type SkillGap struct {
	Missing  []MissingSkill  `json:"missing"`
	Existing []ExistingSkill `json:"existing"`
}

// AnalysisSource identifies which producer built a MatchAnalysis
type AnalysisSource string

const (
	SourceAI       AnalysisSource = "ai"
	SourceFallback AnalysisSource = "fallback"
)

// MatchAnalysis is the persisted match result for one (user, job) pair
type MatchAnalysis struct {
	ID             string         `json:"id"`
	UserID         string         `json:"-"`
	JobID          int64          `json:"-"`
	MatchScore     int            `json:"matchScore"`
	SkillGap       SkillGap       `json:"skillGap"`
	Recommendation string         `json:"recommendation"`
	AnalyzedAt     time.Time      `json:"analyzedAt"`
	Source         AnalysisSource `json:"-"`
}

// StalePair identifies an analysis due for recomputation
type StalePair struct {
	UserID     string
	JobID      int64
	AnalyzedAt time.Time
}

// Option labels
const (
	OptionA = "A"
	OptionB = "B"
	OptionC = "C"
)

// OptionLabels lists the labels of a quest in display order
var OptionLabels = [3]string{OptionA, OptionB, OptionC}

// IsOptionLabel reports whether label is exactly one of OptionLabels
func IsOptionLabel(label string) bool {
	return slices.Contains(OptionLabels[:], label)
}

// QuestOption is one answer choice of a quest
type QuestOption struct {
	Label string `json:"label"`
	Text  string `json:"text"`
	XP    int    `json:"xp"`
}

// Quest is a scenario-based multiple choice question tied to a job
type Quest struct {
	ID            string            `json:"id"`
	JobID         int64             `json:"jobId"`
	Title         string            `json:"title"`
	Scenario      string            `json:"question"`
	Options       []QuestOption     `json:"options"`
	Explanations  map[string]string `json:"explanations"`
	CorrectOption string            `json:"correctOption"`
	XPReward      int               `json:"xpReward"`
	GeneratedByAI bool              `json:"generatedByAi"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// Submission statuses
const (
	StatusCompleted = "completed"
	StatusAttempted = "attempted"
)

// QuestSubmission is the latest answer of a user to a quest
type QuestSubmission struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	QuestID        string    `json:"questId"`
	Status         string    `json:"status"`
	Score          int       `json:"score"`
	XPEarned       int       `json:"xpEarned"`
	SelectedOption string    `json:"selectedOption"`
	Feedback       string    `json:"aiFeedback"`
	CompletedAt    time.Time `json:"completedAt"`
}

// SubmissionResult is the caller-facing outcome of a quest submission
type SubmissionResult struct {
	QuestID        string `json:"questId"`
	Status         string `json:"status"`
	XPEarned       int    `json:"xpEarned"`
	IsCorrect      bool   `json:"isCorrect"`
	Feedback       string `json:"aiFeedback"`
	SelectedOption string `json:"selectedOption"`
	CorrectOption  string `json:"correctOption"`
}

// QuestList is the read view of a job's latest quests and the caller's answers
type QuestList struct {
	Quest      *Quest             `json:"quest"`
	Quests     []Quest            `json:"quests"`
	UserQuests []SubmissionResult `json:"userQuests"`
}
