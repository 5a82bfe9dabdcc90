package analysis

import (
	"strings"
	"testing"
	"time"

	"github.com/mfarzz/jobai/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func fullProfile() types.ProfileBundle {
	start := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	return types.ProfileBundle{
		Skills: []types.Skill{
			{Name: "Golang", Level: ptr(85)},
			{Name: "Docker", Level: ptr(55)},
			{Name: "Excel", Level: ptr(90)},
		},
		Experiences:    []types.Experience{{Title: "Engineer", Company: "Acme", StartDate: start}},
		Educations:     []types.Education{{School: "State University"}},
		Certifications: []types.Certification{{Name: "CKA", Issuer: "CNCF", IssueDate: start}},
		Projects:       []types.Project{{Name: "jobai"}},
	}
}

func TestFallbackScore(t *testing.T) {
	tests := []struct {
		name      string
		profile   types.ProfileBundle
		skills    []string
		wantScore int
	}{
		{
			name:      "full profile half skills",
			profile:   fullProfile(),
			skills:    []string{"Go", "Kubernetes"},
			wantScore: 80,
		},
		{
			name:      "empty profile",
			profile:   types.ProfileBundle{},
			skills:    []string{"Go"},
			wantScore: 15,
		},
		{
			name:      "empty profile no job skills",
			profile:   types.ProfileBundle{},
			skills:    nil,
			wantScore: 15,
		},
		{
			name:      "all skills matched",
			profile:   fullProfile(),
			skills:    []string{"go", "docker"},
			wantScore: 100,
		},
		{
			name:      "one of three rounds",
			profile:   types.ProfileBundle{Skills: []types.Skill{{Name: "SQL"}}},
			skills:    []string{"sql", "python", "spark"},
			wantScore: 28,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FallbackScore(tt.profile, types.JobSummary{Title: "Engineer", RequiredSkills: tt.skills})
			assert.Equal(t, tt.wantScore, result.MatchScore)
			assert.Equal(t, types.SourceFallback, result.Source)
		})
	}
}

func TestFallbackSkillGap(t *testing.T) {
	result := FallbackScore(fullProfile(), types.JobSummary{RequiredSkills: []string{"Go", "Kubernetes", "DOCKER"}})

	assert.Equal(t, []types.MissingSkill{{Skill: "kubernetes", Importance: types.ImportanceMedium}}, result.SkillGap.Missing)
	assert.Equal(t, []types.ExistingSkill{
		{Skill: "go", Level: types.LevelExpert},
		{Skill: "docker", Level: types.LevelIntermediate},
	}, result.SkillGap.Existing)
}

func TestFallbackSkillGapNeverNil(t *testing.T) {
	result := FallbackScore(types.ProfileBundle{}, types.JobSummary{})
	assert.NotNil(t, result.SkillGap.Missing)
	assert.NotNil(t, result.SkillGap.Existing)
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, types.LevelBeginner, levelFor(nil))
	assert.Equal(t, types.LevelBeginner, levelFor(ptr(0)))
	assert.Equal(t, types.LevelBeginner, levelFor(ptr(49)))
	assert.Equal(t, types.LevelIntermediate, levelFor(ptr(50)))
	assert.Equal(t, types.LevelIntermediate, levelFor(ptr(69)))
	assert.Equal(t, types.LevelExpert, levelFor(ptr(70)))
}

func TestFallbackRecommendation(t *testing.T) {
	result := FallbackScore(fullProfile(), types.JobSummary{
		RequiredSkills: []string{"Go", "Kubernetes", "Terraform", "Rust", "Kafka", "gRPC", "Redis"},
	})
	html := result.Recommendation

	for _, heading := range []string{"Match Summary", "Candidate Strengths", "Areas to Improve", "Concrete Steps", "Preparation Timeline"} {
		assert.Contains(t, html, "<h3>"+heading+"</h3>")
	}
	assert.Equal(t, 5, strings.Count(html, "<h3>"))
	assert.Contains(t, html, "<strong>66% match</strong>")
	assert.Contains(t, html, "Has relevant work experience")
	assert.Contains(t, html, "Holds relevant certifications")
	assert.Contains(t, html, "<strong>Skills:</strong> go")
	assert.Contains(t, html, "Focus on: kubernetes, terraform, rust.")
	assert.Contains(t, html, "<strong>kafka</strong>")
	assert.NotContains(t, html, "<strong>redis</strong>")
	assert.Contains(t, html, "<strong>3-6 months:</strong>")
}

func TestFallbackRecommendationEscapesSkills(t *testing.T) {
	result := FallbackScore(types.ProfileBundle{}, types.JobSummary{RequiredSkills: []string{"<script>"}})
	require.NotContains(t, result.Recommendation, "<script>")
	assert.Contains(t, result.Recommendation, "&lt;script&gt;")
}

func TestFallbackRecommendationEmptyProfile(t *testing.T) {
	html := FallbackScore(types.ProfileBundle{}, types.JobSummary{}).Recommendation
	assert.NotContains(t, html, "Skills:")
	assert.NotContains(t, html, "Has relevant work experience")
}
