package formatters

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mfarzz/jobai/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAnalysis() types.MatchAnalysis {
	return types.MatchAnalysis{
		ID:         "a1",
		MatchScore: 64,
		SkillGap: types.SkillGap{
			Missing:  []types.MissingSkill{{Skill: "kubernetes", Importance: "medium"}},
			Existing: []types.ExistingSkill{{Skill: "go", Level: "expert"}},
		},
		Recommendation: "<h3>Match Summary</h3><p>Solid <strong>backend</strong> fit.</p>",
		AnalyzedAt:     time.Date(2026, time.May, 4, 10, 30, 0, 0, time.UTC),
	}
}

func sampleQuest() types.Quest {
	return types.Quest{
		ID:       "q1",
		Title:    "Simulation: Support Lead",
		Scenario: "A customer is upset. What do you do?",
		Options: []types.QuestOption{
			{Label: "A", Text: "Escalate", XP: 30},
			{Label: "B", Text: "Listen first", XP: 90},
			{Label: "C", Text: "Refund", XP: 50},
		},
		CorrectOption: "B",
		XPReward:      90,
	}
}

func TestAnalysisFormatter(t *testing.T) {
	text, err := GlobalRegistry.Format(sampleAnalysis(), "text")
	require.NoError(t, err)
	assert.Contains(t, text, "=== MATCH ANALYSIS ===")
	assert.Contains(t, text, "Match score: 64/100")
	assert.Contains(t, text, "  - kubernetes (medium)")
	assert.Contains(t, text, "  - go (expert)")
	assert.Contains(t, text, "**backend**")
	assert.NotContains(t, text, "<h3>")

	analysis := sampleAnalysis()
	md, err := GlobalRegistry.Format(&analysis, "markdown")
	require.NoError(t, err)
	assert.Contains(t, md, "# Match Analysis")
	assert.Contains(t, md, "**Match score:** 64/100")
	assert.Contains(t, md, "### Match Summary")
}

func TestAnalysisFormatterEmptyGap(t *testing.T) {
	analysis := sampleAnalysis()
	analysis.SkillGap = types.SkillGap{}

	text, err := GlobalRegistry.Format(analysis, "text")
	require.NoError(t, err)
	assert.Contains(t, text, "=== MISSING SKILLS ===\n  - none")
}

func TestQuestFormatters(t *testing.T) {
	text, err := GlobalRegistry.Format([]types.Quest{sampleQuest()}, "text")
	require.NoError(t, err)
	assert.Contains(t, text, "GENERATED QUESTS (1)")
	assert.Contains(t, text, "B. Listen first [90 XP] *")

	list := types.QuestList{
		Quests:     []types.Quest{sampleQuest()},
		UserQuests: []types.SubmissionResult{{QuestID: "q1", Status: types.StatusAttempted, SelectedOption: "A", XPEarned: 30}},
	}
	md, err := GlobalRegistry.Format(list, "markdown")
	require.NoError(t, err)
	assert.Contains(t, md, "## Simulation: Support Lead")
	assert.Contains(t, md, "- q1: attempted (selected A, 30 XP)")

	empty, err := GlobalRegistry.Format(types.QuestList{}, "text")
	require.NoError(t, err)
	assert.Contains(t, empty, "No quests yet.")
}

func TestSubmissionFormatter(t *testing.T) {
	result := &types.SubmissionResult{
		QuestID:        "q1",
		Status:         types.StatusCompleted,
		XPEarned:       90,
		IsCorrect:      true,
		Feedback:       "Good call.",
		SelectedOption: "B",
		CorrectOption:  "B",
	}

	text, err := GlobalRegistry.Format(result, "text")
	require.NoError(t, err)
	assert.Contains(t, text, "Result: Correct")
	assert.Contains(t, text, "XP earned: 90")
	assert.Contains(t, text, "Feedback: Good call.")
}

func TestJSONFormatterFallback(t *testing.T) {
	out, err := GlobalRegistry.Format(sampleAnalysis(), "json")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.EqualValues(t, 64, decoded["matchScore"])

	out, err = GlobalRegistry.Format(map[string]int{"jobs": 2}, "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"jobs": 2}`, out)
}

func TestUnknownFormatAndJSONFallback(t *testing.T) {
	_, err := GlobalRegistry.Format(sampleAnalysis(), "xml")
	assert.Error(t, err)

	out, err := GlobalRegistry.Format(map[string]int{"refreshed": 4}, "text")
	require.NoError(t, err)
	assert.JSONEq(t, `{"refreshed": 4}`, out)
}

func TestGetSupportedFormats(t *testing.T) {
	assert.Equal(t, []string{"json", "markdown", "text"}, GlobalRegistry.GetSupportedFormats())
}
