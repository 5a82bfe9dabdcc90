package quest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mfarzz/jobai/internal/store"
	"github.com/mfarzz/jobai/internal/types"
)

// Themes is the fixed pool a generated batch draws distinct themes from
var Themes = []string{
	"Prioritization and work management",
	"Rapid technical decision-making",
	"Team collaboration and cross-functional coordination",
	"Customer service and communication",
	"Risk, security, or compliance",
}

// Count bounds for List and Generate
const (
	MinCount     = 1
	MaxCount     = 3
	DefaultCount = 3
)

// Feedback used when the quest has no explanation for the chosen option
const (
	correctFeedback   = "Your choice fits the situation well."
	incorrectFeedback = "Another option fits the needs of this case better."
)

var xpPattern = regexp.MustCompile(`(?i)\[xp:(\d+)\]`)

// ClampCount bounds a requested quest count to [MinCount, MaxCount]
func ClampCount(n int) int {
	return max(MinCount, min(n, MaxCount))
}

// ParseCount reads a count query value. Anything that is not an integer
// yields DefaultCount; integers are clamped.
func ParseCount(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return DefaultCount
	}
	return ClampCount(n)
}

// SerializeOption encodes an option's XP in front of its text
func SerializeOption(opt types.QuestOption) string {
	return fmt.Sprintf("[xp:%d] %s", opt.XP, opt.Text)
}

// parseXP extracts the XP tag from a stored option text
func parseXP(text string) (int, bool) {
	m := xpPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	xp, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return xp, true
}

// ParseOption decodes a stored option text into its display text and XP
func ParseOption(label, stored string) types.QuestOption {
	opt := types.QuestOption{Label: label, Text: stored}
	if xp, ok := parseXP(stored); ok {
		opt.XP = xp
		opt.Text = strings.TrimSpace(xpPattern.ReplaceAllString(stored, ""))
	}
	return opt
}

// toRecord converts a generated quest into its stored form
func toRecord(q types.Quest) store.QuestRecord {
	rec := store.QuestRecord{
		ID:            q.ID,
		JobID:         q.JobID,
		Title:         q.Title,
		Scenario:      q.Scenario,
		CorrectOption: q.CorrectOption,
		Explanations:  q.Explanations,
		XPReward:      q.XPReward,
		GeneratedByAI: q.GeneratedByAI,
		CreatedAt:     q.CreatedAt,
	}
	for _, opt := range q.Options {
		switch opt.Label {
		case types.OptionA:
			rec.OptionA = SerializeOption(opt)
		case types.OptionB:
			rec.OptionB = SerializeOption(opt)
		case types.OptionC:
			rec.OptionC = SerializeOption(opt)
		}
	}
	return rec
}

// fromRecord converts a stored quest into its API form
func fromRecord(rec store.QuestRecord) types.Quest {
	q := types.Quest{
		ID:            rec.ID,
		JobID:         rec.JobID,
		Title:         rec.Title,
		Scenario:      rec.Scenario,
		CorrectOption: rec.CorrectOption,
		Explanations:  rec.Explanations,
		XPReward:      rec.XPReward,
		GeneratedByAI: rec.GeneratedByAI,
		CreatedAt:     rec.CreatedAt,
		Options:       make([]types.QuestOption, 0, len(types.OptionLabels)),
	}
	if q.Explanations == nil {
		q.Explanations = map[string]string{}
	}
	for _, label := range types.OptionLabels {
		q.Options = append(q.Options, ParseOption(label, rec.OptionText(label)))
	}
	return q
}
