package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/mfarzz/jobai/internal/errors"
	"github.com/mfarzz/jobai/internal/types"

	"github.com/spf13/cast"
)

// AnalysisPayload is a validated match analysis produced by the model
type AnalysisPayload struct {
	MatchScore     int
	SkillGap       types.SkillGap
	Recommendation string
}

// QuestPayload is a validated quest produced by the model. Options holds
// exactly one option per label.
type QuestPayload struct {
	Question     string
	Options      []types.QuestOption
	Answer       string
	Explanations map[string]string
}

// CleanJSON strips surrounding whitespace and markdown code fences
func CleanJSON(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		// Drop an optional language tag such as ```json
		if idx := strings.IndexAny(s, "\r\n"); idx >= 0 {
			if tag := strings.TrimSpace(s[:idx]); !strings.ContainsAny(tag, "{[") {
				s = s[idx:]
			}
		} else {
			s = strings.TrimPrefix(strings.TrimSpace(s), "json")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseAnalysis validates a model response as a match analysis
func ParseAnalysis(raw string) (*AnalysisPayload, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	payload := &AnalysisPayload{
		MatchScore: coerceScore(obj["matchScore"]),
		SkillGap: types.SkillGap{
			Missing:  []types.MissingSkill{},
			Existing: []types.ExistingSkill{},
		},
	}

	if gapRaw, ok := obj["skillGap"]; ok && gapRaw != nil {
		gap, ok := gapRaw.(map[string]any)
		if !ok {
			return nil, malformed("skillGap must be an object", nil)
		}
		if payload.SkillGap.Missing, err = parseMissing(gap["missing"]); err != nil {
			return nil, err
		}
		if payload.SkillGap.Existing, err = parseExisting(gap["existing"]); err != nil {
			return nil, err
		}
	}

	recommendation, _ := obj["recommendation"].(string)
	if strings.TrimSpace(recommendation) == "" {
		return nil, malformed("recommendation is missing or empty", nil)
	}
	payload.Recommendation = recommendation

	return payload, nil
}

// ParseQuest validates a model response as a single quest
func ParseQuest(raw string) (*QuestPayload, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	question, _ := obj["question"].(string)
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, malformed("question is missing or empty", nil)
	}

	rawOptions, _ := obj["options"].([]any)
	options := make([]types.QuestOption, 0, len(types.OptionLabels))
	explanations := make(map[string]string)
	for _, item := range rawOptions {
		if len(options) == len(types.OptionLabels) {
			break
		}
		opt, ok := item.(map[string]any)
		if !ok {
			continue
		}
		label, _ := opt["label"].(string)
		text, textOK := opt["text"].(string)
		xp, xpOK := opt["xp"].(float64)
		if !types.IsOptionLabel(label) || !textOK || !xpOK {
			continue
		}
		options = append(options, types.QuestOption{Label: label, Text: text, XP: int(math.Round(xp))})
		if explanation, ok := opt["explanation"].(string); ok && explanation != "" {
			explanations[label] = explanation
		}
	}

	if len(options) < len(types.OptionLabels) {
		return nil, malformed(fmt.Sprintf("expected 3 valid options, got %d", len(options)), nil)
	}

	seen := make(map[string]bool, len(options))
	for _, opt := range options {
		if seen[opt.Label] {
			return nil, malformed("duplicate option label "+opt.Label, nil)
		}
		seen[opt.Label] = true
	}

	answer, _ := obj["answer"].(string)
	answer = strings.TrimSpace(answer)
	if !types.IsOptionLabel(answer) {
		return nil, malformed(fmt.Sprintf("answer %q is not one of A, B, C", answer), nil)
	}

	return &QuestPayload{
		Question:     question,
		Options:      options,
		Answer:       answer,
		Explanations: explanations,
	}, nil
}

func decodeObject(raw string) (map[string]any, error) {
	var decoded any
	if err := json.Unmarshal([]byte(CleanJSON(raw)), &decoded); err != nil {
		return nil, malformed("response is not valid JSON", err)
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return nil, malformed("response is not a JSON object", nil)
	}
	return obj, nil
}

// coerceScore accepts a number or numeric string and clamps it to 0..100.
// Anything else yields 0.
func coerceScore(v any) int {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case string:
		parsed, err := cast.ToFloat64E(strings.TrimSpace(val))
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) {
		return 0
	}
	return clampScore(math.Round(f))
}

func clampScore(f float64) int {
	switch {
	case f < 0:
		return 0
	case f > 100:
		return 100
	}
	return int(f)
}

func parseMissing(v any) ([]types.MissingSkill, error) {
	items, err := asArray(v, "skillGap.missing")
	if err != nil {
		return nil, err
	}
	missing := make([]types.MissingSkill, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, malformed(fmt.Sprintf("skillGap.missing[%d] is not an object", i), nil)
		}
		skill, _ := obj["skill"].(string)
		if strings.TrimSpace(skill) == "" {
			return nil, malformed(fmt.Sprintf("skillGap.missing[%d] has no skill", i), nil)
		}
		importance, _ := obj["importance"].(string)
		importance = strings.ToLower(strings.TrimSpace(importance))
		switch importance {
		case types.ImportanceHigh, types.ImportanceMedium, types.ImportanceLow:
		default:
			return nil, malformed(fmt.Sprintf("skillGap.missing[%d] has invalid importance %q", i, importance), nil)
		}
		missing = append(missing, types.MissingSkill{Skill: skill, Importance: importance})
	}
	return missing, nil
}

func parseExisting(v any) ([]types.ExistingSkill, error) {
	items, err := asArray(v, "skillGap.existing")
	if err != nil {
		return nil, err
	}
	existing := make([]types.ExistingSkill, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, malformed(fmt.Sprintf("skillGap.existing[%d] is not an object", i), nil)
		}
		skill, _ := obj["skill"].(string)
		level, _ := obj["level"].(string)
		level = strings.ToLower(strings.TrimSpace(level))
		if strings.TrimSpace(skill) == "" || level == "" {
			return nil, malformed(fmt.Sprintf("skillGap.existing[%d] needs skill and level", i), nil)
		}
		existing = append(existing, types.ExistingSkill{Skill: skill, Level: level})
	}
	return existing, nil
}

func asArray(v any, field string) ([]any, error) {
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, malformed(field+" must be an array", nil)
	}
	return items, nil
}

func malformed(message string, cause error) error {
	return errors.NewMalformedResponseError(message, cause)
}
