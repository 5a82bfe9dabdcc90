package formatters

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/mfarzz/jobai/internal/types"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// Data type keys used by the registry
const (
	TypeAny        = "any"
	TypeAnalysis   = "MatchAnalysis"
	TypeQuestList  = "QuestList"
	TypeQuests     = "Quests"
	TypeSubmission = "SubmissionResult"
)

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", TypeAny, &JSONFormatter{})
	for _, md := range []bool{false, true} {
		format := "text"
		if md {
			format = "markdown"
		}
		registry.RegisterFormatter(format, TypeAnalysis, &AnalysisFormatter{Markdown: md})
		registry.RegisterFormatter(format, TypeQuestList, &QuestListFormatter{Markdown: md})
		registry.RegisterFormatter(format, TypeQuests, &QuestsFormatter{Markdown: md})
		registry.RegisterFormatter(format, TypeSubmission, &SubmissionFormatter{Markdown: md})
		// Summaries without a dedicated layout print as JSON
		registry.RegisterFormatter(format, TypeAny, &JSONFormatter{})
	}

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		if formatter, exists := formatters[TypeAny]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats in sorted order
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	slices.Sort(formats)
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case types.MatchAnalysis, *types.MatchAnalysis:
		return TypeAnalysis
	case types.QuestList, *types.QuestList:
		return TypeQuestList
	case []types.Quest:
		return TypeQuests
	case types.SubmissionResult, *types.SubmissionResult:
		return TypeSubmission
	default:
		return TypeAny
	}
}

// deref accepts either T or *T
func deref[T any](data any) (T, bool) {
	switch v := data.(type) {
	case T:
		return v, true
	case *T:
		if v != nil {
			return *v, true
		}
	}
	var zero T
	return zero, false
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData) + "\n", nil
}

func (jf *JSONFormatter) SupportedType() string {
	return TypeAny
}

// writer emits either plain-text or markdown headings and bullets
type writer struct {
	strings.Builder
	markdown bool
}

func (w *writer) heading(level int, title string) {
	if w.markdown {
		w.WriteString(strings.Repeat("#", level) + " " + title + "\n\n")
		return
	}
	w.WriteString("=== " + strings.ToUpper(title) + " ===\n")
}

func (w *writer) field(name string, value any) {
	if w.markdown {
		fmt.Fprintf(w, "**%s:** %v\n\n", name, value)
		return
	}
	fmt.Fprintf(w, "%s: %v\n", name, value)
}

func (w *writer) bullet(format string, args ...any) {
	prefix := "  - "
	if w.markdown {
		prefix = "- "
	}
	w.WriteString(prefix + fmt.Sprintf(format, args...) + "\n")
}

func (w *writer) blank() {
	w.WriteString("\n")
}

// renderHTML turns the HTML recommendation into markdown, which also reads
// well as plain text
func renderHTML(fragment string) string {
	md, err := htmltomarkdown.ConvertString(fragment)
	if err != nil {
		return fragment
	}
	return strings.TrimSpace(md)
}

// AnalysisFormatter renders a match analysis
type AnalysisFormatter struct {
	Markdown bool
}

func (af *AnalysisFormatter) Format(data any) (string, error) {
	result, ok := deref[types.MatchAnalysis](data)
	if !ok {
		return "", fmt.Errorf("expected MatchAnalysis, got %T", data)
	}

	w := &writer{markdown: af.Markdown}
	w.heading(1, "Match Analysis")
	w.field("Match score", fmt.Sprintf("%d/100", result.MatchScore))
	if !result.AnalyzedAt.IsZero() {
		w.field("Analyzed at", result.AnalyzedAt.Format("2006-01-02 15:04 MST"))
	}
	w.blank()

	w.heading(2, "Missing Skills")
	if len(result.SkillGap.Missing) == 0 {
		w.bullet("none")
	}
	for _, m := range result.SkillGap.Missing {
		w.bullet("%s (%s)", m.Skill, m.Importance)
	}
	w.blank()

	w.heading(2, "Existing Skills")
	if len(result.SkillGap.Existing) == 0 {
		w.bullet("none")
	}
	for _, e := range result.SkillGap.Existing {
		w.bullet("%s (%s)", e.Skill, e.Level)
	}
	w.blank()

	w.heading(2, "Recommendation")
	w.WriteString(renderHTML(result.Recommendation))
	w.WriteString("\n")

	return w.String(), nil
}

func (af *AnalysisFormatter) SupportedType() string {
	return TypeAnalysis
}

func writeQuest(w *writer, q types.Quest) {
	w.heading(2, q.Title)
	if q.ID != "" {
		w.field("ID", q.ID)
	}
	w.field("XP reward", q.XPReward)
	w.WriteString(q.Scenario + "\n")
	w.blank()
	for _, opt := range q.Options {
		marker := ""
		if opt.Label == q.CorrectOption {
			marker = " *"
		}
		w.bullet("%s. %s [%d XP]%s", opt.Label, opt.Text, opt.XP, marker)
	}
	w.blank()
}

// QuestListFormatter renders the quests listed for a job together with the
// caller's previous submissions
type QuestListFormatter struct {
	Markdown bool
}

func (qf *QuestListFormatter) Format(data any) (string, error) {
	list, ok := deref[types.QuestList](data)
	if !ok {
		return "", fmt.Errorf("expected QuestList, got %T", data)
	}

	w := &writer{markdown: qf.Markdown}
	w.heading(1, "Quests")
	if len(list.Quests) == 0 {
		w.WriteString("No quests yet.\n")
		return w.String(), nil
	}
	for _, q := range list.Quests {
		writeQuest(w, q)
	}

	if len(list.UserQuests) > 0 {
		w.heading(2, "Your Submissions")
		for _, s := range list.UserQuests {
			w.bullet("%s: %s (selected %s, %d XP)", s.QuestID, s.Status, s.SelectedOption, s.XPEarned)
		}
	}
	return w.String(), nil
}

func (qf *QuestListFormatter) SupportedType() string {
	return TypeQuestList
}

// QuestsFormatter renders freshly generated quests
type QuestsFormatter struct {
	Markdown bool
}

func (qf *QuestsFormatter) Format(data any) (string, error) {
	quests, ok := data.([]types.Quest)
	if !ok {
		return "", fmt.Errorf("expected []Quest, got %T", data)
	}

	w := &writer{markdown: qf.Markdown}
	w.heading(1, fmt.Sprintf("Generated Quests (%d)", len(quests)))
	for _, q := range quests {
		writeQuest(w, q)
	}
	return w.String(), nil
}

func (qf *QuestsFormatter) SupportedType() string {
	return TypeQuests
}

// SubmissionFormatter renders the result of answering a quest
type SubmissionFormatter struct {
	Markdown bool
}

func (sf *SubmissionFormatter) Format(data any) (string, error) {
	result, ok := deref[types.SubmissionResult](data)
	if !ok {
		return "", fmt.Errorf("expected SubmissionResult, got %T", data)
	}

	verdict := "Incorrect"
	if result.IsCorrect {
		verdict = "Correct"
	}

	w := &writer{markdown: sf.Markdown}
	w.heading(1, "Quest Result")
	w.field("Result", verdict)
	w.field("Status", result.Status)
	w.field("Selected", result.SelectedOption)
	w.field("Correct option", result.CorrectOption)
	w.field("XP earned", result.XPEarned)
	w.field("Feedback", result.Feedback)
	return w.String(), nil
}

func (sf *SubmissionFormatter) SupportedType() string {
	return TypeSubmission
}

// GlobalRegistry is the default formatter registry
var GlobalRegistry = NewFormatterRegistry()
