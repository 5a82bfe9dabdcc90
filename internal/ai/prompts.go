package ai

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mfarzz/jobai/internal/config"
	"github.com/mfarzz/jobai/internal/types"
)

// Truncation limits, in runes, for free-text fields embedded in prompts
const (
	MaxJobTextRunes         = 1500
	MaxExperienceDescRunes  = 200
	MaxProjectDescRunes     = 200
	MaxEducationDescRunes   = 150
	defaultQuestThemePrompt = "vary the scenario framing (situational, technical, prioritization)"
)

// DefaultSystemPrompts provides the default system instructions
var DefaultSystemPrompts = map[string]string{
	config.OperationAnalysis: `You are an experienced career advisor who evaluates how well a candidate fits a job opening.

Your principles:
- Consider EVERY part of the candidate profile: skills, work experience, education, certifications and projects
- Never invent skills or experience that are not in the profile
- Be specific and actionable in your advice
- Always answer with a single valid JSON object and nothing else`,

	config.OperationQuest: `You design short workplace simulations that help job seekers practice the judgment a role requires.

Your principles:
- Scenarios must be realistic for the role and grounded in the job description
- Exactly one option is the best answer; the others are plausible but weaker
- Keep the language concise and relevant to the role
- Always answer with a single valid JSON object and nothing else`,
}

// analysisPromptTemplate placeholders, in order: skill count, skills,
// experience count, experiences, education count, educations, certification
// count, certifications, project count, projects, job title, description,
// qualifications, required skills.
const analysisPromptTemplate = `Analyze how well the candidate below matches the job opening. The analysis must take ALL aspects of the candidate profile into account.

CANDIDATE PROFILE:

1. SKILLS (%d skills):
%s

2. WORK EXPERIENCE (%d entries):
%s

3. EDUCATION (%d entries):
%s

4. CERTIFICATIONS (%d entries):
%s

5. PROJECTS (%d entries):
%s

JOB OPENING:
- Position: %s
- Description: %s
- Qualifications: %s
- Required skills: %s

YOUR TASK:
Evaluate the match by considering:
1. Skills matching (do the candidate's skills meet the requirements)
2. Work experience (how relevant the experience is to the position)
3. Education (whether the educational background fits)
4. Certifications (whether certifications are relevant and add value)
5. Projects (whether past projects are relevant)

Respond with the following JSON format:
{
  "matchScore": <integer 0-100 based on a comprehensive analysis of all aspects>,
  "skillGap": {
    "missing": [{"skill": "a required job skill the candidate does NOT have", "importance": "high/medium/low"}],
    "existing": [{"skill": "a skill the candidate has that is ALSO in the job requirements (matching skills ONLY)", "level": "expert/intermediate/beginner"}]
  },
  "recommendation": "A complete recommendation in English as well-structured HTML. Use these tags: <h3> for section titles, <p> for paragraphs, <ul> and <li> for lists, <strong> for important text, <em> for emphasis. The structure must include: (1) an overall match summary, (2) a 'Candidate Strengths' section with bullet points, (3) an 'Areas to Improve' section with bullet points, (4) a 'Concrete Steps' section with a numbered list, and (5) a 'Preparation Timeline' section with a clear timeline. At least 400 words."
}

Example of the expected HTML structure:
<h3>Match Summary</h3>
<p>Overall, the candidate shows...</p>

<h3>Candidate Strengths</h3>
<ul>
  <li><strong>Practical Experience:</strong> Description of the strength</li>
  <li><strong>Strong Portfolio:</strong> Description of the strength</li>
</ul>

<h3>Areas to Improve</h3>
<ul>
  <li>Area 1 with an explanation</li>
  <li>Area 2 with an explanation</li>
</ul>

<h3>Concrete Steps</h3>
<ol>
  <li><strong>Step title:</strong> Detailed explanation</li>
  <li><strong>Step title:</strong> Detailed explanation</li>
</ol>

<h3>Preparation Timeline</h3>
<ul>
  <li><strong>1-2 months:</strong> Focus on...</li>
  <li><strong>2-3 months:</strong> Apply...</li>
</ul>

Make sure the response contains only valid JSON, with no additional text.`

// questPromptTemplate placeholders, in order: job title, theme,
// description, qualifications, skills.
const questPromptTemplate = `Create 1 quest simulation for the role "%s". Respond with JSON only (no other text).
JSON structure:
{
  "question": "a short situational or technical question",
  "options": [
    {"label":"A","text":"answer", "xp": int, "explanation": "short reason"},
    {"label":"B","text":"answer", "xp": int, "explanation": "short reason"},
    {"label":"C","text":"answer", "xp": int, "explanation": "short reason"}
  ],
  "answer": "A/B/C as the best option"
}
Rules:
- Fit the context to the job description and requirements below.
- Theme focus: %s.
- Every option has a different XP value (10-100). No two options may share a value.
- Exactly one best answer (answer).
- Add an explanation per option (1-2 sentences) saying why the option is right or less suitable.
- English, concise, relevant to the role.

Job description:
%s

Qualifications:
%s

Key skills: %s
`

// QuestPromptInput holds the job context for one quest prompt
type QuestPromptInput struct {
	JobTitle          string
	JobDescription    string
	JobQualifications string
	Skills            []string
	Theme             string
}

// BuildAnalysisPrompt renders the match analysis prompt for a profile and job
func BuildAnalysisPrompt(profile types.ProfileBundle, job types.JobSummary) string {
	return fmt.Sprintf(analysisPromptTemplate,
		len(profile.Skills), formatSkills(profile.Skills),
		len(profile.Experiences), orDefault(formatExperiences(profile.Experiences), "No work experience listed"),
		len(profile.Educations), orDefault(formatEducations(profile.Educations), "No education listed"),
		len(profile.Certifications), orDefault(formatCertifications(profile.Certifications), "No certifications listed"),
		len(profile.Projects), orDefault(formatProjects(profile.Projects), "No projects listed"),
		job.Title,
		truncate(job.Description, MaxJobTextRunes),
		truncate(job.Qualifications, MaxJobTextRunes),
		strings.Join(job.RequiredSkills, ", "),
	)
}

// BuildQuestPrompt renders the prompt for a single quest. An empty theme asks
// the model for varied framing.
func BuildQuestPrompt(input QuestPromptInput) string {
	theme := input.Theme
	if theme == "" {
		theme = defaultQuestThemePrompt
	}

	return fmt.Sprintf(questPromptTemplate,
		input.JobTitle,
		theme,
		orDefault(truncate(input.JobDescription, MaxJobTextRunes), "-"),
		orDefault(truncate(input.JobQualifications, MaxJobTextRunes), "-"),
		orDefault(strings.Join(input.Skills, ", "), "-"),
	)
}

func formatSkills(skills []types.Skill) string {
	if len(skills) == 0 {
		return "No skills listed"
	}
	lines := make([]string, 0, len(skills))
	for _, s := range skills {
		level := "N/A"
		if s.Level != nil && *s.Level != 0 {
			level = strconv.Itoa(*s.Level)
		}
		lines = append(lines, fmt.Sprintf("- %s (level: %s)", s.Name, level))
	}
	return strings.Join(lines, "\n")
}

func formatExperiences(experiences []types.Experience) string {
	lines := make([]string, 0, len(experiences))
	for _, e := range experiences {
		var b strings.Builder
		fmt.Fprintf(&b, "%s at %s", e.Title, e.Company)
		if e.Location != nil && *e.Location != "" {
			fmt.Fprintf(&b, " (%s)", *e.Location)
		}

		if e.IsCurrent {
			fmt.Fprintf(&b, " (since %d (ongoing))", e.StartDate.Year())
		} else {
			end := "present"
			if e.EndDate != nil {
				end = strconv.Itoa(e.EndDate.Year())
			}
			fmt.Fprintf(&b, " (%d - %s)", e.StartDate.Year(), end)
		}

		if e.Description != nil && *e.Description != "" {
			fmt.Fprintf(&b, ": %s", truncate(*e.Description, MaxExperienceDescRunes))
		}
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

func formatEducations(educations []types.Education) string {
	lines := make([]string, 0, len(educations))
	for _, e := range educations {
		parts := make([]string, 0, 2)
		if e.Degree != nil && *e.Degree != "" {
			parts = append(parts, *e.Degree)
		}
		if e.Field != nil && *e.Field != "" {
			parts = append(parts, *e.Field)
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%s from %s", strings.Join(parts, " "), e.School)

		switch {
		case e.IsCurrent:
			b.WriteString(" (in progress)")
		case e.StartDate != nil && e.EndDate != nil:
			fmt.Fprintf(&b, " (%d - %d)", e.StartDate.Year(), e.EndDate.Year())
		}

		if e.Description != nil && *e.Description != "" {
			fmt.Fprintf(&b, ": %s", truncate(*e.Description, MaxEducationDescRunes))
		}
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

func formatCertifications(certifications []types.Certification) string {
	lines := make([]string, 0, len(certifications))
	for _, c := range certifications {
		line := fmt.Sprintf("%s from %s (%d)", c.Name, c.Issuer, c.IssueDate.Year())
		if c.ExpiryDate != nil {
			line += fmt.Sprintf(" (valid until %d)", c.ExpiryDate.Year())
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatProjects(projects []types.Project) string {
	lines := make([]string, 0, len(projects))
	for _, p := range projects {
		line := p.Name
		if p.Description != nil && *p.Description != "" {
			line += ": " + truncate(*p.Description, MaxProjectDescRunes)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// truncate cuts s to at most n runes
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
