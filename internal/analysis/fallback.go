package analysis

import (
	"bytes"
	"html/template"
	"math"
	"strings"

	"github.com/mfarzz/jobai/internal/types"
)

// Category weights of the rule-based score
const (
	skillWeight           = 40
	experiencePresent     = 25
	experienceAbsent      = 10
	educationPresent      = 15
	educationAbsent       = 5
	certificationPresent  = 10
	projectPresent        = 10
	maxRecommendedSkills  = 5
	maxStepSkills         = 3
	expertLevelThreshold  = 70
	intermediateThreshold = 50
)

var recommendationTemplate = template.Must(template.New("recommendation").
	Funcs(template.FuncMap{"join": strings.Join}).
	Parse(
	`<h3>Match Summary</h3>
<p>Based on a full review of your profile (skills, experience, education, certifications and projects), you are a <strong>{{.Score}}% match</strong> for this position.</p>

<h3>Candidate Strengths</h3>
<ul>
{{range .Strengths}}<li>{{.}}</li>
{{end}}{{if .ExistingSkills}}<li><strong>Skills:</strong> {{join .ExistingSkills ", "}}</li>
{{end}}</ul>

<h3>Areas to Improve</h3>
<ul>
{{range .MissingSkills}}<li><strong>{{.}}</strong> - This skill matters for the role. Focus on learning and hands-on practice.</li>
{{end}}</ul>

<h3>Concrete Steps</h3>
<ol>
<li><strong>Close skill gaps:</strong> Focus on: {{join .StepSkills ", "}}. Build them through online courses, tutorials and direct practice.</li>
<li><strong>Personal projects:</strong> Build a project that uses the missing skills to demonstrate your ability.</li>
<li><strong>Certification:</strong> Consider earning a certification relevant to this position.</li>
</ol>

<h3>Preparation Timeline</h3>
<ul>
<li><strong>1-2 months:</strong> Learn the missing skills through online courses and practice.</li>
<li><strong>2-3 months:</strong> Apply what you learned in personal projects and document the results.</li>
<li><strong>3-6 months:</strong> Polish your skills, strengthen your portfolio and start applying.</li>
</ul>`))

type recommendationData struct {
	Score          int
	Strengths      []string
	ExistingSkills []string
	MissingSkills  []string
	StepSkills     []string
}

// FallbackScore computes a deterministic match analysis from the profile and
// the job's required skills. The returned analysis has no id, owner or time.
func FallbackScore(profile types.ProfileBundle, job types.JobSummary) types.MatchAnalysis {
	jobSkills := make([]string, len(job.RequiredSkills))
	for i, s := range job.RequiredSkills {
		jobSkills[i] = strings.ToLower(s)
	}
	userSkills := make([]string, len(profile.Skills))
	for i, s := range profile.Skills {
		userSkills[i] = strings.ToLower(s.Name)
	}

	gap := types.SkillGap{Missing: []types.MissingSkill{}, Existing: []types.ExistingSkill{}}

	matched := 0
	for _, js := range jobSkills {
		if matchesAny(js, userSkills) {
			matched++
			continue
		}
		gap.Missing = append(gap.Missing, types.MissingSkill{Skill: js, Importance: types.ImportanceMedium})
	}

	for i, skill := range profile.Skills {
		for _, js := range jobSkills {
			if skillsMatch(userSkills[i], js) {
				gap.Existing = append(gap.Existing, types.ExistingSkill{Skill: js, Level: levelFor(skill.Level)})
				break
			}
		}
	}

	score := float64(matched) / float64(max(len(jobSkills), 1)) * skillWeight
	score += pick(len(profile.Experiences) > 0, experiencePresent, experienceAbsent)
	score += pick(len(profile.Educations) > 0, educationPresent, educationAbsent)
	score += pick(len(profile.Certifications) > 0, certificationPresent, 0)
	score += pick(len(profile.Projects) > 0, projectPresent, 0)
	matchScore := min(int(math.Round(score)), 100)

	return types.MatchAnalysis{
		MatchScore:     matchScore,
		SkillGap:       gap,
		Recommendation: renderRecommendation(matchScore, profile, gap),
		Source:         types.SourceFallback,
	}
}

func skillsMatch(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func matchesAny(jobSkill string, userSkills []string) bool {
	for _, us := range userSkills {
		if skillsMatch(us, jobSkill) {
			return true
		}
	}
	return false
}

func levelFor(level *int) string {
	switch {
	case level == nil:
		return types.LevelBeginner
	case *level >= expertLevelThreshold:
		return types.LevelExpert
	case *level >= intermediateThreshold:
		return types.LevelIntermediate
	}
	return types.LevelBeginner
}

func pick(cond bool, yes, no float64) float64 {
	if cond {
		return yes
	}
	return no
}

func renderRecommendation(score int, profile types.ProfileBundle, gap types.SkillGap) string {
	data := recommendationData{Score: score}

	if len(profile.Experiences) > 0 {
		data.Strengths = append(data.Strengths, "Has relevant work experience")
	}
	if len(profile.Educations) > 0 {
		data.Strengths = append(data.Strengths, "Has a suitable educational background")
	}
	if len(profile.Certifications) > 0 {
		data.Strengths = append(data.Strengths, "Holds relevant certifications")
	}
	if len(profile.Projects) > 0 {
		data.Strengths = append(data.Strengths, "Has a strong project portfolio")
	}

	for i, s := range gap.Existing {
		if i == maxRecommendedSkills {
			break
		}
		data.ExistingSkills = append(data.ExistingSkills, s.Skill)
	}
	for i, s := range gap.Missing {
		if i == maxRecommendedSkills {
			break
		}
		data.MissingSkills = append(data.MissingSkills, s.Skill)
		if i < maxStepSkills {
			data.StepSkills = append(data.StepSkills, s.Skill)
		}
	}

	var buf bytes.Buffer
	if err := recommendationTemplate.Execute(&buf, data); err != nil {
		panic(err) // unreachable with a fixed template
	}
	return buf.String()
}
