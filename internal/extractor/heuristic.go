package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/jobflow/internal/state"
)

// HeuristicExtractor is a pattern-based offline extractor. It exists so
// the workflow runs end to end without model credentials; its evaluations
// reflect how many fields the patterns actually populated.
type HeuristicExtractor struct {
	key state.StepKey
}

// NewHeuristicExtractor creates a heuristic extractor for one step.
func NewHeuristicExtractor(key state.StepKey) *HeuristicExtractor {
	return &HeuristicExtractor{key: key}
}

var (
	companyRe    = regexp.MustCompile(`(?im)^\s*(?:company|employer)\s*[:\-]\s*(.+)$`)
	locationRe   = regexp.MustCompile(`(?im)^\s*location\s*[:\-]\s*(.+)$`)
	salaryRe     = regexp.MustCompile(`(?i)(?:[$€£]\s?[\d,]+k?\s*(?:-|to|–)\s*[$€£]?\s?[\d,]+k?)`)
	experienceRe = regexp.MustCompile(`(?i)(\d+)\s*\+?\s*years?`)
)

var employmentTypes = []string{"full-time", "part-time", "contract", "internship", "temporary"}

var seniorityLevels = []string{"intern", "junior", "mid-level", "senior", "staff", "principal", "lead"}

var educationLevels = []string{"phd", "doctorate", "master", "bachelor", "associate degree", "high school"}

// knownSkills is the vocabulary scanned by the skills step.
var knownSkills = []string{
	"go", "golang", "python", "java", "javascript", "typescript", "rust", "c++",
	"sql", "postgresql", "mysql", "redis", "mongodb",
	"kubernetes", "docker", "terraform", "aws", "gcp", "azure",
	"react", "grpc", "graphql", "kafka", "linux", "git", "ci/cd",
}

// Extract applies the step's patterns to the document text.
func (h *HeuristicExtractor) Extract(_ context.Context, ref state.DocumentRef, hints map[string]string) (json.RawMessage, state.EvaluationScore, error) {
	text, err := readDocumentText(ref)
	if err != nil {
		return nil, state.EvaluationScore{}, fmt.Errorf("read document: %w", err)
	}

	switch h.key {
	case state.StepMetadata:
		return h.extractMetadata(text, hints)
	case state.StepSkills:
		return h.extractSkills(text)
	case state.StepRequirements:
		return h.extractRequirements(text)
	default:
		return nil, state.EvaluationScore{}, fmt.Errorf("no heuristics for step %q", h.key)
	}
}

func (h *HeuristicExtractor) extractMetadata(text string, hints map[string]string) (json.RawMessage, state.EvaluationScore, error) {
	lower := strings.ToLower(text)
	md := state.Metadata{
		Title:    hints["title"],
		Company:  hints["company"],
		Location: hints["location"],
	}

	if md.Title == "" {
		md.Title = firstNonEmptyLine(text)
	}
	if md.Company == "" {
		if m := companyRe.FindStringSubmatch(text); m != nil {
			md.Company = strings.TrimSpace(m[1])
		}
	}
	if md.Location == "" {
		if m := locationRe.FindStringSubmatch(text); m != nil {
			md.Location = strings.TrimSpace(m[1])
		}
	}
	for _, t := range employmentTypes {
		if strings.Contains(lower, t) {
			md.EmploymentType = t
			break
		}
	}
	for _, s := range seniorityLevels {
		if strings.Contains(lower, s) {
			md.Seniority = s
			break
		}
	}
	if m := salaryRe.FindString(text); m != "" {
		md.SalaryRange = strings.TrimSpace(m)
	}

	populated := countNonEmpty(md.Title, md.Company, md.Location, md.EmploymentType, md.Seniority, md.SalaryRange)
	return marshalWithScore(md, populated, 6)
}

func (h *HeuristicExtractor) extractSkills(text string) (json.RawMessage, state.EvaluationScore, error) {
	lower := strings.ToLower(text)
	sk := state.SkillSet{}
	seen := map[string]bool{}
	for _, s := range knownSkills {
		if seen[s] || !containsWord(lower, s) {
			continue
		}
		seen[s] = true
		if strings.Contains(lower, "nice to have") && strings.Contains(sectionAfter(lower, "nice to have"), s) {
			sk.Preferred = append(sk.Preferred, s)
		} else {
			sk.Required = append(sk.Required, s)
		}
	}

	populated := 0
	if len(sk.Required) > 0 {
		populated++
	}
	if len(sk.Preferred) > 0 {
		populated++
	}
	return marshalWithScore(sk, populated, 2)
}

func (h *HeuristicExtractor) extractRequirements(text string) (json.RawMessage, state.EvaluationScore, error) {
	lower := strings.ToLower(text)
	req := state.Requirements{}

	for _, level := range educationLevels {
		if strings.Contains(lower, level) {
			req.Education = level
			break
		}
	}
	if m := experienceRe.FindStringSubmatch(text); m != nil {
		req.ExperienceYears = m[1] + "+"
	}
	req.Responsibilities = bulletLines(sectionAfter(text, "responsibilities"))

	populated := countNonEmpty(req.Education, req.ExperienceYears)
	if len(req.Responsibilities) > 0 {
		populated++
	}
	return marshalWithScore(req, populated, 3)
}

// marshalWithScore encodes the payload and derives the evaluation from
// how many of the step's fields the patterns filled.
func marshalWithScore(v any, populated, total int) (json.RawMessage, state.EvaluationScore, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, state.EvaluationScore{}, err
	}
	ratio := float64(populated) / float64(total)
	eval := state.EvaluationScore{
		Relevance:    0.4 + 0.6*ratio,
		Confidence:   0.5,
		Grounding:    1.0, // patterns only ever surface text present in the document
		Completeness: ratio,
	}
	if populated == 0 {
		eval.Relevance = 0.1
		eval.Issues = []string{"no fields matched heuristic patterns"}
	}
	return raw, eval, nil
}

func firstNonEmptyLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}

func countNonEmpty(vals ...string) int {
	n := 0
	for _, v := range vals {
		if v != "" {
			n++
		}
	}
	return n
}

// containsWord reports a whole-word match, so "go" never matches "good".
func containsWord(text, word string) bool {
	re := regexp.MustCompile(`(?i)(^|[^a-z0-9+])` + regexp.QuoteMeta(word) + `($|[^a-z0-9+])`)
	return re.MatchString(text)
}

// sectionAfter returns the text following a heading, up to the next blank
// line pair or the end of the document.
func sectionAfter(text, heading string) string {
	idx := strings.Index(strings.ToLower(text), strings.ToLower(heading))
	if idx < 0 {
		return ""
	}
	rest := text[idx+len(heading):]
	if end := strings.Index(rest, "\n\n\n"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

// bulletLines extracts "-" or "*" prefixed lines.
func bulletLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "-") || strings.HasPrefix(t, "*") {
			item := strings.TrimSpace(strings.TrimLeft(t, "-* "))
			if item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}
