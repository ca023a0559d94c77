package extractor

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/jobflow/internal/state"
)

const sampleJobPosting = `Senior Go Engineer

Company: Acme Corp
Location: Berlin, Germany

We are hiring a full-time senior engineer. Salary $120,000 - $150,000.

Requirements:
Bachelor degree in computer science or equivalent.
5+ years of backend experience with Go, PostgreSQL and Kubernetes.

Responsibilities:
- Design and operate backend services
- Review code and mentor engineers

Nice to have: terraform experience.
`

func sampleRef(t *testing.T) state.DocumentRef {
	t.Helper()
	return state.DocumentRef{
		Location:  writeDoc(t, "posting.txt", sampleJobPosting),
		MediaType: "text/plain",
	}
}

func TestHeuristicExtractor_Metadata(t *testing.T) {
	ref := sampleRef(t)
	raw, eval, err := NewHeuristicExtractor(state.StepMetadata).Extract(context.Background(), ref, nil)
	require.NoError(t, err)

	var md state.Metadata
	require.NoError(t, json.Unmarshal(raw, &md))
	assert.Equal(t, "Senior Go Engineer", md.Title)
	assert.Equal(t, "Acme Corp", md.Company)
	assert.Equal(t, "Berlin, Germany", md.Location)
	assert.Equal(t, "full-time", md.EmploymentType)
	assert.Equal(t, "senior", md.Seniority)
	assert.NotEmpty(t, md.SalaryRange)

	assert.Equal(t, 1.0, eval.Completeness)
	assert.Greater(t, eval.Relevance, 0.9)
}

func TestHeuristicExtractor_MetadataHintsWin(t *testing.T) {
	ref := sampleRef(t)
	hints := map[string]string{"title": "Staff Engineer", "company": "Globex"}
	raw, _, err := NewHeuristicExtractor(state.StepMetadata).Extract(context.Background(), ref, hints)
	require.NoError(t, err)

	var md state.Metadata
	require.NoError(t, json.Unmarshal(raw, &md))
	assert.Equal(t, "Staff Engineer", md.Title)
	assert.Equal(t, "Globex", md.Company)
}

func TestHeuristicExtractor_Skills(t *testing.T) {
	ref := sampleRef(t)
	raw, _, err := NewHeuristicExtractor(state.StepSkills).Extract(context.Background(), ref, nil)
	require.NoError(t, err)

	var sk state.SkillSet
	require.NoError(t, json.Unmarshal(raw, &sk))
	assert.Contains(t, sk.Required, "go")
	assert.Contains(t, sk.Required, "postgresql")
	assert.Contains(t, sk.Required, "kubernetes")
	assert.Contains(t, sk.Preferred, "terraform")
	assert.NotContains(t, sk.Required, "terraform")
}

func TestHeuristicExtractor_Requirements(t *testing.T) {
	ref := sampleRef(t)
	raw, _, err := NewHeuristicExtractor(state.StepRequirements).Extract(context.Background(), ref, nil)
	require.NoError(t, err)

	var req state.Requirements
	require.NoError(t, json.Unmarshal(raw, &req))
	assert.Equal(t, "bachelor", req.Education)
	assert.Equal(t, "5+", req.ExperienceYears)
	require.Len(t, req.Responsibilities, 2)
	assert.Equal(t, "Design and operate backend services", req.Responsibilities[0])
}

func TestHeuristicExtractor_NoMatchesScoresLow(t *testing.T) {
	ref := state.DocumentRef{
		Location:  writeDoc(t, "recipe.txt", "Mix flour and water.\nBake at 200C."),
		MediaType: "text/plain",
	}
	_, eval, err := NewHeuristicExtractor(state.StepSkills).Extract(context.Background(), ref, nil)
	require.NoError(t, err)
	assert.Less(t, eval.Relevance, 0.2)
	assert.NotEmpty(t, eval.Issues)
}

func TestContainsWord(t *testing.T) {
	assert.True(t, containsWord("experience with go, sql", "go"))
	assert.False(t, containsWord("good communication", "go"))
	assert.True(t, containsWord("knows c++ well", "c++"))
}
