package extractor

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/jobflow/internal/state"
)

func fullResults() map[state.StepKey]*state.StepResult {
	return map[state.StepKey]*state.StepResult{
		state.StepMetadata: {
			Data:       json.RawMessage(`{"title":"Senior Go Engineer","company":"Acme"}`),
			Evaluation: state.EvaluationScore{Relevance: 0.9},
		},
		state.StepSkills: {
			Data:       json.RawMessage(`{"required":["go","sql"],"preferred":["terraform"]}`),
			Evaluation: state.EvaluationScore{Relevance: 0.85},
		},
		state.StepRequirements: {
			Data:       json.RawMessage(`{"education":"bachelor","experience_years":"5+"}`),
			Evaluation: state.EvaluationScore{Relevance: 0.8},
		},
	}
}

func TestRecordAggregator_AllSlotsValid(t *testing.T) {
	record, validation, err := NewRecordAggregator(nil).Aggregate(context.Background(), fullResults())

	require.NoError(t, err)
	assert.Equal(t, "Senior Go Engineer", record.Metadata.Title)
	assert.Equal(t, []string{"go", "sql"}, record.Skills.Required)
	assert.Equal(t, "bachelor", record.Requirements.Education)
	assert.True(t, validation.IsValid)
	assert.Empty(t, validation.Issues)
}

func TestRecordAggregator_MissingSlot(t *testing.T) {
	results := fullResults()
	delete(results, state.StepRequirements)

	record, validation, err := NewRecordAggregator(nil).Aggregate(context.Background(), results)

	require.NoError(t, err)
	assert.Equal(t, "Senior Go Engineer", record.Metadata.Title)
	assert.False(t, validation.IsValid)
	assert.Contains(t, validation.Issues, "requirements extraction missing")
}

func TestRecordAggregator_ErroredSlot(t *testing.T) {
	results := fullResults()
	results[state.StepSkills] = &state.StepResult{Error: "model unavailable"}

	record, validation, err := NewRecordAggregator(nil).Aggregate(context.Background(), results)

	require.NoError(t, err)
	assert.Empty(t, record.Skills.Required)
	assert.False(t, validation.IsValid)
	assert.Contains(t, validation.Issues, "skills extraction failed: model unavailable")
	assert.Contains(t, validation.Issues, "no skills extracted")
}

func TestRecordAggregator_MissingTitleInvalidates(t *testing.T) {
	results := fullResults()
	results[state.StepMetadata].Data = json.RawMessage(`{"company":"Acme"}`)

	_, validation, err := NewRecordAggregator(nil).Aggregate(context.Background(), results)

	require.NoError(t, err)
	assert.False(t, validation.IsValid)
	assert.Contains(t, validation.Issues, "job title could not be determined")
}

func TestRecordAggregator_MalformedPayload(t *testing.T) {
	results := fullResults()
	results[state.StepSkills].Data = json.RawMessage(`{"required": "not-a-list"}`)

	record, validation, err := NewRecordAggregator(nil).Aggregate(context.Background(), results)

	require.NoError(t, err)
	assert.Empty(t, record.Skills.Required)
	assert.False(t, validation.IsValid)
}

func TestRecordAggregator_EvaluationIssuesCarryOver(t *testing.T) {
	results := fullResults()
	results[state.StepMetadata].Evaluation.Issues = []string{"salary not stated"}

	_, validation, err := NewRecordAggregator(nil).Aggregate(context.Background(), results)

	require.NoError(t, err)
	assert.True(t, validation.IsValid, "evaluation issues inform but do not invalidate")
	assert.Contains(t, validation.Issues, "metadata: salary not stated")
}
