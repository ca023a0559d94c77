package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/jobflow/internal/state"
)

func TestParseEnvelope(t *testing.T) {
	t.Run("bare json", func(t *testing.T) {
		data, eval, err := parseEnvelope(`{"data":{"title":"Engineer"},"evaluation":{"relevance":0.8,"confidence":0.7,"grounding":0.9,"completeness":0.6}}`)
		require.NoError(t, err)
		assert.JSONEq(t, `{"title":"Engineer"}`, string(data))
		assert.Equal(t, 0.8, eval.Relevance)
		assert.Equal(t, 0.6, eval.Completeness)
	})

	t.Run("fenced json", func(t *testing.T) {
		data, eval, err := parseEnvelope("```json\n{\"data\":{\"required\":[\"go\"]},\"evaluation\":{\"relevance\":0.9}}\n```")
		require.NoError(t, err)
		assert.JSONEq(t, `{"required":["go"]}`, string(data))
		assert.Equal(t, 0.9, eval.Relevance)
	})

	t.Run("out of range scores clamped", func(t *testing.T) {
		_, eval, err := parseEnvelope(`{"data":{},"evaluation":{"relevance":1.7,"confidence":-0.2}}`)
		require.NoError(t, err)
		assert.Equal(t, 1.0, eval.Relevance)
		assert.Equal(t, 0.0, eval.Confidence)
	})

	t.Run("not json", func(t *testing.T) {
		_, _, err := parseEnvelope("Sure! Here is the extraction you asked for.")
		require.Error(t, err)
	})

	t.Run("missing data object", func(t *testing.T) {
		_, _, err := parseEnvelope(`{"evaluation":{"relevance":0.9}}`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no data object")
	})
}

func TestBuildPrompt(t *testing.T) {
	p := buildPrompt(state.StepSkills, "Go and SQL required.", map[string]string{"company": "Acme"})

	assert.Contains(t, p, "required and preferred skills")
	assert.Contains(t, p, "- company: Acme")
	assert.Contains(t, p, "Document:\nGo and SQL required.")

	noHints := buildPrompt(state.StepSkills, "text", nil)
	assert.NotContains(t, noHints, "hints")
}
