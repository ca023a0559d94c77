package state

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_HintsShallowMerge(t *testing.T) {
	s := New(DocumentRef{Location: "r.pdf", MediaType: "application/pdf"}, map[string]string{
		"title":   "Engineer",
		"company": "Acme",
	})

	s.Apply(Delta{Hints: map[string]string{
		"title":    "Senior Engineer", // overrides
		"location": "Remote",          // new key
	}})

	assert.Equal(t, "Senior Engineer", s.Hints["title"])
	assert.Equal(t, "Acme", s.Hints["company"])
	assert.Equal(t, "Remote", s.Hints["location"])
}

func TestApply_NilFieldsLeaveStateUntouched(t *testing.T) {
	s := New(DocumentRef{Location: "r.pdf"}, nil)
	s.Apply(Delta{DocumentInfo: &DocumentInfo{PageCount: 2, IsReadable: true}})

	s.Apply(Delta{})

	require.NotNil(t, s.DocumentInfo)
	assert.Equal(t, 2, s.DocumentInfo.PageCount)
	assert.Nil(t, s.FinalRecord)
}

func TestApply_StepResultReplacePerSlot(t *testing.T) {
	s := New(DocumentRef{Location: "r.pdf"}, nil)

	s.Apply(Delta{StepResults: map[StepKey]*StepResult{
		StepMetadata: {Error: "model timeout"},
	}})
	s.Apply(Delta{StepResults: map[StepKey]*StepResult{
		StepSkills: {Data: json.RawMessage(`{"required":["go"]}`), Evaluation: EvaluationScore{Relevance: 0.9}},
	}})

	// Re-running metadata writes a fresh slot without touching skills.
	s.Apply(Delta{StepResults: map[StepKey]*StepResult{
		StepMetadata: {Data: json.RawMessage(`{"title":"Engineer"}`), Evaluation: EvaluationScore{Relevance: 0.8}},
	}})

	require.NotNil(t, s.Slot(StepMetadata))
	assert.False(t, s.Slot(StepMetadata).Failed())
	assert.Equal(t, 0.8, s.Slot(StepMetadata).Evaluation.Relevance)

	require.NotNil(t, s.Slot(StepSkills))
	assert.Equal(t, 0.9, s.Slot(StepSkills).Evaluation.Relevance)
}

func TestApply_ReducerIsolationAcrossDisjointFields(t *testing.T) {
	s := New(DocumentRef{Location: "r.pdf"}, nil)

	// Two steps updating disjoint fields both persist.
	s.Apply(Delta{StepResults: map[StepKey]*StepResult{
		StepMetadata: {Data: json.RawMessage(`{"title":"A"}`)},
	}})
	s.Apply(Delta{Hints: map[string]string{"lang": "en"}})

	// A third update overwriting one field leaves the other's last value intact.
	s.Apply(Delta{DocumentInfo: &DocumentInfo{PageCount: 3, IsReadable: true}})

	assert.Equal(t, "en", s.Hints["lang"])
	require.NotNil(t, s.Slot(StepMetadata))
	assert.Equal(t, 3, s.DocumentInfo.PageCount)
}

func TestClone_DeepCopy(t *testing.T) {
	s := New(DocumentRef{Location: "r.pdf"}, map[string]string{"k": "v"})
	s.Apply(Delta{StepResults: map[StepKey]*StepResult{
		StepSkills: {Data: json.RawMessage(`{"required":["go"]}`)},
	}})

	c, err := s.Clone()
	require.NoError(t, err)

	c.Hints["k"] = "changed"
	c.StepResults[StepSkills].Error = "changed"

	assert.Equal(t, "v", s.Hints["k"])
	assert.Empty(t, s.StepResults[StepSkills].Error)
}

func TestPopulatedSlots_SkipsEmpty(t *testing.T) {
	s := New(DocumentRef{Location: "r.pdf"}, nil)
	s.StepResults[StepMetadata] = nil
	s.StepResults[StepSkills] = &StepResult{Error: "boom"}

	slots := s.PopulatedSlots()
	assert.Len(t, slots, 1)
	assert.Contains(t, slots, StepSkills)
}
