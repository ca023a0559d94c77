package router

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/jobflow/internal/state"
)

func newState() *state.WorkflowState {
	return state.New(state.DocumentRef{Location: "r.pdf", MediaType: "application/pdf"}, nil)
}

func okResult() *state.StepResult {
	return &state.StepResult{
		Data:       json.RawMessage(`{}`),
		Evaluation: state.EvaluationScore{Relevance: 0.9},
	}
}

func TestPendingSteps_FreshStateFansOutToAll(t *testing.T) {
	s := newState()

	pending := PendingSteps(s, state.AllSteps())

	assert.ElementsMatch(t, state.AllSteps(), pending)
}

func TestPendingSteps_IdempotentResume(t *testing.T) {
	s := newState()
	s.StepResults[state.StepMetadata] = okResult()

	pending := PendingSteps(s, state.AllSteps())

	assert.ElementsMatch(t, []state.StepKey{state.StepSkills, state.StepRequirements}, pending)
	assert.NotContains(t, pending, state.StepMetadata)
}

func TestPendingSteps_ErroredSlotIsPending(t *testing.T) {
	s := newState()
	s.StepResults[state.StepMetadata] = okResult()
	s.StepResults[state.StepSkills] = &state.StepResult{Error: "model unavailable"}
	s.StepResults[state.StepRequirements] = okResult()

	pending := PendingSteps(s, state.AllSteps())

	assert.Equal(t, []state.StepKey{state.StepSkills}, pending)
}

func TestPendingSteps_AllSatisfiedYieldsEmpty(t *testing.T) {
	s := newState()
	for _, key := range state.AllSteps() {
		s.StepResults[key] = okResult()
	}

	assert.Empty(t, PendingSteps(s, state.AllSteps()))
}

func TestShouldAggregate_GateCorrectness(t *testing.T) {
	t.Run("zero slots", func(t *testing.T) {
		assert.False(t, ShouldAggregate(newState()))
	})

	t.Run("one slot", func(t *testing.T) {
		s := newState()
		s.StepResults[state.StepSkills] = okResult()
		assert.True(t, ShouldAggregate(s))
	})

	t.Run("errored slot still counts as ran", func(t *testing.T) {
		s := newState()
		s.StepResults[state.StepSkills] = &state.StepResult{Error: "boom"}
		assert.True(t, ShouldAggregate(s))
	})

	t.Run("all slots", func(t *testing.T) {
		s := newState()
		for _, key := range state.AllSteps() {
			s.StepResults[key] = okResult()
		}
		assert.True(t, ShouldAggregate(s))
	})

	t.Run("nil slot entries do not count", func(t *testing.T) {
		s := newState()
		s.StepResults[state.StepSkills] = nil
		assert.False(t, ShouldAggregate(s))
	})
}
