package retry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/jobflow/internal/state"
)

// scriptedAttempt returns values and scores in sequence across calls.
func scriptedAttempt(scores []float64, errs []error) (Attempt[string], *int) {
	calls := 0
	counter := &calls
	return func(ctx context.Context) (string, state.EvaluationScore, error) {
		i := calls
		calls++
		if errs != nil && i < len(errs) && errs[i] != nil {
			return "", state.EvaluationScore{}, errs[i]
		}
		score := scores[i]
		return "result", state.EvaluationScore{Relevance: score}, nil
	}, counter
}

func TestDo_ReturnsImmediatelyOnThreshold(t *testing.T) {
	attempt, calls := scriptedAttempt([]float64{0.9}, nil)

	val, eval, err := Do(context.Background(), attempt, Policy{MaxRetries: 3, MinScore: 0.7}, nil)

	require.NoError(t, err)
	assert.Equal(t, "result", val)
	assert.Equal(t, 0.9, eval.Relevance)
	assert.Equal(t, 1, *calls)
}

func TestDo_BestEffortAcrossRetries(t *testing.T) {
	attempt, calls := scriptedAttempt([]float64{0.3, 0.5, 0.9}, nil)

	_, eval, err := Do(context.Background(), attempt, Policy{MaxRetries: 2, MinScore: 0.7}, nil)

	require.NoError(t, err)
	assert.Equal(t, 0.9, eval.Relevance)
	assert.Equal(t, 3, *calls)
}

func TestDo_GiveUpReturnsBestSoFar(t *testing.T) {
	attempt, calls := scriptedAttempt([]float64{0.2, 0.4}, nil)

	_, eval, err := Do(context.Background(), attempt, Policy{MaxRetries: 1, MinScore: 0.7}, nil)

	require.NoError(t, err)
	assert.Equal(t, 0.4, eval.Relevance)
	assert.Equal(t, 2, *calls)
}

func TestDo_LaterErrorKeepsEarlierResult(t *testing.T) {
	attempt, _ := scriptedAttempt(
		[]float64{0.5, 0, 0},
		[]error{nil, errors.New("timeout"), errors.New("timeout")},
	)

	_, eval, err := Do(context.Background(), attempt, Policy{MaxRetries: 2, MinScore: 0.7}, nil)

	require.NoError(t, err)
	assert.Equal(t, 0.5, eval.Relevance)
}

func TestDo_AllErrorsPropagateLast(t *testing.T) {
	last := errors.New("last failure")
	attempt, calls := scriptedAttempt(
		[]float64{0, 0},
		[]error{errors.New("first failure"), last},
	)

	_, _, err := Do(context.Background(), attempt, Policy{MaxRetries: 1, MinScore: 0.7}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, last)
	assert.Equal(t, 2, *calls)
}

func TestDo_ContextCancellationDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempt, _ := scriptedAttempt([]float64{0, 0}, []error{errors.New("boom"), nil})

	_, _, err := Do(ctx, attempt, Policy{MaxRetries: 1, MinScore: 0.7, BaseBackoff: 10}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
