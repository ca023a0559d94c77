// Package steps defines the step contract for the extraction workflow and
// the collaborator interfaces the engine depends on. The workflow graph is
// a static registry of step key to step implementation rather than a
// fluent node/edge builder: the graph shape never changes at runtime, so
// the registry plus the router's pure decisions fully describe it.
package steps

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/jobflow/internal/retry"
	"github.com/fyrsmithlabs/jobflow/internal/state"
)

// DocumentLoader confirms a document is readable and estimates its page
// count. Implementations must be deterministic for the same document and
// side-effect-free beyond read I/O.
type DocumentLoader interface {
	LoadAndValidate(ctx context.Context, ref state.DocumentRef) (state.DocumentInfo, error)
}

// Extractor performs one AI-backed extraction over the document. The
// retry wrapper may invoke it several times per job, so calls must be
// safe to repeat without external side effects.
type Extractor interface {
	Extract(ctx context.Context, ref state.DocumentRef, hints map[string]string) (json.RawMessage, state.EvaluationScore, error)
}

// Aggregator merges the populated step slots into the final record plus
// its validation verdict. It is a pure function of the slots.
type Aggregator interface {
	Aggregate(ctx context.Context, results map[state.StepKey]*state.StepResult) (*state.JobRecord, *state.Validation, error)
}

// Step is one independent unit of extraction work. It reads shared
// immutable inputs (document reference, hints) and returns a delta that
// writes only its own slot, so sibling steps can run concurrently.
type Step interface {
	Key() state.StepKey
	Run(ctx context.Context, s *state.WorkflowState) state.Delta
}

// ExtractionStep adapts an Extractor into a Step, gating acceptance on
// the quality score through the retry wrapper. A step that fails all
// attempts records the error in its slot instead of failing the job.
type ExtractionStep struct {
	key       state.StepKey
	extractor Extractor
	policy    retry.Policy
	logger    *zap.Logger
}

// NewExtractionStep creates a step for the given key and extractor.
func NewExtractionStep(key state.StepKey, extractor Extractor, policy retry.Policy, logger *zap.Logger) *ExtractionStep {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExtractionStep{
		key:       key,
		extractor: extractor,
		policy:    policy,
		logger:    logger.With(zap.String("step", string(key))),
	}
}

// Key returns the step's slot key.
func (s *ExtractionStep) Key() state.StepKey { return s.key }

// Run executes the extraction under the quality gate and returns the
// slot update. The returned delta touches only this step's slot.
func (s *ExtractionStep) Run(ctx context.Context, ws *state.WorkflowState) state.Delta {
	data, eval, err := retry.Do(ctx, func(ctx context.Context) (json.RawMessage, state.EvaluationScore, error) {
		return s.extractor.Extract(ctx, ws.DocumentRef, ws.Hints)
	}, s.policy, s.logger)

	if err != nil {
		s.logger.Warn("step exhausted all attempts", zap.Error(err))
		return state.Delta{StepResults: map[state.StepKey]*state.StepResult{
			s.key: {Error: err.Error()},
		}}
	}

	return state.Delta{StepResults: map[state.StepKey]*state.StepResult{
		s.key: {Data: data, Evaluation: eval},
	}}
}

// Registry is the static step specification: one entry per step key.
type Registry map[state.StepKey]Step

// NewRegistry builds the registry from per-step extractors.
func NewRegistry(extractors map[state.StepKey]Extractor, policy retry.Policy, logger *zap.Logger) Registry {
	reg := make(Registry, len(extractors))
	for key, ex := range extractors {
		reg[key] = NewExtractionStep(key, ex, policy, logger)
	}
	return reg
}

// Keys returns the registered step keys in canonical order.
func (r Registry) Keys() []state.StepKey {
	keys := make([]state.StepKey, 0, len(r))
	for _, key := range state.AllSteps() {
		if _, ok := r[key]; ok {
			keys = append(keys, key)
		}
	}
	return keys
}
