// Package engine drives one job's extraction workflow to completion or to
// a safe partial-result stop. It sequences document loading, routing,
// concurrent step execution, the fan-in gate, and aggregation, and
// checkpoints workflow state after every phase transition so a re-invoked
// job only redoes genuinely pending work.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/jobflow/internal/checkpoint"
	"github.com/fyrsmithlabs/jobflow/internal/router"
	"github.com/fyrsmithlabs/jobflow/internal/state"
	"github.com/fyrsmithlabs/jobflow/internal/steps"
)

const instrumentationName = "github.com/fyrsmithlabs/jobflow/internal/engine"

// Phase is a state of the per-job execution machine.
type Phase string

const (
	PhaseLoading      Phase = "loading"
	PhaseRouting      Phase = "routing"
	PhaseRunningSteps Phase = "running_steps"
	PhaseGateCheck    Phase = "gate_check"
	PhaseAggregating  Phase = "aggregating"
	PhaseDone         Phase = "done"
	PhaseFailed       Phase = "failed"
)

// ErrUnreadableDocument is returned when document validation fails. It is
// fatal for the job: no extraction step runs without a readable document,
// and the engine never retries loading on its own.
var ErrUnreadableDocument = errors.New("document is not readable")

// Engine executes extraction jobs. One Run call handles one pass over one
// job; the engine holds no per-job state between calls, so a single
// instance serves many jobs as long as the caller does not run two passes
// for the same job id concurrently.
type Engine struct {
	registry   steps.Registry
	loader     steps.DocumentLoader
	aggregator steps.Aggregator
	store      checkpoint.Store
	logger     *zap.Logger

	tracer         trace.Tracer
	meter          metric.Meter
	jobCounter     metric.Int64Counter
	stepCounter    metric.Int64Counter
	stepErrCounter metric.Int64Counter
}

// New creates an engine. All collaborators are injected; none may be nil
// except the logger.
func New(registry steps.Registry, loader steps.DocumentLoader, aggregator steps.Aggregator, store checkpoint.Store, logger *zap.Logger) (*Engine, error) {
	if len(registry) == 0 {
		return nil, errors.New("step registry is required")
	}
	if loader == nil {
		return nil, errors.New("document loader is required")
	}
	if aggregator == nil {
		return nil, errors.New("aggregator is required")
	}
	if store == nil {
		return nil, errors.New("checkpoint store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		registry:   registry,
		loader:     loader,
		aggregator: aggregator,
		store:      store,
		logger:     logger,
		tracer:     otel.Tracer(instrumentationName),
		meter:      otel.Meter(instrumentationName),
	}
	e.initMetrics()
	return e, nil
}

func (e *Engine) initMetrics() {
	var err error

	e.jobCounter, err = e.meter.Int64Counter(
		"jobflow.engine.runs_total",
		metric.WithDescription("Total number of engine passes"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		e.logger.Warn("failed to create run counter", zap.Error(err))
	}

	e.stepCounter, err = e.meter.Int64Counter(
		"jobflow.engine.steps_total",
		metric.WithDescription("Total number of extraction steps executed"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		e.logger.Warn("failed to create step counter", zap.Error(err))
	}

	e.stepErrCounter, err = e.meter.Int64Counter(
		"jobflow.engine.step_errors_total",
		metric.WithDescription("Total number of steps that exhausted all attempts"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		e.logger.Warn("failed to create step error counter", zap.Error(err))
	}
}

// Run executes one pass for the job. It loads any checkpointed state for
// the id, so repeated calls with the same id are idempotent: completed
// slots are never redone and loading is skipped once the document is known
// readable. Only load failures and checkpoint I/O failures return errors;
// step failures are absorbed into the state's slots.
//
// initial supplies the document reference and hints on first invocation.
// On resume its hints are merged (shallow, new keys win) into the
// checkpointed state; its other fields are ignored.
func (e *Engine) Run(ctx context.Context, jobID string, initial *state.WorkflowState) (*state.WorkflowState, error) {
	ctx, span := e.tracer.Start(ctx, "engine.run", trace.WithAttributes(
		attribute.String("job_id", jobID),
	))
	defer span.End()

	logger := e.logger.With(zap.String("job_id", jobID))

	ws, resumed, err := e.loadState(ctx, jobID, initial)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Bool("resumed", resumed))

	// LOADING. Skipped entirely once the document is known readable; a
	// failure here is a hard gate for the whole job.
	if ws.DocumentInfo == nil || !ws.DocumentInfo.IsReadable {
		logger.Info("validating document",
			zap.String("location", ws.DocumentRef.Location),
			zap.String("media_type", ws.DocumentRef.MediaType),
		)
		info, loadErr := e.loader.LoadAndValidate(ctx, ws.DocumentRef)
		if loadErr != nil || !info.IsReadable {
			if loadErr == nil {
				loadErr = ErrUnreadableDocument
			}
			e.countRun(ctx, string(PhaseFailed))
			span.RecordError(loadErr)
			span.SetStatus(codes.Error, loadErr.Error())
			logger.Error("document validation failed", zap.Error(loadErr))
			// Best effort: the load error takes precedence over a save error.
			if saveErr := e.store.Save(ctx, jobID, ws); saveErr != nil {
				logger.Warn("failed to checkpoint failed job", zap.Error(saveErr))
			}
			return ws, fmt.Errorf("%w: %s", ErrUnreadableDocument, loadErr)
		}
		ws.Apply(state.Delta{DocumentInfo: &info})
	}
	if err := e.save(ctx, jobID, ws, PhaseLoading); err != nil {
		return nil, err
	}

	// ROUTING.
	pending := router.PendingSteps(ws, e.registry.Keys())
	logger.Info("routed pending steps", zap.Int("pending", len(pending)))

	// RUNNING_STEPS.
	if len(pending) > 0 {
		for _, d := range e.runSteps(ctx, pending, ws) {
			ws.Apply(d)
		}
		if err := e.save(ctx, jobID, ws, PhaseRunningSteps); err != nil {
			return nil, err
		}
	}

	// GATE_CHECK. Evaluated once, after all branches settle.
	if !router.ShouldAggregate(ws) {
		logger.Warn("no step produced any result, skipping aggregation")
		e.countRun(ctx, string(PhaseDone))
		if err := e.save(ctx, jobID, ws, PhaseGateCheck); err != nil {
			return nil, err
		}
		return ws, nil
	}

	// AGGREGATING. Always transitions to done; an aggregator error becomes
	// a validation verdict rather than a job failure.
	record, validation, aggErr := e.aggregator.Aggregate(ctx, ws.PopulatedSlots())
	if aggErr != nil {
		logger.Error("aggregation failed", zap.Error(aggErr))
		ws.Apply(state.Delta{Validation: &state.Validation{
			IsValid: false,
			Issues:  []string{fmt.Sprintf("aggregation failed: %v", aggErr)},
		}})
	} else {
		ws.Apply(state.Delta{FinalRecord: record, Validation: validation})
	}
	if err := e.save(ctx, jobID, ws, PhaseAggregating); err != nil {
		return nil, err
	}

	e.countRun(ctx, string(PhaseDone))
	logger.Info("job pass complete",
		zap.Bool("has_final_record", ws.FinalRecord != nil),
		zap.Bool("is_valid", ws.Validation != nil && ws.Validation.IsValid),
	)
	return ws, nil
}

// loadState resolves the state for a pass: the checkpoint when one exists
// (with any fresh hints merged in), otherwise the caller's initial state.
func (e *Engine) loadState(ctx context.Context, jobID string, initial *state.WorkflowState) (*state.WorkflowState, bool, error) {
	ws, err := e.store.Load(ctx, jobID)
	switch {
	case err == nil:
		if initial != nil && len(initial.Hints) > 0 {
			ws.Apply(state.Delta{Hints: initial.Hints})
		}
		return ws, true, nil
	case errors.Is(err, checkpoint.ErrNotFound):
		if initial == nil {
			return nil, false, fmt.Errorf("job %q has no checkpoint and no initial state", jobID)
		}
		fresh := state.New(initial.DocumentRef, initial.Hints)
		return fresh, false, nil
	default:
		return nil, false, fmt.Errorf("load checkpoint for job %q: %w", jobID, err)
	}
}

// runSteps executes the pending steps concurrently and returns their
// deltas sorted by step key. The join is a barrier: one step's failure
// never cancels its siblings, and state is mutated only after the join by
// the single-writer merge in Run, so no per-slot locking is needed.
func (e *Engine) runSteps(ctx context.Context, pending []state.StepKey, ws *state.WorkflowState) []state.Delta {
	results := make(chan state.Delta, len(pending))
	var wg sync.WaitGroup

	for _, key := range pending {
		step, ok := e.registry[key]
		if !ok {
			continue
		}
		wg.Add(1)
		go func(s steps.Step) {
			defer wg.Done()
			e.countStep(ctx, string(s.Key()))
			d := s.Run(ctx, ws)
			if slot := d.StepResults[s.Key()]; slot.Failed() {
				e.countStepError(ctx, string(s.Key()))
			}
			results <- d
		}(step)
	}

	wg.Wait()
	close(results)

	deltas := make([]state.Delta, 0, len(pending))
	for d := range results {
		deltas = append(deltas, d)
	}
	sort.Slice(deltas, func(i, j int) bool {
		return firstKey(deltas[i]) < firstKey(deltas[j])
	})
	return deltas
}

// firstKey returns the slot key a step delta writes. Deltas from steps
// touch exactly one slot.
func firstKey(d state.Delta) state.StepKey {
	for k := range d.StepResults {
		return k
	}
	return ""
}

// save checkpoints the state after a phase transition. A save failure is
// a job-infra error and propagates to the caller.
func (e *Engine) save(ctx context.Context, jobID string, ws *state.WorkflowState, after Phase) error {
	if err := e.store.Save(ctx, jobID, ws); err != nil {
		e.logger.Error("checkpoint save failed",
			zap.String("job_id", jobID),
			zap.String("after_phase", string(after)),
			zap.Error(err),
		)
		return fmt.Errorf("checkpoint save after %s: %w", after, err)
	}
	return nil
}

func (e *Engine) countRun(ctx context.Context, outcome string) {
	if e.jobCounter != nil {
		e.jobCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

func (e *Engine) countStep(ctx context.Context, key string) {
	if e.stepCounter != nil {
		e.stepCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("step", key)))
	}
}

func (e *Engine) countStepError(ctx context.Context, key string) {
	if e.stepErrCounter != nil {
		e.stepErrCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("step", key)))
	}
}
