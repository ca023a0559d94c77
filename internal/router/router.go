// Package router decides which extraction steps must still run for a job
// (idempotent fan-out) and whether enough step results exist to aggregate
// (fan-in gate). Both decisions are pure functions of workflow state, so
// re-invoking a job after a partial failure only redoes the failed pieces.
package router

import "github.com/fyrsmithlabs/jobflow/internal/state"

// PendingSteps returns the steps that must run given the current state.
// A step is pending when its slot is empty or carries a recorded error.
// On fresh state every slot is empty, so the full step set fans out; the
// first-run default falls out of slot emptiness rather than a separate
// freshness flag.
func PendingSteps(s *state.WorkflowState, all []state.StepKey) []state.StepKey {
	pending := make([]state.StepKey, 0, len(all))
	for _, key := range all {
		slot := s.Slot(key)
		if slot == nil || slot.Failed() {
			pending = append(pending, key)
		}
	}
	return pending
}

// ShouldAggregate reports whether aggregation is eligible: true iff at
// least one step slot is populated. A slot with only a recorded error
// still counts — "ran" is what matters, not "succeeded". All-empty slots
// signal systemic document-loading failure upstream and skip aggregation.
//
// The gate is evaluated once per pass, after all fan-out branches settle,
// so aggregation runs at most once per job pass.
func ShouldAggregate(s *state.WorkflowState) bool {
	for _, r := range s.StepResults {
		if r != nil {
			return true
		}
	}
	return false
}
