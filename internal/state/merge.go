package state

// Strategy is the merge strategy a state field declares for partial
// updates. Two strategies exist: Replace (last write wins) and
// ShallowMergeMap (object union, incoming keys override).
type Strategy int

const (
	// Replace overwrites the previous value with the incoming one.
	Replace Strategy = iota

	// ShallowMergeMap unions map keys, incoming values winning per key.
	ShallowMergeMap
)

// FieldStrategies documents the strategy declared by each mutable state
// field. DocumentRef carries no strategy: it is immutable once set.
var FieldStrategies = map[string]Strategy{
	"hints":         ShallowMergeMap,
	"document_info": Replace,
	"step_results":  Replace, // per slot
	"final_record":  Replace,
	"validation":    Replace,
}

// Delta is a partial state update returned by a step or router pass. Nil
// fields leave the corresponding state field untouched.
type Delta struct {
	Hints        map[string]string
	DocumentInfo *DocumentInfo
	StepResults  map[StepKey]*StepResult
	FinalRecord  *JobRecord
	Validation   *Validation
}

// Empty reports whether applying the delta would change nothing.
func (d Delta) Empty() bool {
	return d.Hints == nil && d.DocumentInfo == nil && d.StepResults == nil &&
		d.FinalRecord == nil && d.Validation == nil
}

// Apply merges a delta into the state using each field's declared
// strategy. Hints shallow-merge; everything else replaces, step results
// per slot. Apply is the single mutation path for workflow state: the
// engine serializes calls per job, so no locking happens here.
func (s *WorkflowState) Apply(d Delta) {
	if d.Hints != nil {
		if s.Hints == nil {
			s.Hints = make(map[string]string, len(d.Hints))
		}
		for k, v := range d.Hints {
			s.Hints[k] = v
		}
	}
	if d.DocumentInfo != nil {
		s.DocumentInfo = d.DocumentInfo
	}
	if d.StepResults != nil {
		if s.StepResults == nil {
			s.StepResults = make(map[StepKey]*StepResult, len(d.StepResults))
		}
		for k, r := range d.StepResults {
			s.StepResults[k] = r
		}
	}
	if d.FinalRecord != nil {
		s.FinalRecord = d.FinalRecord
	}
	if d.Validation != nil {
		s.Validation = d.Validation
	}
}
