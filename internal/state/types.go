package state

import "encoding/json"

// StepKey identifies one independent extraction step.
type StepKey string

const (
	// StepMetadata extracts title, company, location, and employment terms.
	StepMetadata StepKey = "metadata"

	// StepSkills extracts required and preferred skills.
	StepSkills StepKey = "skills"

	// StepRequirements extracts education, experience, and responsibilities.
	StepRequirements StepKey = "requirements"
)

// AllSteps returns the extraction step keys in canonical order.
func AllSteps() []StepKey {
	return []StepKey{StepMetadata, StepSkills, StepRequirements}
}

// DocumentRef locates the input document. Immutable once set.
type DocumentRef struct {
	Location  string `json:"location"`
	MediaType string `json:"media_type"`
}

// DocumentInfo is the document-validation result.
type DocumentInfo struct {
	PageCount  int  `json:"page_count"`
	IsReadable bool `json:"is_readable"`
}

// EvaluationScore is the quality evaluation produced by an extractor
// alongside its data. All scores are in [0,1]. Only Relevance is used as
// the acceptance signal by the retry wrapper.
type EvaluationScore struct {
	Relevance    float64  `json:"relevance"`
	Confidence   float64  `json:"confidence"`
	Grounding    float64  `json:"grounding"`
	Completeness float64  `json:"completeness"`
	Issues       []string `json:"issues,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

// StepResult is one step's slot. A populated slot carries either extracted
// data with the evaluation that justified accepting it (possibly below the
// target threshold, if retries exhausted), or a recorded error.
type StepResult struct {
	Data       json.RawMessage `json:"data,omitempty"`
	Evaluation EvaluationScore `json:"evaluation"`
	Error      string          `json:"error,omitempty"`
}

// Failed reports whether the slot recorded an error instead of data.
func (r *StepResult) Failed() bool {
	return r != nil && r.Error != ""
}

// Metadata is the typed payload of the metadata step.
type Metadata struct {
	Title          string `json:"title"`
	Company        string `json:"company,omitempty"`
	Location       string `json:"location,omitempty"`
	EmploymentType string `json:"employment_type,omitempty"`
	Seniority      string `json:"seniority,omitempty"`
	SalaryRange    string `json:"salary_range,omitempty"`
}

// SkillSet is the typed payload of the skills step.
type SkillSet struct {
	Required  []string `json:"required,omitempty"`
	Preferred []string `json:"preferred,omitempty"`
}

// Requirements is the typed payload of the requirements step.
type Requirements struct {
	Education        string   `json:"education,omitempty"`
	ExperienceYears  string   `json:"experience_years,omitempty"`
	Responsibilities []string `json:"responsibilities,omitempty"`
}

// JobRecord is the aggregated output of a job. Absent until aggregation.
type JobRecord struct {
	Metadata     Metadata     `json:"metadata"`
	Skills       SkillSet     `json:"skills"`
	Requirements Requirements `json:"requirements"`
}

// Validation is the cross-field consistency verdict written alongside the
// final record. IsValid=false is a data-quality verdict, not a failure.
type Validation struct {
	IsValid bool     `json:"is_valid"`
	Issues  []string `json:"issues,omitempty"`
}

// WorkflowState is the single mutable record passed through the graph.
// One instance exists per job; it is never shared across jobs.
type WorkflowState struct {
	DocumentRef  DocumentRef             `json:"document_ref"`
	Hints        map[string]string       `json:"hints,omitempty"`
	DocumentInfo *DocumentInfo           `json:"document_info,omitempty"`
	StepResults  map[StepKey]*StepResult `json:"step_results,omitempty"`
	FinalRecord  *JobRecord              `json:"final_record,omitempty"`
	Validation   *Validation             `json:"validation,omitempty"`
}

// New creates an empty state for the given document reference.
func New(ref DocumentRef, hints map[string]string) *WorkflowState {
	return &WorkflowState{
		DocumentRef: ref,
		Hints:       hints,
		StepResults: make(map[StepKey]*StepResult),
	}
}

// Slot returns the result slot for a step, or nil when the slot is empty.
func (s *WorkflowState) Slot(key StepKey) *StepResult {
	if s.StepResults == nil {
		return nil
	}
	return s.StepResults[key]
}

// PopulatedSlots returns the non-empty slots keyed by step.
func (s *WorkflowState) PopulatedSlots() map[StepKey]*StepResult {
	out := make(map[StepKey]*StepResult, len(s.StepResults))
	for k, r := range s.StepResults {
		if r != nil {
			out[k] = r
		}
	}
	return out
}

// Clone returns a deep copy via JSON round-trip. Used by the checkpoint
// stores so callers never alias checkpointed state.
func (s *WorkflowState) Clone() (*WorkflowState, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out WorkflowState
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out.StepResults == nil {
		out.StepResults = make(map[StepKey]*StepResult)
	}
	return &out, nil
}
