package extractor

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/jobflow/internal/state"
)

// RecordAggregator folds the step slots into one JobRecord and validates
// the result. Missing or errored slots become validation issues rather
// than errors: a partial record is still a record.
type RecordAggregator struct {
	logger *zap.Logger
}

// NewRecordAggregator creates the default aggregator.
func NewRecordAggregator(logger *zap.Logger) *RecordAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordAggregator{logger: logger}
}

// Aggregate builds the final record from whatever slots carry data.
func (a *RecordAggregator) Aggregate(_ context.Context, results map[state.StepKey]*state.StepResult) (*state.JobRecord, *state.Validation, error) {
	record := &state.JobRecord{}
	validation := &state.Validation{IsValid: true}

	for _, key := range state.AllSteps() {
		slot := results[key]
		if slot == nil {
			a.flag(validation, fmt.Sprintf("%s extraction missing", key))
			continue
		}
		if slot.Failed() {
			a.flag(validation, fmt.Sprintf("%s extraction failed: %s", key, slot.Error))
			continue
		}
		if err := a.decodeSlot(key, slot.Data, record); err != nil {
			a.flag(validation, fmt.Sprintf("%s payload malformed: %v", key, err))
			continue
		}
		for _, issue := range slot.Evaluation.Issues {
			validation.Issues = append(validation.Issues, fmt.Sprintf("%s: %s", key, issue))
		}
	}

	if record.Metadata.Title == "" {
		a.flag(validation, "job title could not be determined")
	}
	if len(record.Skills.Required) == 0 && len(record.Skills.Preferred) == 0 {
		validation.Issues = append(validation.Issues, "no skills extracted")
	}

	a.logger.Debug("aggregated job record",
		zap.Bool("valid", validation.IsValid),
		zap.Int("issues", len(validation.Issues)))
	return record, validation, nil
}

func (a *RecordAggregator) decodeSlot(key state.StepKey, data json.RawMessage, record *state.JobRecord) error {
	switch key {
	case state.StepMetadata:
		return json.Unmarshal(data, &record.Metadata)
	case state.StepSkills:
		return json.Unmarshal(data, &record.Skills)
	case state.StepRequirements:
		return json.Unmarshal(data, &record.Requirements)
	default:
		return fmt.Errorf("unknown step %q", key)
	}
}

// flag records an issue that invalidates the record.
func (a *RecordAggregator) flag(v *state.Validation, issue string) {
	v.IsValid = false
	v.Issues = append(v.Issues, issue)
}
