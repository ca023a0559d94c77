// Package checkpoint persists workflow state keyed by job id. The engine
// saves a checkpoint after every state-machine transition, which is what
// makes partial retries cheap: a resumed invocation loads the checkpoint
// and only genuinely pending work repeats.
package checkpoint

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/jobflow/internal/state"
)

// ErrNotFound is returned by Load when no checkpoint exists for a job id.
var ErrNotFound = errors.New("checkpoint not found")

// Store persists workflow state per job id. Implementations must provide
// read-your-writes consistency for a single job id; no cross-job ordering
// is required. Jobs are retained until an external retention policy
// purges them — there is no in-engine deletion path.
type Store interface {
	// Load returns the checkpointed state for a job, or ErrNotFound.
	Load(ctx context.Context, jobID string) (*state.WorkflowState, error)

	// Save persists the state for a job, replacing any prior checkpoint.
	Save(ctx context.Context, jobID string, s *state.WorkflowState) error

	// Close releases the store's resources.
	Close() error
}
