package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/fyrsmithlabs/jobflow/internal/state"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	job_id     TEXT PRIMARY KEY,
	state      BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL
);`

// SQLiteStore is a durable Store backed by a local sqlite database, so
// resumed invocations survive process restarts.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (creating if needed) the database at path and
// ensures the checkpoint schema exists. Use ":memory:" for tests.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint database: %w", err)
	}
	// Single writer keeps read-your-writes trivial per job id.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply checkpoint schema: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Load returns the checkpointed state for a job, or ErrNotFound.
func (s *SQLiteStore) Load(ctx context.Context, jobID string) (*state.WorkflowState, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM checkpoints WHERE job_id = ?`, jobID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %q: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	var ws state.WorkflowState
	if err := json.Unmarshal(raw, &ws); err != nil {
		return nil, fmt.Errorf("decode checkpoint for job %q: %w", jobID, err)
	}
	if ws.StepResults == nil {
		ws.StepResults = make(map[state.StepKey]*state.StepResult)
	}
	return &ws, nil
}

// Save upserts the state for a job.
func (s *SQLiteStore) Save(ctx context.Context, jobID string, ws *state.WorkflowState) error {
	raw, err := json.Marshal(ws)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (job_id, state, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (job_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		jobID, raw, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	s.logger.Debug("saved checkpoint", zap.String("job_id", jobID), zap.Int("bytes", len(raw)))
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
