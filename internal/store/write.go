package store

import (
	"context"
	"fmt"
	"time"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Operation statuses.
const (
	OpApplied = "applied"
	OpFailed  = "failed"
)

// Run is one invocation of a top-level operation.
type Run struct {
	ID         string
	Command    string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Status     string
	Error      string
	Details    map[string]any
}

// Operation is one remote mutation attempted by a run.
type Operation struct {
	RunID    string
	Seq      int64
	Kind     string
	Target   string
	RemoteID string
	Digest   string
	Status   string
	Error    string
}

// BeginRun records the start of a run.
// Uses ON CONFLICT(id) DO NOTHING - beginning the same run twice is a no-op.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	details, err := marshalDetails(run.Details)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, command, started_at, status, details)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Command,
		run.StartedAt.Unix(),
		RunRunning,
		details,
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// FinishRun closes a run with its final status. Details replace whatever
// was recorded at BeginRun.
func (s *Store) FinishRun(ctx context.Context, runID, status, errMsg string, at time.Time, details map[string]any) error {
	encoded, err := marshalDetails(details)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, status = ?, error = ?, details = ?
		WHERE id = ?
	`, at.Unix(), status, errMsg, encoded, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run: unknown run %q", runID)
	}
	return nil
}

// RecordOperation appends an operation to its run.
// The run must exist (foreign key constraint). A second record with the same
// (run_id, seq) is silently ignored.
func (s *Store) RecordOperation(ctx context.Context, op Operation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operations
		(run_id, seq, kind, target, remote_id, digest, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		op.RunID,
		op.Seq,
		op.Kind,
		op.Target,
		op.RemoteID,
		op.Digest,
		op.Status,
		op.Error,
	)
	if err != nil {
		return fmt.Errorf("record operation: %w", err)
	}
	return nil
}
