package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrRunNotFound is returned by ReadRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

type rowScanner interface {
	Scan(dest ...any) error
}

// ListRuns returns the most recent runs, newest first. A limit of zero or
// less returns every run.
//
// Returns an empty slice (not nil) if the journal is empty.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, command, started_at, finished_at, status, error, details
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun retrieves a single run by id.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, command, started_at, finished_at, status, error, details
		FROM runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// ReadOperations returns a run's operations in seq order.
//
// Returns an empty slice (not nil) if the run recorded nothing.
func (s *Store) ReadOperations(ctx context.Context, runID string) ([]Operation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, kind, target, remote_id, digest, status, error
		FROM operations
		WHERE run_id = ?
		ORDER BY seq ASC, id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	ops := []Operation{}
	for rows.Next() {
		var op Operation
		if err := rows.Scan(&op.RunID, &op.Seq, &op.Kind, &op.Target, &op.RemoteID, &op.Digest, &op.Status, &op.Error); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}
	return ops, nil
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run      Run
		started  int64
		finished sql.NullInt64
		details  string
	)
	if err := row.Scan(&run.ID, &run.Command, &started, &finished, &run.Status, &run.Error, &details); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	run.StartedAt = time.Unix(started, 0).UTC()
	if finished.Valid {
		run.FinishedAt = time.Unix(finished.Int64, 0).UTC()
	}

	d, err := unmarshalDetails(details)
	if err != nil {
		return Run{}, err
	}
	run.Details = d
	return run, nil
}
