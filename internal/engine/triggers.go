package engine

import (
	"context"
	"log/slog"
)

// Triggers selects the operations a CI run performs.
type Triggers struct {
	Update         bool
	Build          bool
	CreateSnapshot bool
	DeleteSnapshot bool

	// SnapshotName is required when either snapshot trigger is set.
	SnapshotName string
}

// Any reports whether at least one operation is enabled.
func (t Triggers) Any() bool {
	return t.Update || t.Build || t.CreateSnapshot || t.DeleteSnapshot
}

// RunTriggers runs the enabled operations in the fixed order update, build,
// create snapshot, delete snapshot, stopping at the first failure. The
// reports of the operations that ran are returned, including the failed one.
//
// A missing snapshot name is detected before any operation runs.
func (e *Engine) RunTriggers(ctx context.Context, t Triggers) ([]Report, error) {
	if t.SnapshotName == "" {
		switch {
		case t.CreateSnapshot:
			return nil, newMissingSnapshotNameError(OpCreateSnapshot)
		case t.DeleteSnapshot:
			return nil, newMissingSnapshotNameError(OpDeleteSnapshot)
		}
	}

	slog.Info("triggers",
		slog.Bool("update", t.Update),
		slog.Bool("build", t.Build),
		slog.Bool("create_snapshot", t.CreateSnapshot),
		slog.Bool("delete_snapshot", t.DeleteSnapshot))

	steps := []struct {
		enabled bool
		run     func(context.Context) (Report, error)
	}{
		{t.Update, e.Update},
		{t.Build, e.Build},
		{t.CreateSnapshot, func(ctx context.Context) (Report, error) {
			return e.CreateSnapshot(ctx, t.SnapshotName)
		}},
		{t.DeleteSnapshot, func(ctx context.Context) (Report, error) {
			return e.DeleteSnapshot(ctx, t.SnapshotName)
		}},
	}

	reports := []Report{}
	for _, step := range steps {
		if !step.enabled {
			continue
		}
		rep, err := step.run(ctx)
		reports = append(reports, rep)
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}
