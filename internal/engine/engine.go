package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/botsync/internal/auth"
	"github.com/roach88/botsync/internal/bot"
	"github.com/roach88/botsync/internal/loader"
	"github.com/roach88/botsync/internal/log"
	"github.com/roach88/botsync/internal/reconcile"
	"github.com/roach88/botsync/internal/store"
)

// Remote is the bot-builder service as seen by the orchestrator.
// Implemented by remote.Client.
type Remote interface {
	FetchFlows(ctx context.Context) ([]bot.RemoteFlow, error)
	CreateFlow(ctx context.Context, flow bot.Flow) (bot.RemoteFlow, error)
	UpdateFlow(ctx context.Context, flow bot.MergedFlow) (bot.RemoteFlow, error)
	DeleteFlow(ctx context.Context, flow bot.RemoteFlow) error
	ReplaceRules(ctx context.Context, rules bot.AiRuleSet) error
	TriggerBuild(ctx context.Context) error
	CreateSnapshot(ctx context.Context, name string) (bot.SnapshotLabel, error)
	DeleteSnapshot(ctx context.Context, name string) error
}

// Journal records runs and the mutations they apply. Implemented by
// store.Store. Journal failures are logged and never fail a run.
type Journal interface {
	BeginRun(ctx context.Context, run store.Run) error
	RecordOperation(ctx context.Context, op store.Operation) error
	FinishRun(ctx context.Context, runID, status, errMsg string, at time.Time, details map[string]any) error
}

// Top-level commands, as recorded in reports and the journal.
const (
	CommandUpdate         = "update"
	CommandBuild          = "build"
	CommandCreateSnapshot = "snapshot-create"
	CommandDeleteSnapshot = "snapshot-delete"
)

// Engine runs the sync operations against one remote bot.
//
// Thread-safety model: an Engine runs one operation at a time. Mutations
// are applied through a single-worker queue in a fixed order.
type Engine struct {
	remote    Remote
	clock     *Clock
	runGen    RunIDGenerator
	wall      auth.Clock
	journal   Journal
	flowsDir  string
	rulesFile string
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithJournal records every run in j.
func WithJournal(j Journal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithRunIDGenerator replaces the UUIDv7 run id generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		e.runGen = g
	}
}

// WithWallClock sets the clock used for journal timestamps.
func WithWallClock(c auth.Clock) Option {
	return func(e *Engine) {
		e.wall = c
	}
}

// WithFlowsDir sets the directory flows are loaded from.
func WithFlowsDir(dir string) Option {
	return func(e *Engine) {
		e.flowsDir = dir
	}
}

// WithRulesFile sets the AI rules file.
func WithRulesFile(path string) Option {
	return func(e *Engine) {
		e.rulesFile = path
	}
}

// New creates an Engine bound to remote.
func New(remote Remote, opts ...Option) *Engine {
	e := &Engine{
		remote:    remote,
		clock:     NewClock(),
		runGen:    UUIDv7Generator{},
		wall:      auth.SystemClock{},
		flowsDir:  loader.DefaultFlowsDir,
		rulesFile: loader.DefaultRulesFile,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Clock returns the clock stamping this engine's mutations.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// Update pushes the local definition to the remote bot: flows are fetched
// and reconciled, then the plan is applied as deletes, updates, creates, and
// finally the AI rules are replaced (even with an empty set).
//
// An invalid rules file is logged and replaced by an empty set. An
// unreadable flows directory aborts before any remote call. The first remote
// failure aborts the rest of the run; mutations already applied stay applied.
func (e *Engine) Update(ctx context.Context) (Report, error) {
	return e.update(ctx, false)
}

// DryRun computes the plan Update would apply without mutating the remote.
// It still fetches the remote flow list.
func (e *Engine) DryRun(ctx context.Context) (Report, error) {
	return e.update(ctx, true)
}

func (e *Engine) update(ctx context.Context, dryRun bool) (rep Report, err error) {
	runID := e.beginRun(ctx, CommandUpdate, map[string]any{"dry_run": dryRun})
	rep = Report{RunID: runID, Command: CommandUpdate, DryRun: dryRun}
	defer func() { e.finishRun(ctx, &rep, err) }()

	slog.Info("getting repository flows", log.RunID(runID), log.Path(e.flowsDir))
	flows := loader.LoadFlows(e.flowsDir)
	if flows.Err != nil {
		return rep, newLocalReadError(runID, flows.Err)
	}
	slog.Info("got repository flows", log.Count(len(flows.Flows)), slog.String("status", flows.Status.String()))

	slog.Info("getting AI rules", log.Path(e.rulesFile))
	rules := loader.LoadRules(e.rulesFile)
	rep.Rules = newRulesReport(rules)
	if rules.Err != nil {
		slog.Warn("invalid AI rules file, continuing with an empty rule set",
			log.Path(e.rulesFile), log.Error(rules.Err))
	} else {
		slog.Info("got AI rules", log.Count(rep.Rules.Count))
	}

	slog.Info("getting remote flows")
	remote, err := e.remote.FetchFlows(ctx)
	if err != nil {
		return rep, newFetchError(runID, err)
	}
	slog.Info("got remote flows", log.Count(len(remote)))

	plan, err := reconcile.Reconcile(flows.Flows, remote)
	if err != nil {
		return rep, err
	}
	summary := plan.Summary()
	rep.Summary = &summary
	rep.Changes, err = describePlan(plan, flows.Flows)
	if err != nil {
		return rep, err
	}

	if dryRun {
		slog.Info("dry run, nothing applied", slog.String("plan", summary.String()))
		return rep, nil
	}

	groups := []struct {
		kind   OpKind
		start  string
		finish string
		items  []workItem
	}{
		{OpDelete, "deleting removed flows", "deleted flows", e.deleteItems(plan.Delete)},
		{OpUpdate, "updating existing flows", "updated flows", e.updateItems(plan.Update, rep.Changes)},
		{OpCreate, "creating new flows", "created flows", e.createItems(plan.Create, rep.Changes)},
	}
	for _, g := range groups {
		slog.Info(g.start, log.Count(len(g.items)))
		if err := e.apply(ctx, &rep, g.items); err != nil {
			return rep, err
		}
		if len(g.items) > 0 {
			slog.Info(g.finish)
		}
	}

	slog.Info("updating AI rules", log.Count(rep.Rules.Count))
	ruleSet := rules.RulesOrEmpty()
	rulesItem := workItem{
		Kind:   OpReplaceRules,
		Digest: rep.Rules.Digest,
		Apply: func(ctx context.Context) (string, error) {
			return "", e.remote.ReplaceRules(ctx, ruleSet)
		},
	}
	if err := e.apply(ctx, &rep, []workItem{rulesItem}); err != nil {
		return rep, err
	}
	slog.Info("bot updated", slog.String("plan", summary.String()))
	return rep, nil
}

// Build asks the service to build the bot.
func (e *Engine) Build(ctx context.Context) (rep Report, err error) {
	runID := e.beginRun(ctx, CommandBuild, nil)
	rep = Report{RunID: runID, Command: CommandBuild}
	defer func() { e.finishRun(ctx, &rep, err) }()

	slog.Info("building bot", log.RunID(runID))
	item := workItem{
		Kind: OpBuild,
		Apply: func(ctx context.Context) (string, error) {
			return "", e.remote.TriggerBuild(ctx)
		},
	}
	if err := e.apply(ctx, &rep, []workItem{item}); err != nil {
		return rep, err
	}
	slog.Info("successfully built bot")
	return rep, nil
}

// CreateSnapshot labels the bot's current published state.
func (e *Engine) CreateSnapshot(ctx context.Context, name string) (rep Report, err error) {
	if name == "" {
		return Report{Command: CommandCreateSnapshot}, newMissingSnapshotNameError(OpCreateSnapshot)
	}
	runID := e.beginRun(ctx, CommandCreateSnapshot, map[string]any{"snapshot": name})
	rep = Report{RunID: runID, Command: CommandCreateSnapshot, Snapshot: name}
	defer func() { e.finishRun(ctx, &rep, err) }()

	slog.Info("creating snapshot", log.RunID(runID), log.Snapshot(name))
	item := workItem{
		Kind:   OpCreateSnapshot,
		Target: name,
		Apply: func(ctx context.Context) (string, error) {
			label, err := e.remote.CreateSnapshot(ctx, name)
			if err != nil {
				return "", err
			}
			rep.Snapshot = label.Name
			return "", nil
		},
	}
	if err := e.apply(ctx, &rep, []workItem{item}); err != nil {
		return rep, err
	}
	slog.Info("created snapshot", log.Snapshot(rep.Snapshot))
	return rep, nil
}

// DeleteSnapshot removes a snapshot label.
func (e *Engine) DeleteSnapshot(ctx context.Context, name string) (rep Report, err error) {
	if name == "" {
		return Report{Command: CommandDeleteSnapshot}, newMissingSnapshotNameError(OpDeleteSnapshot)
	}
	runID := e.beginRun(ctx, CommandDeleteSnapshot, map[string]any{"snapshot": name})
	rep = Report{RunID: runID, Command: CommandDeleteSnapshot, Snapshot: name}
	defer func() { e.finishRun(ctx, &rep, err) }()

	slog.Info("deleting snapshot", log.RunID(runID), log.Snapshot(name))
	item := workItem{
		Kind:   OpDeleteSnapshot,
		Target: name,
		Apply: func(ctx context.Context) (string, error) {
			return "", e.remote.DeleteSnapshot(ctx, name)
		},
	}
	if err := e.apply(ctx, &rep, []workItem{item}); err != nil {
		return rep, err
	}
	slog.Info("deleted snapshot", log.Snapshot(name))
	return rep, nil
}

// apply drains items through a single-worker queue. Each mutation takes the
// next seq from the logical clock and is journaled whether it succeeds or
// not.
func (e *Engine) apply(ctx context.Context, rep *Report, items []workItem) error {
	q := newWorkQueue(len(items))
	for _, it := range items {
		if err := q.Enqueue(it); err != nil {
			return err
		}
	}
	q.Close()

	_, err := q.Drain(ctx, func(ctx context.Context, it workItem) error {
		seq := e.clock.Next()
		slog.Debug("applying", log.Kind(it.Kind), log.FlowName(it.Target), log.Seq(seq))

		remoteID, err := it.Apply(ctx)
		if remoteID == "" {
			remoteID = it.RemoteID
		}
		op := store.Operation{
			RunID:    rep.RunID,
			Seq:      seq,
			Kind:     string(it.Kind),
			Target:   it.Target,
			RemoteID: remoteID,
			Digest:   it.Digest,
			Status:   store.OpApplied,
		}
		if err != nil {
			op.Status = store.OpFailed
			op.Error = err.Error()
		}
		e.recordOperation(ctx, op)

		if err != nil {
			slog.Error("remote call failed", log.Kind(it.Kind), log.FlowName(it.Target), log.Error(err))
			return NewApplyError(rep.RunID, it.Kind, it.Target, err)
		}
		rep.Applied++
		return nil
	})
	return err
}

func (e *Engine) deleteItems(flows []bot.RemoteFlow) []workItem {
	items := make([]workItem, 0, len(flows))
	for _, rf := range flows {
		items = append(items, workItem{
			Kind:     OpDelete,
			Target:   rf.Name,
			RemoteID: rf.ID,
			Apply: func(ctx context.Context) (string, error) {
				return rf.ID, e.remote.DeleteFlow(ctx, rf)
			},
		})
	}
	return items
}

func (e *Engine) updateItems(flows []bot.MergedFlow, changes []Change) []workItem {
	digests := digestsByName(changes, OpUpdate)
	items := make([]workItem, 0, len(flows))
	for _, mf := range flows {
		items = append(items, workItem{
			Kind:     OpUpdate,
			Target:   mf.Name,
			RemoteID: mf.ID,
			Digest:   digests[mf.Name],
			Apply: func(ctx context.Context) (string, error) {
				updated, err := e.remote.UpdateFlow(ctx, mf)
				return updated.ID, err
			},
		})
	}
	return items
}

func (e *Engine) createItems(flows []bot.Flow, changes []Change) []workItem {
	digests := digestsByName(changes, OpCreate)
	items := make([]workItem, 0, len(flows))
	for _, f := range flows {
		items = append(items, workItem{
			Kind:   OpCreate,
			Target: f.Name,
			Digest: digests[f.Name],
			Apply: func(ctx context.Context) (string, error) {
				created, err := e.remote.CreateFlow(ctx, f)
				return created.ID, err
			},
		})
	}
	return items
}

func (e *Engine) beginRun(ctx context.Context, command string, details map[string]any) string {
	runID := e.runGen.Generate()
	if e.journal == nil {
		return runID
	}
	run := store.Run{
		ID:        runID,
		Command:   command,
		StartedAt: e.wall.Now(),
		Details:   details,
	}
	if err := e.journal.BeginRun(ctx, run); err != nil {
		slog.Warn("journal: cannot record run start", log.RunID(runID), log.Error(err))
	}
	return runID
}

func (e *Engine) finishRun(ctx context.Context, rep *Report, runErr error) {
	if e.journal == nil {
		return
	}
	status, msg := store.RunSucceeded, ""
	if runErr != nil {
		status, msg = store.RunFailed, runErr.Error()
	}
	// The run's own context may already be cancelled; the journal entry
	// should still be closed.
	ctx = context.WithoutCancel(ctx)
	if err := e.journal.FinishRun(ctx, rep.RunID, status, msg, e.wall.Now(), rep.details()); err != nil {
		slog.Warn("journal: cannot record run end", log.RunID(rep.RunID), log.Error(err))
	}
}

func (e *Engine) recordOperation(ctx context.Context, op store.Operation) {
	if e.journal == nil {
		return
	}
	if err := e.journal.RecordOperation(context.WithoutCancel(ctx), op); err != nil {
		slog.Warn("journal: cannot record operation", log.RunID(op.RunID), log.Seq(op.Seq), log.Error(err))
	}
}
