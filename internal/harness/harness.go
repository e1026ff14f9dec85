package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/roach88/botsync/internal/auth"
	"github.com/roach88/botsync/internal/engine"
	"github.com/roach88/botsync/internal/loader"
	"github.com/roach88/botsync/internal/reconcile"
	"github.com/roach88/botsync/internal/remote"
	"github.com/roach88/botsync/internal/store"
	"github.com/roach88/botsync/internal/testutil"
)

// Credentials are the key pair shared by the harness client and its
// FakeStudio.
var Credentials = auth.Credentials{APIKey: "harness-key", APISecret: "harness-secret"}

// Epoch is the frozen wall-clock instant, in unix seconds, of every
// scenario.
const Epoch = 1700000000

// Harness is the test execution environment of one scenario.
type Harness struct {
	engine *engine.Engine
	studio *FakeStudio
}

// Run executes a test scenario and returns the result.
//
// Execution flow:
//  1. Write the local repository into a temporary directory
//  2. Start the fake remote with the scenario's initial state
//  3. Run the steps, checking each step's expectation
//  4. Evaluate the assertions against trace, remote state and journal
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "botsync-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	defer os.RemoveAll(dir)

	flowsDir := filepath.Join(dir, loader.DefaultFlowsDir)
	rulesFile := filepath.Join(dir, loader.DefaultRulesFile)
	if err := writeLocal(scenario.Local, flowsDir, rulesFile); err != nil {
		return nil, err
	}

	st, err := store.Open(store.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer st.Close()

	studio := NewFakeStudio(Credentials, scenario.Remote)
	srv := httptest.NewServer(studio)
	defer srv.Close()

	clock := testutil.NewFixedClockUnix(Epoch)
	signer, err := auth.NewSigner(Credentials, clock)
	if err != nil {
		return nil, err
	}
	client := remote.New(srv.URL, signer, srv.Client())

	h := &Harness{
		engine: engine.New(client,
			engine.WithJournal(st),
			engine.WithRunIDGenerator(testutil.NewSequenceRunIDGenerator(scenario.RunPrefix)),
			engine.WithWallClock(clock),
			engine.WithFlowsDir(flowsDir),
			engine.WithRulesFile(rulesFile),
		),
		studio: studio,
	}

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Steps {
		h.executeStep(ctx, i, step, result)
	}

	result.Trace = studio.Trace()
	result.Remote = studio.State()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions, &AssertionContext{Store: st, Ctx: ctx}) {
		result.AddError(msg)
	}
	return result, nil
}

func writeLocal(local LocalState, flowsDir, rulesFile string) error {
	if local.Flows != nil {
		if err := os.MkdirAll(flowsDir, 0o755); err != nil {
			return fmt.Errorf("failed to create flows directory: %w", err)
		}
		for name, content := range local.Flows {
			if err := os.WriteFile(filepath.Join(flowsDir, name), []byte(content), 0o644); err != nil {
				return fmt.Errorf("failed to write flow %s: %w", name, err)
			}
		}
	}
	if local.Rules != nil {
		if err := os.WriteFile(rulesFile, []byte(*local.Rules), 0o644); err != nil {
			return fmt.Errorf("failed to write rules: %w", err)
		}
	}
	return nil
}

// executeStep runs one step and records its reports and any expectation
// mismatch.
func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) {
	var (
		reports []engine.Report
		err     error
	)

	run := func(rep engine.Report, runErr error) {
		reports = append(reports, rep)
		err = runErr
	}

	switch step.Op {
	case OpUpdate:
		run(h.engine.Update(ctx))
	case OpDryRun:
		run(h.engine.DryRun(ctx))
	case OpBuild:
		run(h.engine.Build(ctx))
	case OpSnapshotCreate:
		run(h.engine.CreateSnapshot(ctx, step.Snapshot))
	case OpSnapshotDelete:
		run(h.engine.DeleteSnapshot(ctx, step.Snapshot))
	case OpTriggers:
		reports, err = h.engine.RunTriggers(ctx, engine.Triggers{
			Update:         step.Triggers.Update,
			Build:          step.Triggers.Build,
			CreateSnapshot: step.Triggers.CreateSnapshot,
			DeleteSnapshot: step.Triggers.DeleteSnapshot,
			SnapshotName:   step.Snapshot,
		})
	}

	// An operation that failed before its run began yields an empty report.
	for _, rep := range reports {
		if rep.RunID != "" {
			result.Reports = append(result.Reports, rep)
		}
	}

	slog.Debug("scenario step", slog.Int("step", index), slog.String("op", step.Op), slog.Any("error", err))

	for _, msg := range checkExpect(step, reports, err) {
		result.AddError(fmt.Sprintf("steps[%d] (%s): %s", index, step.Op, msg))
	}
}

// checkExpect compares a step's outcome with its expectation. The last
// report is the one checked for triggers steps.
func checkExpect(step Step, reports []engine.Report, err error) []string {
	want := step.Expect
	if want == nil {
		want = &StepExpect{}
	}

	var msgs []string
	switch {
	case want.Error == "" && err != nil:
		msgs = append(msgs, fmt.Sprintf("unexpected error: %v", err))
	case want.Error != "" && err == nil:
		msgs = append(msgs, fmt.Sprintf("expected error %s, got success", want.Error))
	case want.Error != "" && !engine.HasCode(err, want.Error):
		var rtErr *engine.RuntimeError
		got := "untyped"
		if errors.As(err, &rtErr) {
			got = string(rtErr.Code)
		}
		msgs = append(msgs, fmt.Sprintf("expected error %s, got %s: %v", want.Error, got, err))
	}

	var last engine.Report
	if len(reports) > 0 {
		last = reports[len(reports)-1]
	}
	if want.Applied != nil && last.Applied != *want.Applied {
		msgs = append(msgs, fmt.Sprintf("expected %d applied operations, got %d", *want.Applied, last.Applied))
	}
	if want.Summary != nil {
		expected := reconcile.Summary{Delete: want.Summary.Delete, Update: want.Summary.Update, Create: want.Summary.Create}
		switch {
		case last.Summary == nil:
			msgs = append(msgs, fmt.Sprintf("expected summary %s, got none", expected))
		case *last.Summary != expected:
			msgs = append(msgs, fmt.Sprintf("expected summary %s, got %s", expected, *last.Summary))
		}
	}
	return msgs
}
