package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/botsync/internal/bot"
)

// fakeRemote records every call as "<op> <target>" and can fail on a given
// call.
type fakeRemote struct {
	mu     sync.Mutex
	flows  []bot.RemoteFlow
	calls  []string
	failOn string
	rules  bot.AiRuleSet
	nextID int
}

var errFake = errors.New("fake remote failure")

func (f *fakeRemote) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if call == f.failOn {
		return errFake
	}
	return nil
}

func (f *fakeRemote) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRemote) FetchFlows(context.Context) ([]bot.RemoteFlow, error) {
	if err := f.record("fetch"); err != nil {
		return nil, err
	}
	return f.flows, nil
}

func (f *fakeRemote) CreateFlow(_ context.Context, flow bot.Flow) (bot.RemoteFlow, error) {
	if err := f.record("create " + flow.Name); err != nil {
		return bot.RemoteFlow{}, err
	}
	f.nextID++
	return bot.RemoteFlow{ID: fmt.Sprintf("new-%d", f.nextID), Name: flow.Name}, nil
}

func (f *fakeRemote) UpdateFlow(_ context.Context, flow bot.MergedFlow) (bot.RemoteFlow, error) {
	if err := f.record("update " + flow.Name); err != nil {
		return bot.RemoteFlow{}, err
	}
	return flow.RemoteFlow, nil
}

func (f *fakeRemote) DeleteFlow(_ context.Context, flow bot.RemoteFlow) error {
	return f.record("delete " + flow.Name)
}

func (f *fakeRemote) ReplaceRules(_ context.Context, rules bot.AiRuleSet) error {
	f.rules = rules
	return f.record(fmt.Sprintf("rules %d", len(rules)))
}

func (f *fakeRemote) TriggerBuild(context.Context) error {
	return f.record("build")
}

func (f *fakeRemote) CreateSnapshot(_ context.Context, name string) (bot.SnapshotLabel, error) {
	if err := f.record("snapshot-create " + name); err != nil {
		return bot.SnapshotLabel{}, err
	}
	return bot.SnapshotLabel{Name: name}, nil
}

func (f *fakeRemote) DeleteSnapshot(_ context.Context, name string) error {
	return f.record("snapshot-delete " + name)
}

func remoteFlow(t *testing.T, id, name, content string) bot.RemoteFlow {
	t.Helper()
	var rf bot.RemoteFlow
	doc := fmt.Sprintf(`{"id":%q,"name":%q,"content":%q}`, id, name, content)
	require.NoError(t, json.Unmarshal([]byte(doc), &rf))
	return rf
}

// workspace lays out a flows directory and an optional rules file, and
// returns options pointing the engine at them.
func workspace(t *testing.T, flows map[string]string, rules string) []Option {
	t.Helper()
	root := t.TempDir()
	flowsDir := filepath.Join(root, "flows")
	if flows != nil {
		require.NoError(t, os.MkdirAll(flowsDir, 0o755))
		for file, content := range flows {
			require.NoError(t, os.WriteFile(filepath.Join(flowsDir, file), []byte(content), 0o644))
		}
	}
	rulesFile := filepath.Join(root, "airules.json")
	if rules != "" {
		require.NoError(t, os.WriteFile(rulesFile, []byte(rules), 0o644))
	}
	return []Option{WithFlowsDir(flowsDir), WithRulesFile(rulesFile)}
}
