package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_Golden(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, path)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_MinimalScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "minimal",
		Description: "Build against an empty remote",
		Steps:       []Step{{Op: OpBuild}},
		Assertions: []Assertion{
			{Type: AssertRequestCount, Request: "POST /api/bot/build", Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, "POST /api/bot/build", result.Trace[0].Request())
	assert.Equal(t, 200, result.Trace[0].Status)
	assert.Equal(t, 1, result.Remote.Builds)

	require.Len(t, result.Reports, 1)
	assert.Equal(t, "run-1", result.Reports[0].RunID)
}

func TestRun_RunPrefix(t *testing.T) {
	scenario := &Scenario{
		Name:        "prefixed",
		Description: "Run ids use the scenario prefix",
		RunPrefix:   "ci",
		Steps:       []Step{{Op: OpBuild}, {Op: OpBuild}},
		Assertions: []Assertion{
			{Type: AssertJournal, Run: "ci-2", Expect: map[string]any{"command": "build"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Reports, 2)
	assert.Equal(t, "ci-1", result.Reports[0].RunID)
	assert.Equal(t, "ci-2", result.Reports[1].RunID)
}

func TestRun_UnexpectedErrorFailsScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "unexpected_error",
		Description: "A rejected build without an expected error",
		Remote: RemoteSetup{
			Reject: []Rejection{{Method: "POST", Path: "/api/bot/build", Status: 500}},
		},
		Steps: []Step{{Op: OpBuild}},
		Assertions: []Assertion{
			{Type: AssertRequestCount, Request: "POST /api/bot/build", Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "steps[0] (build): unexpected error")
}

func TestRun_ExpectedErrorMissing(t *testing.T) {
	scenario := &Scenario{
		Name:        "missing_error",
		Description: "A successful build expected to fail",
		Steps:       []Step{{Op: OpBuild, Expect: &StepExpect{Error: "APPLY_FAILED"}}},
		Assertions: []Assertion{
			{Type: AssertRequestCount, Request: "POST /api/bot/build", Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected error APPLY_FAILED, got success")
}

func TestRun_WrongErrorCode(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong_code",
		Description: "A missing snapshot name is not an apply failure",
		Steps:       []Step{{Op: OpSnapshotCreate, Expect: &StepExpect{Error: "APPLY_FAILED"}}},
		Assertions: []Assertion{
			{Type: AssertRequestCount, Request: "POST /api/bot/label", Count: 0},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "got MISSING_SNAPSHOT_NAME")
	assert.Empty(t, result.Reports)
}

func TestRun_SummaryMismatch(t *testing.T) {
	scenario := &Scenario{
		Name:        "summary_mismatch",
		Description: "The expected summary differs from the plan",
		Local: LocalState{
			Flows: map[string]string{"A.csml": "start:\n"},
		},
		Steps: []Step{{
			Op:     OpDryRun,
			Expect: &StepExpect{Summary: &SummaryExpect{Create: 2}},
		}},
		Assertions: []Assertion{
			{Type: AssertRemoteFlows, Flows: []string{}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected summary 0 to delete, 0 to update, 2 to create, got 0 to delete, 0 to update, 1 to create")
}

func TestRun_RequestsAreSigned(t *testing.T) {
	scenario := &Scenario{
		Name:        "signed",
		Description: "Requests carry valid signatures",
		Steps:       []Step{{Op: OpUpdate}},
		Assertions: []Assertion{
			{Type: AssertRequestOrder, Requests: []string{"GET /api/bot/flows", "PUT /api/bot"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	for _, event := range result.Trace {
		assert.NotEqual(t, 401, event.Status, event.Request())
	}
}

func TestRunDir(t *testing.T) {
	result, err := RunDir(filepath.Join("testdata", "scenarios"), SuiteOptions{
		GoldenDir: filepath.Join("testdata", "golden"),
	})
	require.NoError(t, err)

	assert.Equal(t, 6, result.TotalScenarios)
	assert.Equal(t, 6, result.Passed)
	assert.Zero(t, result.Failed)
	assert.Empty(t, result.Failures)
	require.Len(t, result.Scenarios, 6)
	assert.Equal(t, "ci_triggers", result.Scenarios[0].Name)
}

func TestRunDir_Filter(t *testing.T) {
	result, err := RunDir(filepath.Join("testdata", "scenarios"), SuiteOptions{Filter: "update_*"})
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalScenarios)
	assert.Equal(t, 3, result.Passed)
	for _, s := range result.Scenarios {
		assert.True(t, strings.HasPrefix(s.Name, "update_"), s.Name)
	}

	_, err = RunDir(filepath.Join("testdata", "scenarios"), SuiteOptions{Filter: "["})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter")
}

func TestRunDir_GoldenMismatchAndUpdate(t *testing.T) {
	dir := t.TempDir()
	golden := filepath.Join(dir, "golden")
	writeFile(t, filepath.Join(dir, "build.yaml"), buildScenario)
	require.NoError(t, os.MkdirAll(golden, 0o755))
	writeFile(t, filepath.Join(golden, "build.golden"), "POST /api/bot/build 500\n")

	result, err := RunDir(dir, SuiteOptions{GoldenDir: golden})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0].Error, "trace differs from")

	result, err = RunDir(dir, SuiteOptions{GoldenDir: golden, Update: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Passed)

	data, err := os.ReadFile(filepath.Join(golden, "build.golden"))
	require.NoError(t, err)
	assert.Equal(t, "POST /api/bot/build 200\n", string(data))

	result, err = RunDir(dir, SuiteOptions{GoldenDir: golden})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Passed)
}

const buildScenario = `
name: build
description: "builds once"
steps:
  - op: build
assertions:
  - type: request_count
    request: POST /api/bot/build
    count: 1
`

func TestRunDir_ReportsBadScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a_bad.yaml"), "name: bad\n")
	writeFile(t, filepath.Join(dir, "b_good.yaml"), buildScenario)
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	result, err := RunDir(dir, SuiteOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalScenarios)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, filepath.Join(dir, "a_bad.yaml"), result.Failures[0].ScenarioPath)
	assert.Contains(t, result.Failures[0].Error, "description is required")
	assert.Equal(t, []bool{false, true}, []bool{result.Scenarios[0].Pass, result.Scenarios[1].Pass})
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRunDir_MissingDirectory(t *testing.T) {
	_, err := RunDir(filepath.Join(t.TempDir(), "nope"), SuiteOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario directory")
}
