package harness

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/botsync/internal/store"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Method: "GET", Path: "/api/bot/flows", Status: 200},
		{Seq: 2, Method: "DELETE", Path: "/api/bot/flows/c-1", Status: 204},
		{Seq: 3, Method: "POST", Path: "/api/bot/flows", Status: 201,
			Body: map[string]any{"name": "A", "content": "start:"}},
		{Seq: 4, Method: "POST", Path: "/api/bot/flows", Status: 201,
			Body: map[string]any{"name": "B", "content": "start:", "commands": []any{"/b"}}},
		{Seq: 5, Method: "PUT", Path: "/api/bot", Status: 200,
			Body: map[string]any{"airules": []any{}, "version": json.Number("2")}},
	}
}

func TestAssertRequestContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertRequestContains(trace, Assertion{Request: "POST /api/bot/flows", Body: map[string]any{"name": "B"}}))
	assert.NoError(t, assertRequestContains(trace, Assertion{Request: "POST /api/bot/flows", Body: map[string]any{"commands": []any{"/b"}}}))
	assert.NoError(t, assertRequestContains(trace, Assertion{Request: "PUT /api/bot", Body: map[string]any{"version": 2}}))
	assert.NoError(t, assertRequestContains(trace, Assertion{Request: "GET /api/bot/flows"}))

	err := assertRequestContains(trace, Assertion{Request: "POST /api/bot/flows", Body: map[string]any{"name": "C"}})
	require.Error(t, err)
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, AssertRequestContains, aerr.Type)
	assert.Contains(t, err.Error(), "[3] POST /api/bot/flows -> 201")
}

func TestAssertRequestOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertRequestOrder(trace, Assertion{Requests: []string{"GET /api/bot/flows", "PUT /api/bot"}}))
	assert.NoError(t, assertRequestOrder(trace, Assertion{Requests: []string{"POST /api/bot/flows", "POST /api/bot/flows"}}))

	err := assertRequestOrder(trace, Assertion{Requests: []string{"PUT /api/bot", "GET /api/bot/flows"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GET /api/bot/flows missing or out of order")

	err = assertRequestOrder(trace, Assertion{Requests: []string{"POST /api/bot/flows", "POST /api/bot/flows", "POST /api/bot/flows"}})
	assert.Error(t, err)
}

func TestAssertRequestCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertRequestCount(trace, Assertion{Request: "POST /api/bot/flows", Count: 2}))
	assert.NoError(t, assertRequestCount(trace, Assertion{Request: "POST /api/bot/build", Count: 0}))

	err := assertRequestCount(trace, Assertion{Request: "GET /api/bot/flows", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Actual: 1 occurrences")
}

func TestAssertRemoteFlows(t *testing.T) {
	state := RemoteState{Flows: []map[string]any{{"name": "B"}, {"name": "A"}}}

	assert.NoError(t, assertRemoteFlows(state, Assertion{Flows: []string{"A", "B"}}))

	err := assertRemoteFlows(state, Assertion{Flows: []string{"A"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote flows [A B]")
}

func TestAssertJournal(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	started := time.Unix(Epoch, 0).UTC()
	require.NoError(t, st.BeginRun(ctx, store.Run{ID: "run-1", Command: "update", StartedAt: started}))
	require.NoError(t, st.RecordOperation(ctx, store.Operation{RunID: "run-1", Seq: 1, Kind: "delete", Target: "C", Status: store.OpApplied}))
	require.NoError(t, st.RecordOperation(ctx, store.Operation{RunID: "run-1", Seq: 2, Kind: "update", Target: "B", Status: store.OpFailed, Error: "status 500"}))
	require.NoError(t, st.FinishRun(ctx, "run-1", store.RunFailed, "APPLY_FAILED: update B", started, nil))

	assert.NoError(t, assertJournal(ctx, st, Assertion{Run: "run-1", Expect: map[string]any{
		"status":     "failed",
		"command":    "update",
		"error":      "APPLY_FAILED",
		"operations": 2,
		"kinds":      []any{"delete", "update"},
	}}))

	err = assertJournal(ctx, st, Assertion{Run: "run-1", Expect: map[string]any{"status": "succeeded"}})
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "failed", aerr.Actual)

	err = assertJournal(ctx, st, Assertion{Run: "run-9", Expect: map[string]any{"status": "failed"}})
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "run run-9 in journal", aerr.Expected)

	err = assertJournal(ctx, st, Assertion{Run: "run-1", Expect: map[string]any{"flavor": "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown expect key "flavor"`)
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertRequestCount, Request: "GET /api/bot/flows", Count: 1},
		{Type: AssertRequestCount, Request: "GET /api/bot/flows", Count: 3},
		{Type: AssertJournal, Run: "run-1", Expect: map[string]any{"status": "failed"}},
		{Type: "bogus"},
	}, nil)

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "3 occurrences of GET /api/bot/flows")
	assert.Contains(t, errs[1], "journal requires a store")
	assert.Contains(t, errs[2], `unknown assertion type "bogus"`)
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, valuesEqual(json.Number("3"), 3))
	assert.True(t, valuesEqual([]any{"a"}, []string{"a"}))
	assert.True(t, valuesEqual(nil, nil))
	assert.False(t, valuesEqual(nil, "x"))
	assert.False(t, valuesEqual("3", 3))
}
