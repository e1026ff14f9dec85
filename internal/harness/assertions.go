package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/botsync/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s -> %d\n", event.Seq, event.Request(), event.Status)
		}
	}

	return buf.String()
}

// assertRequestContains checks that the trace holds a request matching the
// specified "METHOD PATH" whose body contains the expected fields.
func assertRequestContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Request() == assertion.Request && matchBody(event.Body, assertion.Body) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertRequestContains,
		Expected: fmt.Sprintf("request %s with body %v", assertion.Request, assertion.Body),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertRequestOrder checks that requests appear in the specified order.
// Requests don't need to be consecutive (intervening requests are allowed),
// and each expected request consumes the first match after the previous one.
func assertRequestOrder(trace []TraceEvent, assertion Assertion) error {
	pos := 0
	for _, want := range assertion.Requests {
		found := false
		for pos < len(trace) {
			event := trace[pos]
			pos++
			if event.Request() == want {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertRequestOrder,
				Expected: fmt.Sprintf("requests in order: %v", assertion.Requests),
				Actual:   fmt.Sprintf("%s missing or out of order", want),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertRequestCount checks that a request appears exactly the specified
// number of times.
func assertRequestCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Request() == assertion.Request {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertRequestCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Request),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertRemoteFlows checks the set of flow names held by the remote.
func assertRemoteFlows(state RemoteState, assertion Assertion) error {
	got := state.FlowNames()
	want := slices.Clone(assertion.Flows)
	slices.Sort(got)
	slices.Sort(want)

	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     AssertRemoteFlows,
			Expected: fmt.Sprintf("remote flows %v", want),
			Actual:   fmt.Sprintf("remote flows %v", got),
		}
	}
	return nil
}

// assertJournal checks a journaled run. Supported expect keys: status,
// command, error (substring), operations (count), kinds (in seq order).
func assertJournal(ctx context.Context, st *store.Store, assertion Assertion) error {
	run, err := st.ReadRun(ctx, assertion.Run)
	if err != nil {
		return &AssertionError{
			Type:     AssertJournal,
			Expected: fmt.Sprintf("run %s in journal", assertion.Run),
			Actual:   err.Error(),
		}
	}
	ops, err := st.ReadOperations(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("journal: read operations of %s: %w", run.ID, err)
	}

	kinds := make([]any, 0, len(ops))
	for _, op := range ops {
		kinds = append(kinds, op.Kind)
	}
	actual := map[string]any{
		"status":     run.Status,
		"command":    run.Command,
		"error":      run.Error,
		"operations": len(ops),
		"kinds":      kinds,
	}

	for key, expected := range assertion.Expect {
		got, ok := actual[key]
		if !ok {
			return fmt.Errorf("journal: unknown expect key %q", key)
		}
		match := valuesEqual(got, expected)
		if key == "error" {
			s, _ := expected.(string)
			match = strings.Contains(run.Error, s)
		}
		if !match {
			return &AssertionError{
				Type:     AssertJournal,
				Expected: fmt.Sprintf("run %s %s = %v", run.ID, key, expected),
				Actual:   fmt.Sprintf("%v", got),
			}
		}
	}
	return nil
}

// matchBody checks if the actual body contains all expected fields (subset
// match). Extra keys in actual are ignored.
func matchBody(actual any, expected map[string]any) bool {
	if len(expected) == 0 {
		return true
	}

	actualMap, ok := actual.(map[string]any)
	if !ok {
		return false
	}

	for key, expectedVal := range expected {
		actualVal, exists := actualMap[key]
		if !exists {
			return false
		}
		if !valuesEqual(actualVal, expectedVal) {
			return false
		}
	}
	return true
}

// valuesEqual compares a decoded JSON value with a YAML-decoded one. Both
// sides are normalized through JSON so that YAML ints match JSON numbers.
func valuesEqual(actual, expected any) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}
	return reflect.DeepEqual(normalizeValue(actual), normalizeValue(expected))
}

func normalizeValue(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides journal access for journal assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertRequestContains:
			err = assertRequestContains(result.Trace, assertion)
		case AssertRequestOrder:
			err = assertRequestOrder(result.Trace, assertion)
		case AssertRequestCount:
			err = assertRequestCount(result.Trace, assertion)
		case AssertRemoteFlows:
			err = assertRemoteFlows(result.Remote, assertion)
		case AssertJournal:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: journal requires a store", i)
			} else {
				err = assertJournal(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
