package harness

import "github.com/roach88/botsync/internal/engine"

// TraceEvent is one request received by the fake remote.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	Method string `json:"method"`
	Path   string `json:"path"` // escaped path, as sent on the wire
	Body   any    `json:"body,omitempty"`
	Status int    `json:"status"`
}

// Request returns the "METHOD PATH" form used by assertions.
func (e TraceEvent) Request() string {
	return e.Method + " " + e.Path
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step expectation and assertion holds.
	Pass bool `json:"pass"`

	// Trace contains every request the remote received, in order.
	Trace []TraceEvent `json:"trace"`

	// Reports contains the reports of every operation run by the steps.
	Reports []engine.Report `json:"reports"`

	// Remote is the fake remote's state after the last step.
	Remote RemoteState `json:"remote"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Reports: []engine.Report{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
