package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while running an operation.
//
// Runtime errors include:
//   - Local read: a flow file could not be read
//   - Fetch failed: the remote flow list could not be obtained
//   - Apply failed: a remote mutation was rejected or did not complete
//   - Missing snapshot name: a snapshot operation without a name
//
// The underlying cause, when there is one, is reachable with errors.As.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected run.
	RunID string

	// Kind and Target name the operation that failed (apply errors).
	Kind   OpKind
	Target string

	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	ErrCodeLocalRead           RuntimeErrorCode = "LOCAL_READ"
	ErrCodeFetchFailed         RuntimeErrorCode = "FETCH_FAILED"
	ErrCodeApplyFailed         RuntimeErrorCode = "APPLY_FAILED"
	ErrCodeMissingSnapshotName RuntimeErrorCode = "MISSING_SNAPSHOT_NAME"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.RunID != "" {
		msg += fmt.Sprintf(" (run=%s)", e.RunID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// HasCode reports whether err wraps a RuntimeError with the given code.
func HasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsApplyError returns true if a remote mutation failed.
func IsApplyError(err error) bool {
	return HasCode(err, ErrCodeApplyFailed)
}

// NewApplyError wraps the failure of one remote mutation.
func NewApplyError(runID string, kind OpKind, target string, err error) *RuntimeError {
	msg := string(kind)
	if target != "" {
		msg = fmt.Sprintf("%s %q", kind, target)
	}
	return &RuntimeError{
		Code:    ErrCodeApplyFailed,
		Message: msg + " failed",
		RunID:   runID,
		Kind:    kind,
		Target:  target,
		Err:     err,
	}
}

func newLocalReadError(runID string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeLocalRead,
		Message: "cannot read local flows",
		RunID:   runID,
		Err:     err,
	}
}

func newFetchError(runID string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeFetchFailed,
		Message: "cannot fetch remote flows",
		RunID:   runID,
		Err:     err,
	}
}

func newMissingSnapshotNameError(kind OpKind) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeMissingSnapshotName,
		Message: fmt.Sprintf("%s requires a snapshot name", kind),
		Kind:    kind,
	}
}
