package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuntimeError_Message(t *testing.T) {
	cause := errors.New("POST /api/bot/flows: HTTP 500")
	err := NewApplyError("run-1", OpCreate, "Default", cause)

	assert.Equal(t, `APPLY_FAILED: create "Default" failed (run=run-1): POST /api/bot/flows: HTTP 500`, err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestRuntimeError_NoTarget(t *testing.T) {
	err := NewApplyError("run-1", OpBuild, "", errors.New("x"))
	assert.Equal(t, "APPLY_FAILED: build failed (run=run-1): x", err.Error())
}

func TestRuntimeError_Predicates(t *testing.T) {
	apply := fmt.Errorf("wrapped: %w", NewApplyError("r", OpDelete, "C", errors.New("x")))
	assert.True(t, IsApplyError(apply))
	assert.False(t, HasCode(apply, ErrCodeFetchFailed))

	missing := newMissingSnapshotNameError(OpCreateSnapshot)
	assert.True(t, HasCode(missing, ErrCodeMissingSnapshotName))
	assert.False(t, IsApplyError(missing))
	assert.Equal(t, "MISSING_SNAPSHOT_NAME: snapshot-create requires a snapshot name", missing.Error())

	assert.False(t, IsApplyError(errors.New("plain")))
	assert.False(t, IsApplyError(nil))
}
