package cli

import (
	"errors"

	"github.com/roach88/botsync/internal/auth"
	"github.com/roach88/botsync/internal/config"
	"github.com/roach88/botsync/internal/engine"
	"github.com/roach88/botsync/internal/loader"
	"github.com/roach88/botsync/internal/remote"
	"github.com/roach88/botsync/internal/store"
)

// Error codes reported in CLIError.Code.
const (
	ErrCodeGeneric   = "E001"
	ErrCodeConfig    = "E201" // credentials, config file, flags, snapshot name
	ErrCodeLocalRead = "E202" // a flow file or directory could not be read
	ErrCodeRemote    = "E203" // the remote rejected or did not answer a call
	ErrCodeNotFound  = "E204" // journal lookup miss

	ErrCodeTestFailed = "E301" // a scenario failed its checks
)

// classify maps an operation error to its CLI error code and exit code.
func classify(err error) (string, int) {
	switch {
	case errors.Is(err, errInvalidConfig),
		errors.Is(err, errNoJournal),
		errors.Is(err, config.ErrEventPayload),
		auth.IsConfigurationError(err),
		engine.HasCode(err, engine.ErrCodeMissingSnapshotName):
		return ErrCodeConfig, ExitCommandError
	case engine.HasCode(err, engine.ErrCodeLocalRead), loader.IsLocalReadError(err):
		return ErrCodeLocalRead, ExitCommandError
	case errors.Is(err, store.ErrRunNotFound):
		return ErrCodeNotFound, ExitFailure
	case engine.HasCode(err, engine.ErrCodeFetchFailed),
		engine.HasCode(err, engine.ErrCodeApplyFailed),
		remote.IsRemoteCallError(err):
		return ErrCodeRemote, ExitFailure
	}
	return ErrCodeGeneric, ExitFailure
}

// errorDetails collects the structured context of err for JSON output, or
// nil when there is none.
func errorDetails(err error) any {
	details := map[string]any{}

	var rtErr *engine.RuntimeError
	if errors.As(err, &rtErr) {
		if rtErr.RunID != "" {
			details["run_id"] = rtErr.RunID
		}
		if rtErr.Kind != "" {
			details["kind"] = rtErr.Kind
			details["target"] = rtErr.Target
		}
	}

	var callErr *remote.RemoteCallError
	if errors.As(err, &callErr) {
		details["method"] = callErr.Method
		details["path"] = callErr.Path
		details["status"] = callErr.StatusCode
	}

	var cfgErr *auth.ConfigurationError
	if errors.As(err, &cfgErr) {
		details["field"] = cfgErr.Field
	}

	if len(details) == 0 {
		return nil
	}
	return details
}

// fail reports err through the formatter and returns the matching ExitError.
func fail(f *OutputFormatter, message string, err error) error {
	code, exit := classify(err)
	if outErr := f.Error(code, message+": "+err.Error(), errorDetails(err)); outErr != nil {
		return WrapExitError(ExitFailure, "failed to write output", outErr)
	}
	return WrapExitError(exit, message, err)
}
