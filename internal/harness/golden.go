package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/botsync/internal/bot"
)

// FormatTrace renders a trace as one "METHOD PATH STATUS BODY" line per
// request. Bodies are canonical JSON, so the text is byte-stable.
func FormatTrace(trace []TraceEvent) ([]byte, error) {
	var buf strings.Builder
	for _, event := range trace {
		fmt.Fprintf(&buf, "%s %s %d", event.Method, event.Path, event.Status)
		if event.Body != nil {
			body, err := bot.MarshalCanonical(event.Body)
			if err != nil {
				return nil, fmt.Errorf("request %d: %w", event.Seq, err)
			}
			buf.WriteByte(' ')
			buf.Write(body)
		}
		buf.WriteByte('\n')
	}
	return []byte(buf.String()), nil
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can make further checks. Test failure (via
// goldie) occurs if the trace doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	trace, err := FormatTrace(result.Trace)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, trace)
	return nil
}

// GoldenPath returns the golden file of the named scenario in dir.
func GoldenPath(dir, name string) string {
	return filepath.Join(dir, name+".golden")
}

// CompareGolden reports whether the result's trace matches the golden file
// of the named scenario in dir. A missing file is returned as an error
// wrapping os.ErrNotExist.
func CompareGolden(dir, name string, result *Result) (bool, error) {
	want, err := os.ReadFile(GoldenPath(dir, name))
	if err != nil {
		return false, fmt.Errorf("failed to read golden file: %w", err)
	}
	got, err := FormatTrace(result.Trace)
	if err != nil {
		return false, err
	}
	return bytes.Equal(want, got), nil
}

// WriteGolden replaces the golden file of the named scenario in dir.
func WriteGolden(dir, name string, result *Result) error {
	data, err := FormatTrace(result.Trace)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(GoldenPath(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}
