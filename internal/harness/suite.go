package harness

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// SuiteOptions controls which scenarios of a directory run and how their
// traces are checked.
type SuiteOptions struct {
	// Filter is a glob matched against the scenario file name without its
	// extension. Empty runs every scenario.
	Filter string

	// GoldenDir holds <name>.golden trace files. Scenarios without a golden
	// file are checked by their assertions only.
	GoldenDir string

	// Update rewrites golden files instead of comparing against them.
	Update bool
}

// SuiteResult contains results from running every scenario of a directory.
type SuiteResult struct {
	TotalScenarios int               `json:"total_scenarios"`
	Passed         int               `json:"passed"`
	Failed         int               `json:"failed"`
	Scenarios      []ScenarioOutcome `json:"scenarios"`
	Failures       []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioOutcome is the verdict of one scenario.
type ScenarioOutcome struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// ScenarioFailure represents a scenario that could not be loaded, could not
// run, or failed its checks.
type ScenarioFailure struct {
	ScenarioPath string `json:"scenario_path"`
	Error        string `json:"error"`
}

// RunDir loads and runs the *.yaml scenarios in dir, in file name order.
// Returns an error only if the directory itself cannot be read or the
// filter is malformed.
func RunDir(dir string, opts SuiteOptions) (*SuiteResult, error) {
	if opts.Filter != "" {
		if _, err := filepath.Match(opts.Filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter %q: %w", opts.Filter, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		if opts.Filter != "" {
			if ok, _ := filepath.Match(opts.Filter, strings.TrimSuffix(e.Name(), ".yaml")); !ok {
				continue
			}
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	slices.Sort(paths)

	result := &SuiteResult{Scenarios: []ScenarioOutcome{}}
	for _, path := range paths {
		result.record(runScenario(path, opts))
	}

	return result, nil
}

func runScenario(path string, opts SuiteOptions) ScenarioOutcome {
	outcome := ScenarioOutcome{
		Name: strings.TrimSuffix(filepath.Base(path), ".yaml"),
		Path: path,
	}
	failed := func(format string, args ...any) ScenarioOutcome {
		outcome.Errors = append(outcome.Errors, fmt.Sprintf(format, args...))
		return outcome
	}

	scenario, err := LoadScenario(path)
	if err != nil {
		return failed("failed to load scenario: %v", err)
	}
	outcome.Name = scenario.Name

	runResult, err := Run(scenario)
	if err != nil {
		return failed("scenario execution failed: %v", err)
	}
	if !runResult.Pass {
		return failed("scenario checks failed: %v", runResult.Errors)
	}

	if opts.GoldenDir != "" {
		if opts.Update {
			if err := WriteGolden(opts.GoldenDir, scenario.Name, runResult); err != nil {
				return failed("%v", err)
			}
		} else {
			match, err := CompareGolden(opts.GoldenDir, scenario.Name, runResult)
			switch {
			case errors.Is(err, os.ErrNotExist):
			case err != nil:
				return failed("%v", err)
			case !match:
				return failed("trace differs from %s", GoldenPath(opts.GoldenDir, scenario.Name))
			}
		}
	}

	outcome.Pass = true
	return outcome
}

func (r *SuiteResult) record(outcome ScenarioOutcome) {
	r.TotalScenarios++
	r.Scenarios = append(r.Scenarios, outcome)
	if outcome.Pass {
		r.Passed++
		return
	}
	r.Failed++
	r.Failures = append(r.Failures, ScenarioFailure{
		ScenarioPath: outcome.Path,
		Error:        strings.Join(outcome.Errors, "; "),
	})
}
