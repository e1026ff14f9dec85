package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/botsync/internal/engine"
)

// Scenario defines a sync test scenario: a local repository, the state of
// the remote bot, the operations to run, and what must hold afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// RunPrefix prefixes the sequential run ids. Defaults to "run".
	RunPrefix string `yaml:"run_prefix,omitempty"`

	Local  LocalState  `yaml:"local"`
	Remote RemoteSetup `yaml:"remote"`

	// Steps are run in order. A step whose expectation fails does not stop
	// the scenario.
	Steps []Step `yaml:"steps"`

	// Assertions validate the request trace, the remote state and the
	// journal after the last step.
	Assertions []Assertion `yaml:"assertions"`
}

// LocalState is the repository content. A nil Flows map means the flows
// directory does not exist; a nil Rules means there is no rules file.
type LocalState struct {
	Flows map[string]string `yaml:"flows,omitempty"`
	Rules *string           `yaml:"rules,omitempty"`
}

// RemoteSetup is the initial state of the fake remote.
type RemoteSetup struct {
	Flows  []map[string]any `yaml:"flows,omitempty"`
	Rules  []map[string]any `yaml:"rules,omitempty"`
	Labels []string         `yaml:"labels,omitempty"`

	// Reject makes the remote answer matching requests with an error.
	Reject []Rejection `yaml:"reject,omitempty"`
}

// Rejection answers every request matching Method and Path with Status.
type Rejection struct {
	Method string `yaml:"method"`
	Path   string `yaml:"path"`
	Status int    `yaml:"status"`
}

// Step runs one operation.
type Step struct {
	// Op is one of update, dry-run, build, snapshot-create,
	// snapshot-delete, triggers.
	Op string `yaml:"op"`

	// Snapshot names the snapshot for the snapshot ops and triggers.
	Snapshot string `yaml:"snapshot,omitempty"`

	// Triggers selects the operations of a triggers step.
	Triggers *StepTriggers `yaml:"triggers,omitempty"`

	Expect *StepExpect `yaml:"expect,omitempty"`
}

// StepTriggers mirrors the CI inputs.
type StepTriggers struct {
	Update         bool `yaml:"update"`
	Build          bool `yaml:"build"`
	CreateSnapshot bool `yaml:"create_snapshot"`
	DeleteSnapshot bool `yaml:"delete_snapshot"`
}

// StepExpect specifies the expected outcome of a step. Without an Error
// the step must succeed.
type StepExpect struct {
	Error   engine.RuntimeErrorCode `yaml:"error,omitempty"`
	Applied *int                    `yaml:"applied,omitempty"`
	Summary *SummaryExpect          `yaml:"summary,omitempty"`
}

// SummaryExpect is the expected group sizes of an update.
type SummaryExpect struct {
	Delete int `yaml:"delete"`
	Update int `yaml:"update"`
	Create int `yaml:"create"`
}

// Assertion validates the trace, the remote state or the journal.
type Assertion struct {
	// Type specifies the assertion type:
	// - "request_contains": a request was made, with a body containing Body
	// - "request_order": requests were made in this relative order
	// - "request_count": a request was made exactly Count times
	// - "remote_flows": the remote holds exactly these flow names
	// - "journal": a journaled run has the expected status and operations
	Type string `yaml:"type"`

	// Request is "METHOD PATH" (request_contains, request_count).
	Request string `yaml:"request,omitempty"`

	// Body is matched as a subset of the request body (request_contains).
	Body map[string]any `yaml:"body,omitempty"`

	// Requests is the expected order (request_order).
	Requests []string `yaml:"requests,omitempty"`

	// Count is the expected number of occurrences (request_count).
	Count int `yaml:"count,omitempty"`

	// Flows are the expected remote flow names, in any order (remote_flows).
	Flows []string `yaml:"flows,omitempty"`

	// Run is the journaled run id (journal).
	Run string `yaml:"run,omitempty"`

	// Expect holds the expected run fields: status, command, operations
	// (count), and kinds (operation kinds in seq order) (journal).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertRequestContains = "request_contains"
	AssertRequestOrder    = "request_order"
	AssertRequestCount    = "request_count"
	AssertRemoteFlows     = "remote_flows"
	AssertJournal         = "journal"
)

// Step ops.
const (
	OpUpdate         = "update"
	OpDryRun         = "dry-run"
	OpBuild          = "build"
	OpSnapshotCreate = "snapshot-create"
	OpSnapshotDelete = "snapshot-delete"
	OpTriggers       = "triggers"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for name := range s.Local.Flows {
		if !strings.HasSuffix(name, ".csml") {
			return fmt.Errorf("local.flows: %q must have the .csml extension", name)
		}
		if strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("local.flows: %q must be a bare file name", name)
		}
	}

	for i, rej := range s.Remote.Reject {
		if rej.Method == "" || rej.Path == "" {
			return fmt.Errorf("remote.reject[%d]: method and path are required", i)
		}
		if rej.Status < 400 || rej.Status > 599 {
			return fmt.Errorf("remote.reject[%d]: status must be 4xx or 5xx", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, step *Step) error {
	switch step.Op {
	case OpUpdate, OpDryRun, OpBuild, OpSnapshotCreate, OpSnapshotDelete:
		if step.Triggers != nil {
			return fmt.Errorf("steps[%d]: triggers only apply to op %q", index, OpTriggers)
		}
	case OpTriggers:
		if step.Triggers == nil {
			return fmt.Errorf("steps[%d]: triggers is required for op %q", index, OpTriggers)
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, step.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRequestContains:
		if a.Request == "" {
			return fmt.Errorf("assertions[%d]: request is required for request_contains", index)
		}
	case AssertRequestOrder:
		if len(a.Requests) == 0 {
			return fmt.Errorf("assertions[%d]: requests list is required for request_order", index)
		}
	case AssertRequestCount:
		if a.Request == "" {
			return fmt.Errorf("assertions[%d]: request is required for request_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for request_count", index)
		}
	case AssertRemoteFlows:
		if a.Flows == nil {
			return fmt.Errorf("assertions[%d]: flows is required for remote_flows (use [] for none)", index)
		}
	case AssertJournal:
		if a.Run == "" {
			return fmt.Errorf("assertions[%d]: run is required for journal", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for journal", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
