// Package loader reads the local bot definition: flow documents from a
// directory and the AI rule list from a JSON file.
//
// Loading returns Result values rather than bare errors so that the caller
// can tell "absent" (not an error at all) from "invalid" (a LocalReadError
// the caller may choose to downgrade to a warning).
package loader

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"

	"github.com/roach88/botsync/internal/bot"
)

// Recognized local paths and extensions.
const (
	DefaultFlowsDir  = "flows"
	DefaultRulesFile = "airules.json"
	FlowExtension    = ".csml"
)

// Status classifies the outcome of a load.
type Status int

const (
	// StatusLoaded means the source existed and parsed.
	StatusLoaded Status = iota
	// StatusAbsent means the source does not exist. Not an error.
	StatusAbsent
	// StatusInvalid means the source exists but could not be used.
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusLoaded:
		return "loaded"
	case StatusAbsent:
		return "absent"
	case StatusInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// FlowsResult is the outcome of LoadFlows.
type FlowsResult struct {
	Flows  []bot.Flow
	Status Status
	Err    error // set only when Status is StatusInvalid
}

// RulesResult is the outcome of LoadRules.
type RulesResult struct {
	Rules  bot.AiRuleSet
	Status Status
	Err    error // set only when Status is StatusInvalid
}

// RulesOrEmpty returns the loaded rules, or an empty set for absent and
// invalid sources.
func (r RulesResult) RulesOrEmpty() bot.AiRuleSet {
	if r.Status != StatusLoaded {
		return bot.AiRuleSet{}
	}
	return r.Rules
}

// LocalReadError reports a local source that exists but cannot be used.
type LocalReadError struct {
	Path    string
	Message string
	Err     error
}

func (e *LocalReadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Path, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func (e *LocalReadError) Unwrap() error {
	return e.Err
}

// IsLocalReadError returns true if err is or wraps a LocalReadError.
func IsLocalReadError(err error) bool {
	var le *LocalReadError
	return errors.As(err, &le)
}

// LoadFlows reads every *.csml file directly inside dir, in directory order.
// A missing directory yields StatusAbsent with no flows.
func LoadFlows(dir string) FlowsResult {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return FlowsResult{Flows: []bot.Flow{}, Status: StatusAbsent}
	}
	if err != nil {
		return FlowsResult{
			Flows:  []bot.Flow{},
			Status: StatusInvalid,
			Err:    &LocalReadError{Path: dir, Message: "cannot read flows directory", Err: err},
		}
	}

	flows := make([]bot.Flow, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), FlowExtension) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return FlowsResult{
				Flows:  []bot.Flow{},
				Status: StatusInvalid,
				Err:    &LocalReadError{Path: path, Message: "cannot read flow", Err: err},
			}
		}
		flows = append(flows, ParseFlow(path, string(data)))
	}

	return FlowsResult{Flows: flows, Status: StatusLoaded}
}

const byteOrderMark = "\ufeff"

// ParseFlow wraps a document's full text as a Flow.
//
// The flow's identity comes from the document: a "// name: <value>"
// directive in the leading comment block. Without one, the file stem is
// used. A "// commands: /a, /b" directive sets the flow's commands.
func ParseFlow(source, content string) bot.Flow {
	flow := bot.Flow{
		Name:    strings.TrimSuffix(filepath.Base(source), FlowExtension),
		Content: content,
		Source:  source,
	}

	// A leading byte-order mark would hide the first directive. Content
	// keeps it.
	scanner := bufio.NewScanner(strings.NewReader(strings.TrimPrefix(content, byteOrderMark)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		comment, ok := strings.CutPrefix(line, "//")
		if !ok {
			break
		}
		key, value, ok := strings.Cut(comment, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "name":
			if value != "" {
				flow.Name = value
			}
		case "commands":
			flow.Commands = splitCommands(value)
		}
	}

	return flow
}

func splitCommands(value string) []string {
	commands := []string{}
	for _, part := range strings.Split(value, ",") {
		if cmd := strings.TrimSpace(part); cmd != "" {
			commands = append(commands, cmd)
		}
	}
	return commands
}

// rulesSchema accepts a list whose entries are all objects.
const rulesSchema = `[...{...}]`

// LoadRules reads the AI rule list. A missing file yields StatusAbsent; a
// file that is not a JSON list of objects yields StatusInvalid with a
// LocalReadError. Neither case is fatal to the caller.
func LoadRules(path string) RulesResult {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return RulesResult{Rules: bot.AiRuleSet{}, Status: StatusAbsent}
	}
	if err != nil {
		return invalidRules(path, "cannot read rules file", err)
	}

	var rules []json.RawMessage
	if err := json.Unmarshal(data, &rules); err != nil {
		return invalidRules(path, "invalid JSON", err)
	}
	if rules == nil {
		return invalidRules(path, "expected a JSON list, got null", nil)
	}
	if err := validateRules(path, data); err != nil {
		return invalidRules(path, "rules must be a list of objects", err)
	}

	return RulesResult{Rules: bot.AiRuleSet(rules), Status: StatusLoaded}
}

func invalidRules(path, message string, err error) RulesResult {
	return RulesResult{
		Rules:  bot.AiRuleSet{},
		Status: StatusInvalid,
		Err:    &LocalReadError{Path: path, Message: message, Err: err},
	}
}

// validateRules checks the decoded document against rulesSchema.
func validateRules(path string, data []byte) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(rulesSchema)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	expr, err := cuejson.Extract(path, data)
	if err != nil {
		return err
	}
	value := ctx.BuildExpr(expr)
	if err := value.Err(); err != nil {
		return err
	}

	return schema.Unify(value).Validate(cue.Concrete(true))
}
