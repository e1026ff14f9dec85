package bot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// TagRefPrefix is stripped from a tag reference to obtain a snapshot name.
const TagRefPrefix = "refs/tags/"

// Flow is a flow document read from the local repository.
type Flow struct {
	Name     string   `json:"name"`
	Content  string   `json:"content"`
	Commands []string `json:"commands,omitempty"`

	// Source is the file the flow was read from. Never sent to the remote.
	Source string `json:"-"`
}

// fields returns the local fields that overlay a remote flow on merge.
// Commands are only part of the overlay when the document declares them.
func (f Flow) fields() (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, 3)
	for key, val := range map[string]any{"name": f.Name, "content": f.Content} {
		raw, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("flow %q: field %s: %w", f.Name, key, err)
		}
		out[key] = raw
	}
	if f.Commands != nil {
		raw, err := json.Marshal(f.Commands)
		if err != nil {
			return nil, fmt.Errorf("flow %q: field commands: %w", f.Name, err)
		}
		out["commands"] = raw
	}
	return out, nil
}

// RemoteFlow is a flow as held by the remote service.
//
// ID and Name are decoded for matching and addressing. Fields holds every
// key of the remote document verbatim, including id and name, so that
// fields owned by the service survive a round trip.
type RemoteFlow struct {
	ID     string
	Name   string
	Fields map[string]json.RawMessage
}

// UnmarshalJSON implements json.Unmarshaler for RemoteFlow.
func (f *RemoteFlow) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("remote flow: expected object, got %s", bytes.TrimSpace(data))
	}

	id, err := scalarString(fields["id"])
	if err != nil {
		return fmt.Errorf("remote flow: id: %w", err)
	}
	name, err := scalarString(fields["name"])
	if err != nil {
		return fmt.Errorf("remote flow: name: %w", err)
	}

	*f = RemoteFlow{ID: id, Name: name, Fields: fields}
	return nil
}

// MarshalJSON implements json.Marshaler for RemoteFlow.
// The original id encoding is kept when present.
func (f RemoteFlow) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(f.Fields)+2)
	for k, v := range f.Fields {
		out[k] = v
	}
	if _, ok := out["id"]; !ok && f.ID != "" {
		raw, err := json.Marshal(f.ID)
		if err != nil {
			return nil, err
		}
		out["id"] = raw
	}
	raw, err := json.Marshal(f.Name)
	if err != nil {
		return nil, err
	}
	out["name"] = raw
	return json.Marshal(out)
}

// scalarString decodes a JSON string or number into its string form.
// A missing or null value yields "".
func scalarString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("expected string or number, got %s", raw)
	}
	return n.String(), nil
}

// MergedFlow is the update candidate for a flow present on both sides.
// It is the remote document overlaid by the local fields; the remote id is
// always retained.
type MergedFlow struct {
	RemoteFlow
}

// Merge overlays local onto remote. The caller guarantees both share a name.
func Merge(remote RemoteFlow, local Flow) (MergedFlow, error) {
	overlay, err := local.fields()
	if err != nil {
		return MergedFlow{}, err
	}

	fields := make(map[string]json.RawMessage, len(remote.Fields)+len(overlay))
	for k, v := range remote.Fields {
		fields[k] = v
	}
	for k, v := range overlay {
		fields[k] = v
	}

	return MergedFlow{RemoteFlow: RemoteFlow{
		ID:     remote.ID,
		Name:   local.Name,
		Fields: fields,
	}}, nil
}

// AiRuleSet is the ordered list of AI rules. Rules are opaque JSON objects.
type AiRuleSet []json.RawMessage

// MarshalJSON implements json.Marshaler. An empty set encodes as [] so that
// replacing with an empty set clears the remote rules.
func (s AiRuleSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]json.RawMessage(s))
}

// SnapshotLabel names a snapshot of the bot's published state.
type SnapshotLabel struct {
	Name string `json:"name"`
}

// SnapshotNameFromRef strips the tag prefix from a tag reference.
// References without the prefix are returned unchanged.
func SnapshotNameFromRef(ref string) string {
	return strings.TrimPrefix(strings.TrimSpace(ref), TagRefPrefix)
}
