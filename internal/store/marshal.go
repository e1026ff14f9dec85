package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/botsync/internal/bot"
)

// marshalDetails converts run details to canonical JSON TEXT for storage.
func marshalDetails(details map[string]any) (string, error) {
	if len(details) == 0 {
		return "{}", nil
	}
	data, err := bot.MarshalCanonical(details)
	if err != nil {
		return "", fmt.Errorf("marshal details: %w", err)
	}
	return string(data), nil
}

// unmarshalDetails parses stored details. Numbers decode as json.Number so
// that a re-marshal is byte-identical.
func unmarshalDetails(data string) (map[string]any, error) {
	if data == "" || data == "{}" {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("unmarshal details: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}
