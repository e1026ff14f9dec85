package bot

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests.
// Version suffix enables future algorithm migration.
const (
	DomainFlow  = "botsync/flow/v1"
	DomainRules = "botsync/airules/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// FlowDigest identifies the local content of a flow. Two flows with the same
// name, content and commands have the same digest regardless of the file
// they were read from.
func FlowDigest(f Flow) (string, error) {
	obj := map[string]any{
		"name":    f.Name,
		"content": f.Content,
	}
	if f.Commands != nil {
		obj["commands"] = f.Commands
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("FlowDigest: %w", err)
	}
	return hashWithDomain(DomainFlow, canonical), nil
}

// RulesDigest identifies an AI rule set. Rules are opaque, so the digest is
// taken over their compact JSON encoding in order.
func RulesDigest(rules AiRuleSet) (string, error) {
	data, err := rules.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("RulesDigest: %w", err)
	}
	return hashWithDomain(DomainRules, data), nil
}
