package rules

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jonathan/style-tagger/internal/schemas"
	"github.com/jonathan/style-tagger/internal/types"
)

// Save writes the rule set as an indented JSON artifact.
func Save(path string, rs *types.RuleSet) error {
	data, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal rule set: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write rule set to %s: %w", path, err)
	}
	return nil
}

// Load reads a rule set artifact, validating it against the embedded
// schema before unmarshaling. Invalid artifacts are rejected rather
// than partially loaded.
func Load(path string) (*types.RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule set from %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates and unmarshals rule set JSON.
func Parse(data []byte) (*types.RuleSet, error) {
	if err := schemas.Validate(schemas.RuleSetSchema, string(data)); err != nil {
		return nil, fmt.Errorf("rule set artifact rejected: %w", err)
	}
	var rs types.RuleSet
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse rule set: %w", err)
	}
	return &rs, nil
}
