// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// Config represents the CLI configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Paths
	Input      string `json:"input,omitempty"`      // Path to paragraphs JSON file
	Vocabulary string `json:"vocabulary,omitempty"` // Path to allowed-styles artifact
	RuleSet    string `json:"rule_set,omitempty"`   // Path to trained rule set artifact
	Corpus     string `json:"corpus,omitempty"`     // Path to labeled examples JSON
	Output     string `json:"output,omitempty"`     // Path to write classifications to

	// Document info
	DocumentName string `json:"document_name,omitempty"`
	DocumentType string `json:"document_type,omitempty"`

	// Models
	APIKey         string `json:"api_key,omitempty"`        // Gemini API key
	Model          string `json:"model,omitempty"`          // Primary model name
	FallbackModel  string `json:"fallback_model,omitempty"` // Fallback model name
	EnableFallback bool   `json:"enable_fallback,omitempty"`

	// Limits
	ChunkSize           int `json:"chunk_size,omitempty" validate:"omitempty,min=1,max=500"`
	Workers             int `json:"workers,omitempty" validate:"omitempty,min=1,max=32"`
	ConfidenceThreshold int `json:"confidence_threshold,omitempty" validate:"omitempty,min=0,max=100"`
	CacheTTLDays        int `json:"cache_ttl_days,omitempty" validate:"omitempty,min=1"`

	// Training
	MinSupport    int     `json:"min_support,omitempty" validate:"omitempty,min=1"`
	MinConfidence float64 `json:"min_confidence,omitempty" validate:"omitempty,gt=0,lte=1"`

	// Behavior
	Verbose     bool   `json:"verbose,omitempty"`
	DatabaseURL string `json:"database_url,omitempty"`
}

var validate = validator.New()

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return fmt.Errorf("config error: field %q fails %q constraint", f.Field(), f.Tag())
		}
		return fmt.Errorf("config error: %w", err)
	}

	// Validate file paths exist (if specified)
	for _, p := range []struct{ name, path string }{
		{"input", c.Input},
		{"vocabulary", c.Vocabulary},
		{"rule_set", c.RuleSet},
		{"corpus", c.Corpus},
	} {
		if p.path == "" {
			continue
		}
		if _, err := os.Stat(p.path); os.IsNotExist(err) {
			return fmt.Errorf("config error: %s file not found: %s", p.name, p.path)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.Input == "" {
		result.Input = defaults.Input
	}
	if result.Vocabulary == "" {
		result.Vocabulary = defaults.Vocabulary
	}
	if result.RuleSet == "" {
		result.RuleSet = defaults.RuleSet
	}
	if result.Corpus == "" {
		result.Corpus = defaults.Corpus
	}
	if result.Output == "" {
		result.Output = defaults.Output
	}
	if result.DocumentName == "" {
		result.DocumentName = defaults.DocumentName
	}
	if result.DocumentType == "" {
		result.DocumentType = defaults.DocumentType
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.Model == "" {
		result.Model = defaults.Model
	}
	if result.FallbackModel == "" {
		result.FallbackModel = defaults.FallbackModel
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}

	// Int fields: use default if zero
	if result.ChunkSize == 0 {
		result.ChunkSize = defaults.ChunkSize
	}
	if result.Workers == 0 {
		result.Workers = defaults.Workers
	}
	if result.ConfidenceThreshold == 0 {
		result.ConfidenceThreshold = defaults.ConfidenceThreshold
	}
	if result.CacheTTLDays == 0 {
		result.CacheTTLDays = defaults.CacheTTLDays
	}
	if result.MinSupport == 0 {
		result.MinSupport = defaults.MinSupport
	}
	if result.MinConfidence == 0 {
		result.MinConfidence = defaults.MinConfidence
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}
