// Package llm provides the classifier-model client abstraction with
// tiered models, retry with exponential backoff, and token usage
// accounting.
package llm

import "time"

// Tier selects which configured model serves a call.
type Tier string

const (
	// TierPrimary is the main classification model.
	TierPrimary Tier = "primary"
	// TierFallback is the stronger model used for low-confidence items
	// and as a last resort when the primary model keeps failing.
	TierFallback Tier = "fallback"
)

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
)

// Retry and timeout defaults.
const (
	DefaultMaxRetries      = 3
	DefaultRetryBase       = 5 * time.Second
	DefaultRetryCap        = 60 * time.Second
	DefaultTimeout         = 120 * time.Second
	DefaultFallbackTimeout = 60 * time.Second
)

// Config holds the model configuration for the classifier.
type Config struct {
	Provider Provider
	Models   map[Tier]string
	// Temperature is kept low for reproducible tag output.
	Temperature float32
	MaxRetries  int
	RetryBase   time.Duration
	RetryCap    time.Duration
	// Timeouts bound a single API call per tier, retries excluded.
	Timeouts map[Tier]time.Duration
}

// DefaultConfig returns the default Gemini configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[Tier]string{
			TierPrimary:  "gemini-2.5-flash",
			TierFallback: "gemini-2.5-pro",
		},
		Temperature: 0.1,
		MaxRetries:  DefaultMaxRetries,
		RetryBase:   DefaultRetryBase,
		RetryCap:    DefaultRetryCap,
		Timeouts: map[Tier]time.Duration{
			TierPrimary:  DefaultTimeout,
			TierFallback: DefaultFallbackTimeout,
		},
	}
}

// GetModel returns the model name for a tier, falling back to the
// primary model when the tier is not configured.
func (c *Config) GetModel(tier Tier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	return c.Models[TierPrimary]
}

// Timeout returns the per-call timeout for a tier.
func (c *Config) Timeout(tier Tier) time.Duration {
	if t, ok := c.Timeouts[tier]; ok && t > 0 {
		return t
	}
	return DefaultTimeout
}

// WithModel returns a copy of the config with one tier's model
// replaced.
func (c *Config) WithModel(tier Tier, model string) *Config {
	out := *c
	out.Models = make(map[Tier]string, len(c.Models))
	for k, v := range c.Models {
		out.Models[k] = v
	}
	out.Models[tier] = model
	return &out
}
