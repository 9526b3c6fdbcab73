//nolint:revive // types is a standard Go package name pattern
package types

// Prediction sources, recorded on every Classification so downstream
// consumers can audit how each tag was produced.
const (
	SourceRule             = "rule"
	SourceLLM              = "llm"
	SourceCache            = "cache"
	SourceGroundedFallback = "grounded_fallback"
)

// Classification is the per-paragraph output of a run.
type Classification struct {
	ID  int    `json:"id"`
	Tag string `json:"tag"`
	// Confidence is an integer on a 0-100 scale.
	Confidence int    `json:"confidence"`
	Source     string `json:"source"`
	Reasoning  string `json:"reasoning,omitempty"`
	// RawTag preserves the model output before normalization when the
	// final tag differs from it.
	RawTag string `json:"raw_tag,omitempty"`
	// ZoneAdjusted is set when zone validation remapped the tag.
	ZoneAdjusted bool `json:"zone_adjusted,omitempty"`
	// ZoneViolation is set when the tag is illegal for its zone and no
	// remap or fallback could resolve it. The tag is kept for review.
	ZoneViolation bool `json:"zone_violation,omitempty"`
	// FallbackModel is set when the fallback-model pass produced the tag.
	FallbackModel bool `json:"fallback_model,omitempty"`
}

// TokenUsage accumulates token counts across LLM calls in a run.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add accumulates another usage record into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// CacheStats summarizes prediction-cache effectiveness for a run.
type CacheStats struct {
	Hits    int     `json:"hits"`
	Misses  int     `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// RunStats is the per-run summary surfaced by the orchestrator.
type RunStats struct {
	TotalParagraphs  int        `json:"total_paragraphs"`
	RulePredictions  int        `json:"rule_predictions"`
	LLMPredictions   int        `json:"llm_predictions"`
	CachePredictions int        `json:"cache_predictions"`
	FallbackTags     int        `json:"fallback_tags"`
	RuleCoverage     float64    `json:"rule_coverage"`
	FallbackCalls    int        `json:"fallback_calls"`
	ItemsImproved    int        `json:"items_improved"`
	ChunksDispatched int        `json:"chunks_dispatched"`
	ChunksFailed     int        `json:"chunks_failed"`
	Cache            CacheStats `json:"cache"`
	Usage            TokenUsage `json:"token_usage"`
}
