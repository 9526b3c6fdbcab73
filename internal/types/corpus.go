//nolint:revive // types is a standard Go package name pattern
package types

// TagUnmapped marks an extracted paragraph the aligner could not match
// to any tagged paragraph. Unmapped examples are excluded from training
// and retrieval.
const TagUnmapped = "UNMAPPED"

// LabeledExample is one aligned (paragraph, gold tag) pair in the
// ground-truth corpus.
type LabeledExample struct {
	DocID     string `json:"doc_id"`
	ParaIndex int    `json:"para_index"`
	Text      string `json:"text"`
	Tag       string `json:"canonical_gold_tag"`
	Zone      string `json:"zone,omitempty"`
	// AlignmentScore is the similarity ratio of the match that produced
	// this example, 1.0 for exact matches.
	AlignmentScore float64       `json:"alignment_score"`
	Meta           ParagraphMeta `json:"metadata,omitempty"`
}

// Mapped reports whether the example carries a usable gold tag.
func (e LabeledExample) Mapped() bool {
	return e.Tag != "" && e.Tag != TagUnmapped
}

// Rule is a single learned (condition, tag) implication.
type Rule struct {
	// Condition is either a bare feature name ("has_bullet") that must
	// hold true, or a "feature=value" equality on a string feature
	// ("zone=TABLE", "prev_tag=H1").
	Condition string `json:"condition"`
	Tag       string `json:"predicted_tag"`
	// Support counts training examples where the condition held and the
	// tag matched; Total counts all examples where the condition held.
	Support    int     `json:"support"`
	Total      int     `json:"total"`
	Confidence float64 `json:"confidence"`
}

// RuleSet is the persisted artifact produced by training.
type RuleSet struct {
	Version   int    `json:"version"`
	TrainedAt string `json:"trained_at,omitempty"`
	// Examples is the size of the training corpus the rules came from.
	Examples int    `json:"examples"`
	Rules    []Rule `json:"rules"`
}
