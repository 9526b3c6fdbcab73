package rules

import (
	"fmt"
	"strings"

	"github.com/jonathan/style-tagger/internal/types"
)

// Report renders a human-readable summary of a learned rule set,
// listing the top rules by confidence.
func Report(rs *types.RuleSet, topN int) string {
	if rs == nil || len(rs.Rules) == 0 {
		return "No rules learned yet."
	}
	if topN <= 0 || topN > len(rs.Rules) {
		topN = len(rs.Rules)
	}

	var sb strings.Builder
	sb.WriteString(strings.Repeat("=", 80) + "\n")
	sb.WriteString("LEARNED RULES REPORT\n")
	sb.WriteString(strings.Repeat("=", 80) + "\n\n")
	sb.WriteString(fmt.Sprintf("Total rules: %d\n", len(rs.Rules)))
	sb.WriteString(fmt.Sprintf("Training examples: %d\n", rs.Examples))
	if rs.TrainedAt != "" {
		sb.WriteString(fmt.Sprintf("Trained at: %s\n", rs.TrainedAt))
	}
	sb.WriteString(fmt.Sprintf("\nTop %d rules by confidence:\n", topN))
	sb.WriteString(strings.Repeat("-", 80) + "\n")

	for i, rule := range rs.Rules[:topN] {
		sb.WriteString(fmt.Sprintf("%3d. IF %-40s THEN %-15s (conf=%.1f%%, support=%d/%d)\n",
			i+1, rule.Condition, rule.Tag, rule.Confidence*100, rule.Support, rule.Total))
	}
	return sb.String()
}
