// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jonathan/style-tagger/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 10
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintRunSummary outputs the end-of-run totals: prediction sources,
// rule coverage, cache effectiveness and token usage.
func (p *Printer) PrintRunSummary(stats *types.RunStats) {
	if stats == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Paragraphs:        %d\n", stats.TotalParagraphs))
	sb.WriteString(fmt.Sprintf("Rule-based:        %d (%.1f%% coverage)\n", stats.RulePredictions, stats.RuleCoverage*100))
	sb.WriteString(fmt.Sprintf("Cache hits:        %d\n", stats.CachePredictions))
	sb.WriteString(fmt.Sprintf("LLM predictions:   %d\n", stats.LLMPredictions))
	if stats.FallbackTags > 0 {
		sb.WriteString(fmt.Sprintf("Grounded fallback: %d\n", stats.FallbackTags))
	}
	sb.WriteString(fmt.Sprintf("Chunks:            %d dispatched, %d failed\n", stats.ChunksDispatched, stats.ChunksFailed))
	if stats.FallbackCalls > 0 {
		sb.WriteString(fmt.Sprintf("Fallback model:    %d calls, %d improved\n", stats.FallbackCalls, stats.ItemsImproved))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Tokens: %d in / %d out / %d total",
		stats.Usage.InputTokens, stats.Usage.OutputTokens, stats.Usage.TotalTokens))

	p.printBox("CLASSIFICATION RUN SUMMARY", sb.String())
}

// PrintCacheStats outputs prediction-cache effectiveness for the run.
func (p *Printer) PrintCacheStats(stats types.CacheStats) {
	if stats.Hits == 0 && stats.Misses == 0 {
		return
	}

	content := fmt.Sprintf("Hits:     %d\nMisses:   %d\nHit rate: %.1f%%",
		stats.Hits, stats.Misses, stats.HitRate*100)
	p.printBox("PREDICTION CACHE", content)
}

// PrintTagDistribution outputs the most frequent tags in a result set.
func (p *Printer) PrintTagDistribution(results []types.Classification) {
	if len(results) == 0 {
		return
	}

	counts := make(map[string]int)
	for _, r := range results {
		counts[r.Tag]++
	}

	tags := make([]string, 0, len(counts))
	for tag := range counts {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		if counts[tags[i]] != counts[tags[j]] {
			return counts[tags[i]] > counts[tags[j]]
		}
		return tags[i] < tags[j]
	})

	var sb strings.Builder
	count := min(len(tags), maxItemsToShow)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("%-12s %d\n", tags[i], counts[tags[i]]))
	}
	if len(tags) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more tags\n", len(tags)-maxItemsToShow))
	}

	p.printBox("TAG DISTRIBUTION", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintZoneViolations outputs results flagged for editor review.
func (p *Printer) PrintZoneViolations(results []types.Classification) {
	var violations []types.Classification
	for _, r := range results {
		if r.ZoneViolation {
			violations = append(violations, r)
		}
	}
	if len(violations) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Flagged for review: %d\n\n", len(violations)))
	count := min(len(violations), maxItemsToShow)
	for i := 0; i < count; i++ {
		v := violations[i]
		sb.WriteString(fmt.Sprintf("[%d] %s (conf %d)\n", v.ID, v.Tag, v.Confidence))
	}
	if len(violations) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more\n", len(violations)-maxItemsToShow))
	}

	p.printBox("ZONE VIOLATIONS", strings.TrimSuffix(sb.String(), "\n"))
}
