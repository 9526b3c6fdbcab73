package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/style-tagger/internal/llm"
	"github.com/jonathan/style-tagger/internal/prompts"
	"github.com/jonathan/style-tagger/internal/types"
)

// processFallback re-classifies low-confidence items in small batches
// with the fallback-tier model and merges in improvements (higher
// confidence or a changed tag). Results are mutated in place; batch
// failures leave the originals untouched.
func (o *Orchestrator) processFallback(ctx context.Context, results []types.Classification, paraByID map[int]types.Paragraph, documentName string, stats *types.RunStats) {
	var low []int
	for i, r := range results {
		if r.Confidence < o.opts.FallbackThreshold {
			low = append(low, i)
		}
	}
	if len(low) == 0 {
		return
	}

	fallbackSystem, err := prompts.FallbackSystemPrompt()
	if err != nil {
		return
	}

	fmt.Printf("Fallback model: processing %d low-confidence items (threshold: %d%%)\n",
		len(low), o.opts.FallbackThreshold)

	for start := 0; start < len(low); start += fallbackBatchSize {
		batch := low[start:min(start+fallbackBatchSize, len(low))]
		prompt := fallbackSystem + "\n\n" + o.buildFallbackPrompt(batch, results, paraByID, documentName)

		response, usage, err := o.client.GenerateJSON(ctx, prompt, llm.TierFallback)
		stats.Usage.Add(usage)
		stats.FallbackCalls++
		if err != nil {
			fmt.Printf("Warning: fallback batch failed: %v\n", err)
			continue
		}
		raws, err := llm.ParseClassifications(response)
		if err != nil {
			fmt.Printf("Warning: fallback response unparseable: %v\n", err)
			continue
		}

		rawByID := make(map[int]llm.RawClassification, len(raws))
		for _, raw := range raws {
			if _, dup := rawByID[raw.ID]; !dup {
				rawByID[raw.ID] = raw
			}
		}

		for _, idx := range batch {
			r := &results[idx]
			fb, ok := rawByID[r.ID]
			if !ok {
				continue
			}
			p, ok := paraByID[r.ID]
			if !ok {
				continue
			}

			newTag, _ := o.norm.Canonicalize(fb.Tag, p.EffectiveZone(), p.Text)
			newConf := llm.NormalizeConfidence(fb.Confidence)
			if newConf <= r.Confidence && newTag == r.Tag {
				continue
			}

			if newTag != r.Tag {
				stats.ItemsImproved++
			}
			r.Tag = newTag
			r.Confidence = newConf
			r.FallbackModel = true
			if fb.Reasoning != "" {
				r.Reasoning = "[fallback] " + fb.Reasoning
			}
		}
	}
}

// buildFallbackPrompt renders the difficult-cases request: each item
// with its zone, current prediction and neighboring tags for context.
func (o *Orchestrator) buildFallbackPrompt(batch []int, results []types.Classification, paraByID map[int]types.Paragraph, documentName string) string {
	var items strings.Builder
	for _, idx := range batch {
		r := results[idx]
		p := paraByID[r.ID]

		var context []string
		if idx > 0 {
			context = append(context, fmt.Sprintf("BEFORE: [%s]", results[idx-1].Tag))
		}
		if idx < len(results)-1 {
			context = append(context, fmt.Sprintf("AFTER: [%s]", results[idx+1].Tag))
		}

		fmt.Fprintf(&items, "\n[ID: %d]\nZone: %s\nCurrent: %s (%d%%)\n", r.ID, p.EffectiveZone(), r.Tag, r.Confidence)
		if r.Reasoning != "" {
			fmt.Fprintf(&items, "Reason: %s\n", r.Reasoning)
		}
		if len(context) > 0 {
			fmt.Fprintf(&items, "Context: %s\n", strings.Join(context, " "))
		}
		fmt.Fprintf(&items, "Text: %s\n", p.Text)
	}

	return fmt.Sprintf(`Document: %s

The following %d paragraphs received LOW CONFIDENCE scores from the primary classifier.
Please re-analyze each and provide your best classification.

Focus on:
1. Zone constraints (style must match the zone)
2. Context from neighboring paragraphs
3. Text patterns (bullets, numbers, headings, etc.)

---
%s---

Return a JSON array with your classifications for all %d items:
[{"id": ID, "tag": "STYLE", "confidence": 85-99, "reasoning": "brief reason"}]`,
		documentName, len(batch), items.String(), len(batch))
}
