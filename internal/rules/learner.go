// Package rules learns deterministic if-then classification rules from
// the aligned ground-truth corpus and applies them at inference time.
// A matching high-confidence rule answers a paragraph locally, without
// an LLM call.
package rules

import (
	"sort"
	"time"

	"github.com/jonathan/style-tagger/internal/features"
	"github.com/jonathan/style-tagger/internal/types"
)

// Training defaults.
const (
	DefaultMinSupport    = 10
	DefaultMinConfidence = 0.80
)

// TrainOptions tune rule admission.
type TrainOptions struct {
	// MinSupport is the minimum number of examples a rule must cover
	// with a correct prediction.
	MinSupport int
	// MinConfidence is the minimum precision P(tag | condition).
	MinConfidence float64
}

func (o TrainOptions) withDefaults() TrainOptions {
	if o.MinSupport <= 0 {
		o.MinSupport = DefaultMinSupport
	}
	if o.MinConfidence <= 0 {
		o.MinConfidence = DefaultMinConfidence
	}
	return o
}

// Train derives single-condition rules from the corpus. For every tag
// with enough examples, each feature condition observed on that tag
// becomes a candidate; candidates are kept when their support and
// precision over the whole corpus clear the thresholds. The output is
// deterministic for a given corpus: rules are ordered by confidence,
// then support, then condition and tag.
func Train(examples []types.LabeledExample, opts TrainOptions) *types.RuleSet {
	opts = opts.withDefaults()

	sets, labels := corpusFeatures(examples)

	byTag := make(map[string][]int)
	for i, label := range labels {
		byTag[label] = append(byTag[label], i)
	}

	var learned []types.Rule
	for tag, idxs := range byTag {
		if len(idxs) < opts.MinSupport {
			continue
		}

		condCounts := make(map[string]int)
		for _, i := range idxs {
			for name, v := range sets[i].Bools {
				if v {
					condCounts[name]++
				}
			}
			for name, v := range sets[i].Strings {
				if v != "" {
					condCounts[name+"="+v]++
				}
			}
		}

		for cond, support := range condCounts {
			if support < opts.MinSupport {
				continue
			}
			total := 0
			for i := range sets {
				if sets[i].Matches(cond) {
					total++
				}
			}
			if total == 0 {
				continue
			}
			confidence := float64(support) / float64(total)
			if confidence >= opts.MinConfidence {
				learned = append(learned, types.Rule{
					Condition:  cond,
					Tag:        tag,
					Support:    support,
					Total:      total,
					Confidence: confidence,
				})
			}
		}
	}

	sort.Slice(learned, func(a, b int) bool {
		ra, rb := learned[a], learned[b]
		if ra.Confidence != rb.Confidence {
			return ra.Confidence > rb.Confidence
		}
		if ra.Support != rb.Support {
			return ra.Support > rb.Support
		}
		if ra.Condition != rb.Condition {
			return ra.Condition < rb.Condition
		}
		return ra.Tag < rb.Tag
	})

	return &types.RuleSet{
		Version:   1,
		TrainedAt: time.Now().UTC().Format(time.RFC3339),
		Examples:  len(sets),
		Rules:     learned,
	}
}

// corpusFeatures extracts per-example feature sets, augmented with
// prev_tag/next_tag context within each document. Unmapped examples
// are skipped; document boundaries get START/END sentinels.
func corpusFeatures(examples []types.LabeledExample) ([]features.Set, []string) {
	byDoc := make(map[string][]types.LabeledExample)
	var docOrder []string
	for _, ex := range examples {
		if _, seen := byDoc[ex.DocID]; !seen {
			docOrder = append(docOrder, ex.DocID)
		}
		byDoc[ex.DocID] = append(byDoc[ex.DocID], ex)
	}

	var sets []features.Set
	var labels []string
	for _, docID := range docOrder {
		entries := byDoc[docID]
		sort.Slice(entries, func(a, b int) bool {
			return entries[a].ParaIndex < entries[b].ParaIndex
		})
		for i, ex := range entries {
			if !ex.Mapped() || ex.Text == "" {
				continue
			}
			set := features.Extract(ex.Text, ex.Zone, ex.Meta)
			if i > 0 {
				set.Strings["prev_tag"] = entries[i-1].Tag
			} else {
				set.Strings["prev_tag"] = "START"
			}
			if i < len(entries)-1 {
				set.Strings["next_tag"] = entries[i+1].Tag
			} else {
				set.Strings["next_tag"] = "END"
			}
			sets = append(sets, set)
			labels = append(labels, ex.Tag)
		}
	}
	return sets, labels
}
