// Package align pairs paragraphs from an untagged document with their
// counterparts in a manually tagged copy of the same document. The
// output is the labeled corpus that rule learning and retrieval build
// on.
package align

import (
	"github.com/jonathan/style-tagger/internal/textsim"
	"github.com/jonathan/style-tagger/internal/types"
)

// DefaultThreshold is the minimum similarity ratio for accepting a
// pairing. Below it the paragraph is recorded as UNMAPPED.
const DefaultThreshold = 0.85

// TaggedParagraph is one paragraph from the manually tagged document.
type TaggedParagraph struct {
	Text string `json:"text"`
	Tag  string `json:"tag"`
}

// Aligner performs greedy best-match alignment between document
// versions.
type Aligner struct {
	threshold float64
}

// New returns an Aligner with the given similarity threshold. A
// non-positive threshold falls back to DefaultThreshold.
func New(threshold float64) *Aligner {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Aligner{threshold: threshold}
}

// Align matches each original paragraph against the unused tagged
// paragraph with the highest similarity ratio. Matches at or above the
// threshold yield a labeled example carrying the gold tag and the
// score; everything else is emitted as UNMAPPED so that corpus
// consumers can exclude it. Each tagged paragraph is consumed by at
// most one original paragraph. Output order follows the original
// document.
func (a *Aligner) Align(docID string, original []types.Paragraph, tagged []TaggedParagraph) []types.LabeledExample {
	normalized := make([]string, len(tagged))
	for i, tp := range tagged {
		normalized[i] = textsim.Normalize(tp.Text)
	}
	used := make([]bool, len(tagged))

	examples := make([]types.LabeledExample, 0, len(original))
	for _, para := range original {
		ex := types.LabeledExample{
			DocID:     docID,
			ParaIndex: para.ID,
			Text:      para.Text,
			Zone:      para.EffectiveZone(),
			Tag:       types.TagUnmapped,
			Meta:      para.Meta,
		}

		origText := textsim.Normalize(para.Text)
		if origText == "" {
			examples = append(examples, ex)
			continue
		}

		bestScore := 0.0
		bestIdx := -1
		for idx, taggedText := range normalized {
			if used[idx] || taggedText == "" {
				continue
			}
			score := textsim.Ratio(origText, taggedText)
			if score > bestScore {
				bestScore = score
				bestIdx = idx
			}
		}

		ex.AlignmentScore = bestScore
		if bestIdx >= 0 && bestScore >= a.threshold {
			ex.Tag = tagged[bestIdx].Tag
			used[bestIdx] = true
		}
		examples = append(examples, ex)
	}
	return examples
}
