package zone

import (
	"fmt"
	"strings"

	"github.com/jonathan/style-tagger/internal/types"
	"github.com/jonathan/style-tagger/internal/vocab"
)

// Confidence ceilings applied when zone validation rewrites or flags a
// tag. Deterministic fallbacks are trustworthy enough to keep moderate
// confidence; unresolved violations are pushed below review thresholds.
const (
	FallbackConfidenceCap  = 70
	ViolationConfidenceCap = 60
)

// Validator enforces zone-style legality on classification results.
type Validator struct {
	vocab *vocab.Vocabulary
	norm  *vocab.Normalizer
}

// NewValidator builds a Validator over the vocabulary.
func NewValidator(n *vocab.Normalizer) *Validator {
	return &Validator{vocab: n.Vocabulary(), norm: n}
}

// Validate checks every result against its paragraph's zone and
// repairs illegal tags in place. Resolution order: contextual alias
// remap, then a deterministic per-zone fallback; results that survive
// neither are flagged as zone violations with reduced confidence.
// BODY paragraphs are never constrained.
func (v *Validator) Validate(results []types.Classification, paras []types.Paragraph) []types.Classification {
	paraByID := make(map[int]types.Paragraph, len(paras))
	for _, p := range paras {
		paraByID[p.ID] = p
	}

	for i := range results {
		para, ok := paraByID[results[i].ID]
		if !ok {
			continue
		}
		zone := para.EffectiveZone()
		if zone == types.ZoneBody {
			continue
		}
		if v.vocab.AllowedInZone(results[i].Tag, zone) {
			continue
		}

		if remapped := v.norm.MapAlias(results[i].Tag, zone, para.Text); v.vocab.AllowedInZone(remapped, zone) && v.vocab.Has(remapped) {
			results[i].Tag = remapped
			results[i].ZoneAdjusted = true
			continue
		}

		if fb := zoneFallback(zone, para.Text); fb != "" && v.vocab.Has(fb) && v.vocab.AllowedInZone(fb, zone) {
			results[i].Tag = fb
			results[i].ZoneAdjusted = true
			results[i].Confidence = min(results[i].Confidence, FallbackConfidenceCap)
			continue
		}

		results[i].ZoneViolation = true
		results[i].Confidence = min(results[i].Confidence, ViolationConfidenceCap)
		reason := fmt.Sprintf("Zone violation: %q not valid for %s", results[i].Tag, zone)
		if results[i].Reasoning != "" {
			results[i].Reasoning += "; " + reason
		} else {
			results[i].Reasoning = reason
		}
	}
	return results
}

// zoneFallback picks the deterministic replacement tag for an illegal
// style, keyed on the zone and the paragraph's visual shape.
func zoneFallback(zone, text string) string {
	trimmed := strings.TrimSpace(text)
	switch zone {
	case types.ZoneTable:
		lower := strings.ToLower(trimmed)
		switch {
		case strings.HasPrefix(lower, "note") || strings.HasPrefix(lower, "source"):
			return "TFN"
		case vocab.IsBulleted(trimmed):
			return "TBL-MID"
		case vocab.IsNumbered(trimmed):
			return "TNL-MID"
		default:
			return "T"
		}
	case types.ZoneBackMatter:
		return vocab.RefListTag(vocab.IsBulleted(trimmed))
	case types.ZoneMetadata:
		return vocab.MetadataTag
	default:
		return vocab.GenericTag
	}
}
