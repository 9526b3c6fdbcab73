package prompts

import (
	"regexp"
	"strings"

	"github.com/jonathan/style-tagger/internal/types"
)

// Profile selects a system prompt variant based on document texture.
type Profile string

const (
	ProfileDefault        Profile = "default"
	ProfileReferenceHeavy Profile = "reference_heavy"
	ProfileTableHeavy     Profile = "table_heavy"
	ProfileBoxHeavy       Profile = "box_heavy"
)

// Routing thresholds as fractions of total paragraphs. Reference cues
// dominate: a document that is both citation- and table-dense reads
// better with the reference variant.
const (
	refRatioThreshold   = 0.06
	tableRatioThreshold = 0.10
	boxRatioThreshold   = 0.05
)

var (
	refTokenRe = regexp.MustCompile(`(^\d+\.|\[\d+\]|\(\d{4}\))`)

	boxCueWords = []string{"box", "key points", "clinical pearl", "skill", "case"}
	refCueWords = []string{"doi", "et al", "journal"}
)

// RouteProfile inspects paragraph text and metadata and picks the
// prompt profile for the document.
func RouteProfile(paras []types.Paragraph) Profile {
	total := len(paras)
	if total == 0 {
		return ProfileDefault
	}

	var tableCount, boxCount, refCount, refTokenHits int
	for _, p := range paras {
		if p.Meta.IsTable {
			tableCount++
		}
		if types.IsBoxZone(p.EffectiveZone()) || p.Meta.BoxMarker != "" {
			boxCount++
		}

		lower := strings.ToLower(p.Text)
		if lower == "" {
			continue
		}
		if refTokenRe.MatchString(lower) {
			refTokenHits++
		}
		for _, cue := range refCueWords {
			if strings.Contains(lower, cue) {
				refCount++
				break
			}
		}
		if strings.Contains(lower, "references") || strings.Contains(lower, "bibliography") {
			refCount++
		}
		for _, cue := range boxCueWords {
			if strings.Contains(lower, cue) {
				boxCount++
				break
			}
		}
	}

	switch {
	case float64(refCount+refTokenHits)/float64(total) >= refRatioThreshold:
		return ProfileReferenceHeavy
	case float64(tableCount)/float64(total) >= tableRatioThreshold:
		return ProfileTableHeavy
	case float64(boxCount)/float64(total) >= boxRatioThreshold:
		return ProfileBoxHeavy
	default:
		return ProfileDefault
	}
}

// hintKey maps a profile to its template key.
func hintKey(profile Profile) string {
	switch profile {
	case ProfileReferenceHeavy:
		return "hint-reference-heavy"
	case ProfileTableHeavy:
		return "hint-table-heavy"
	case ProfileBoxHeavy:
		return "hint-box-heavy"
	default:
		return "hint-default"
	}
}

// SystemPrompt assembles the full system prompt for a profile: base
// template, profile hint, and the closed tag list.
func SystemPrompt(profile Profile, allowedStyles []string) (string, error) {
	base, err := Get(ClassificationFile, "system")
	if err != nil {
		return "", err
	}
	hint, err := Get(ClassificationFile, hintKey(profile))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\nPROFILE: ")
	b.WriteString(string(profile))
	b.WriteString("\n")
	b.WriteString(hint)
	b.WriteString("\n\nIMPORTANT: Output strict JSON only. Valid tags are restricted to the list below.\nVALID TAGS: ")
	b.WriteString(strings.Join(allowedStyles, ", "))
	return b.String(), nil
}

// FallbackSystemPrompt returns the difficult-cases system prompt used
// for the low-confidence improvement pass.
func FallbackSystemPrompt() (string, error) {
	return Get(ClassificationFile, "fallback-system")
}

// CorrectionSuffix renders the self-heal retry addendum listing the
// invalid tags from the previous response.
func CorrectionSuffix(invalidTags []string) (string, error) {
	tmpl, err := Get(ClassificationFile, "correction")
	if err != nil {
		return "", err
	}
	return Format(tmpl, map[string]string{"InvalidTags": strings.Join(invalidTags, ", ")}), nil
}
