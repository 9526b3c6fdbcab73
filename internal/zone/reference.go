// Package zone locates reference sections and enforces per-zone style
// legality on classification results.
package zone

import (
	"regexp"
	"strings"

	"github.com/jonathan/style-tagger/internal/types"
)

// Detection trigger reasons, recorded for run diagnostics.
const (
	TriggerHeading          = "heading_match"
	TriggerSecondaryHeading = "secondary_heading_validated"
	TriggerNone             = "none"
)

var (
	xmlTagRe = regexp.MustCompile(`</?[A-Za-z][A-Za-z0-9_-]*>`)

	// Opening structural tags that end a reference zone. Reference
	// markup (REF, SR, BIBLIO) does not count.
	zoneExitTagRe = regexp.MustCompile(`(?i)<(H[1-6]|BX|NBX|TAB)`)
	refZoneTagRe  = regexp.MustCompile(`(?i)<(REF|SR|BIBLIO)`)

	terminalPunctRe  = regexp.MustCompile(`[.!?;:]\s*$`)
	citationStartRes = []*regexp.Regexp{
		regexp.MustCompile(`^\s*\[\s*\d+\s*\]\s*[A-Z]`),
		regexp.MustCompile(`^\s*\d+\.\s+[A-Z][a-z]+,?\s+[A-Z]`),
		regexp.MustCompile(`^\s*[A-Z][a-z]+,\s+[A-Z]\.\s*\(?\d{4}\)?`),
		regexp.MustCompile(`^\s*[A-Z][a-z]+\s+et\s+al\.?\s*\(?\d{4}\)?`),
	}
	referenceFeatureRes = []*regexp.Regexp{
		regexp.MustCompile(`\bet\s+al\.?`),
		regexp.MustCompile(`\b(19|20)\d{2}\b`),
		regexp.MustCompile(`(?i)\bdoi[:\s./]`),
		regexp.MustCompile(`(?i)\b(journal|proceedings|conference|press|vol\.|volume)\b`),
		regexp.MustCompile(`[,.;:]{2,}`),
		regexp.MustCompile(`https?://`),
	}
)

// Primary heading matches that reliably open a reference zone.
var headingMatches = map[string]struct{}{
	"references":             {},
	"bibliography":           {},
	"annotated bibliography": {},
	"suggested readings":     {},
	"suggested reading":      {},
	"further reading":        {},
	"works cited":            {},
	"literature cited":       {},
	"cited references":       {},
}

// Secondary headings need citation-shaped content right after them.
var secondaryHeadings = map[string]struct{}{
	"sources":   {},
	"citations": {},
	"endnotes":  {},
}

// Detection records where a reference zone was found. Start and End
// bound the zone as a half-open paragraph index range; Start is -1
// when no zone was detected.
type Detection struct {
	Start   int
	End     int
	Trigger string
}

// Found reports whether a reference zone was detected.
func (d Detection) Found() bool { return d.Start >= 0 }

// Contains reports whether paragraph index i lies inside the zone.
func (d Detection) Contains(i int) bool {
	return d.Found() && i >= d.Start && i < d.End
}

func stripTags(text string) string {
	return strings.TrimSpace(xmlTagRe.ReplaceAllString(text, ""))
}

func isHeadingStart(text string) bool {
	cleaned := strings.ToLower(stripTags(text))
	if _, ok := headingMatches[cleaned]; ok {
		return true
	}
	// Compact variants like "Chapter References" count, long prose
	// lines and sentence-terminated lines do not.
	if len(cleaned) > 80 || terminalPunctRe.MatchString(cleaned) {
		return false
	}
	for token := range headingMatches {
		if strings.Contains(cleaned, token) {
			return true
		}
	}
	return false
}

func isSecondaryHeading(text string) bool {
	_, ok := secondaryHeadings[strings.ToLower(stripTags(text))]
	return ok
}

func signalsZoneExit(text string) bool {
	stripped := strings.TrimSpace(text)
	if stripped == "" {
		return false
	}
	return zoneExitTagRe.MatchString(stripped) && !refZoneTagRe.MatchString(stripped)
}

// looksLikeCitation applies the citation-shape check. Strict mode
// requires a citation start pattern plus two supporting features;
// relaxed mode accepts either a start pattern or three features.
func looksLikeCitation(text string, strict bool) bool {
	t := strings.TrimSpace(text)
	if len(t) < 20 {
		return false
	}
	hasStart := false
	for _, re := range citationStartRes {
		if re.MatchString(t) {
			hasStart = true
			break
		}
	}
	features := countReferenceFeatures(t)
	if strict {
		return hasStart && features >= 2
	}
	return hasStart || features >= 3
}

func countReferenceFeatures(text string) int {
	n := 0
	for _, re := range referenceFeatureRes {
		if re.MatchString(text) {
			n++
		}
	}
	return n
}

// hasAnyReferenceFeature is the lenient per-block check used for
// strong-trigger zone-end detection. Institutional-author citations
// lack a name-shaped start but still carry years or URLs.
func hasAnyReferenceFeature(text string) bool {
	t := strings.TrimSpace(text)
	if len(t) < 15 {
		return false
	}
	return countReferenceFeatures(t) >= 1
}

// findZoneEnd scans forward from the zone start and returns the index
// of the first paragraph outside the zone. Two signals end a zone: an
// opening structural tag, or a sustained streak of non-reference
// content after at least three citation-shaped blocks. Strong triggers
// (a reliable heading) use the lenient feature check and a longer
// streak threshold.
func findZoneEnd(paras []types.Paragraph, startIdx int, strongTrigger bool) int {
	total := len(paras)
	seenCitations := 0
	nonCitationStreak := 0
	streakThreshold := 12
	if strongTrigger {
		streakThreshold = 15
	}

	for idx := startIdx + 1; idx < total; idx++ {
		stripped := strings.TrimSpace(paras[idx].Text)

		if signalsZoneExit(stripped) {
			return idx
		}
		if len(stripped) < 10 {
			continue
		}

		var refLike bool
		if strongTrigger {
			refLike = hasAnyReferenceFeature(stripped)
		} else {
			refLike = looksLikeCitation(stripped, false)
		}

		if refLike {
			seenCitations++
			nonCitationStreak = 0
		} else {
			nonCitationStreak++
		}

		if seenCitations >= 3 && nonCitationStreak >= streakThreshold {
			return idx - nonCitationStreak + 1
		}
	}
	return total
}

// DetectReferenceZone finds the reference/bibliography section of a
// document. Primary trigger is an explicit heading anywhere in the
// document; the secondary trigger is a weaker heading in the last
// quarter followed by at least three strictly citation-shaped blocks
// among the next five.
func DetectReferenceZone(paras []types.Paragraph) Detection {
	det := Detection{Start: -1, Trigger: TriggerNone}
	total := len(paras)

	for idx, p := range paras {
		if isHeadingStart(p.Text) {
			det.Start = idx
			det.Trigger = TriggerHeading
			break
		}
	}

	if det.Start < 0 && total > 0 {
		minStart := total * 3 / 4
		for idx := minStart; idx < total; idx++ {
			if !isSecondaryHeading(paras[idx].Text) {
				continue
			}
			citations := 0
			for _, next := range paras[idx+1 : min(idx+6, total)] {
				if looksLikeCitation(next.Text, true) {
					citations++
				}
			}
			if citations >= 3 {
				det.Start = idx
				det.Trigger = TriggerSecondaryHeading
				break
			}
		}
	}

	if det.Start >= 0 {
		det.End = findZoneEnd(paras, det.Start, det.Trigger == TriggerHeading)
	}
	return det
}

// ApplyReferenceZone returns a copy of the paragraphs with the
// detected zone overlaid as BACK_MATTER. Metadata paragraphs keep
// their zone.
func ApplyReferenceZone(paras []types.Paragraph, det Detection) []types.Paragraph {
	out := make([]types.Paragraph, len(paras))
	copy(out, paras)
	if !det.Found() {
		return out
	}
	for i := range out {
		if det.Contains(i) && out[i].EffectiveZone() != types.ZoneMetadata {
			out[i].Zone = types.ZoneBackMatter
		}
	}
	return out
}
