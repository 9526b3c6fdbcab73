package vocab

import (
	_ "embed"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/jonathan/style-tagger/internal/textsim"
)

//go:embed aliases.json
var aliasesJSON []byte

// DefaultBoxPrefix canonicalizes bare "BX-" styles to the generic box
// family.
const DefaultBoxPrefix = "BX4"

var (
	strictTagRe  = regexp.MustCompile(`^[A-Z][A-Z0-9]*(-[A-Z0-9]+)*$`)
	extractTagRe = regexp.MustCompile(`[A-Z][A-Z0-9-]+`)
	vendorRe     = regexp.MustCompile(`^[A-Z]{2,}_(.+)$`)
	vendorBXRe   = regexp.MustCompile(`^[A-Z]{2,}[-_]?BX[-_](.+)$`)
	skHeadingRe  = regexp.MustCompile(`^SK_H[1-6]$`)
	headingRe    = regexp.MustCompile(`^H\d$`)
	tblListRe    = regexp.MustCompile(`^TBL-(BL|NL|UL)-(FIRST|MID|LAST)$`)
	numPrefixRe  = regexp.MustCompile(`^\d+-([A-Z0-9-]+)$`)
	wsRe         = regexp.MustCompile(`\s+`)
	refNumberRe  = regexp.MustCompile(`^\s*(\d+[.)]|\[\d+\])\s*`)
	refBulletRe  = regexp.MustCompile(`^\s*[\x{2022}\x{25CF}\x{2013}\x{2014}*-]\s*`)
)

var (
	listSuffixes = []string{"-FIRST", "-MID", "-LAST"}
	listBases    = map[string]struct{}{
		"BL": {}, "NL": {}, "UL": {}, "TBL": {}, "TNL": {}, "TUL": {},
	}
	tableHeadingMap = map[string]string{
		"SK_H1": "TH1", "SK_H2": "TH2", "SK_H3": "TH3", "SK_H4": "TH4",
		"TBL-H1": "TH1", "TBL-H2": "TH2", "TBL-H3": "TH3", "TBL-H4": "TH4",
	}
)

// Normalizer maps raw model output onto the allowed vocabulary.
type Normalizer struct {
	vocab   *Vocabulary
	aliases map[string]string
}

// NewNormalizer builds a Normalizer over the vocabulary with the
// embedded alias table.
func NewNormalizer(v *Vocabulary) *Normalizer {
	aliases := make(map[string]string)
	// The embedded table is compile-time data; a parse failure would be
	// a build defect, so it degrades to an empty table.
	_ = json.Unmarshal(aliasesJSON, &aliases)
	return &Normalizer{vocab: v, aliases: aliases}
}

// Vocabulary returns the normalizer's backing vocabulary.
func (n *Normalizer) Vocabulary() *Vocabulary { return n.vocab }

// SanitizeRaw reduces arbitrary model output to a tag-shaped token.
// Well-formed tags pass through uppercased; otherwise the first
// tag-shaped candidate inside the string is taken, preferring
// candidates that normalize into the vocabulary.
func (n *Normalizer) SanitizeRaw(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return GenericTag
	}
	upper := strings.ToUpper(raw)
	if strictTagRe.MatchString(upper) || skHeadingRe.MatchString(upper) {
		return upper
	}

	candidates := extractTagRe.FindAllString(upper, -1)
	if len(candidates) == 0 {
		return GenericTag
	}
	for _, c := range candidates {
		if n.vocab.Has(n.NormalizeStyle(c, "")) {
			return c
		}
	}
	return candidates[0]
}

// NormalizeStyle canonicalizes a style name: strips non-breaking
// spaces, normalizes vendor-prefixed box names to the default box
// family, strips other vendor prefixes (SK_H1..SK_H6 keep theirs,
// their table-heading meaning is contextual), applies the alias table,
// expands bare box prefixes, and removes list-position suffixes from
// non-list bases.
func (n *Normalizer) NormalizeStyle(name, boxPrefix string) string {
	text := strings.ReplaceAll(strings.TrimSpace(name), " ", " ")
	text = wsRe.ReplaceAllString(text, " ")
	if text == "" {
		return ""
	}

	family := boxPrefix
	if family == "" {
		family = DefaultBoxPrefix
	}
	if strings.Contains(text, "BX") {
		text = strings.ReplaceAll(text, "_", "-")
		if m := vendorBXRe.FindStringSubmatch(text); m != nil {
			text = family + "-" + m[1]
		} else if strings.HasPrefix(text, "BX-") {
			text = family + "-" + text[3:]
		}
		text = strings.ToUpper(text)
	}

	if !skHeadingRe.MatchString(text) {
		if m := vendorRe.FindStringSubmatch(text); m != nil {
			text = m[1]
		}
	}

	if alias, ok := n.aliases[text]; ok {
		text = alias
	}

	// Aliases can reintroduce a bare box prefix.
	if strings.HasPrefix(text, "BX-") {
		text = family + "-" + text[3:]
	}

	for _, suffix := range listSuffixes {
		if !strings.HasSuffix(text, suffix) {
			continue
		}
		base := strings.TrimSuffix(text, suffix)
		if _, listBase := listBases[base]; !listBase && !hasListBaseSuffix(base) {
			text = base
		}
		break
	}

	return text
}

func hasListBaseSuffix(base string) bool {
	for _, s := range []string{"-BL", "-NL", "-UL", "-TBL", "-TNL", "-TUL"} {
		if strings.HasSuffix(base, s) {
			return true
		}
	}
	return false
}

// MapAlias resolves contextual aliases that depend on the paragraph's
// zone and text: table-heading remaps, reference-zone list remaps, and
// box-family expansion of bare subtype tokens.
func (n *Normalizer) MapAlias(tag, zone, text string) string {
	mapped := n.NormalizeStyle(n.SanitizeRaw(tag), "")

	inRefZone := zone == "BACK_MATTER" || zone == "REFERENCE"
	trimmed := strings.TrimSpace(text)
	bulleted := refBulletRe.MatchString(trimmed)

	if zone == "TABLE" {
		if candidate, ok := tableHeadingMap[mapped]; ok && n.vocab.Has(candidate) {
			return candidate
		}
	}

	if inRefZone && (strings.HasPrefix(mapped, "UL-") || strings.HasPrefix(mapped, "BL-") || strings.HasPrefix(mapped, "NL-")) {
		if candidate := refListTag(bulleted); n.vocab.Has(candidate) {
			return candidate
		}
	}

	switch mapped {
	case "BIBITEM", "REF":
		if candidate := refListTag(bulleted); n.vocab.Has(candidate) {
			return candidate
		}
	case "TTL":
		if boxFamily := boxZonePrefix(zone); boxFamily != "" {
			if candidate := boxFamily + "-TTL"; n.vocab.Has(candidate) {
				return candidate
			}
		}
		if zone == "TABLE" {
			for _, candidate := range []string{"T1", "T2", "T"} {
				if n.vocab.Has(candidate) {
					return candidate
				}
			}
		}
	case "TYPE":
		if boxFamily := boxZonePrefix(zone); boxFamily != "" {
			if candidate := boxFamily + "-TYPE"; n.vocab.Has(candidate) {
				return candidate
			}
		}
		if zone == "TABLE" && n.vocab.Has("T") {
			return "T"
		}
	}

	// Table list spellings like TBL-NL-MID collapse to the canonical
	// TNL/TUL families.
	if m := tblListRe.FindStringSubmatch(mapped); m != nil {
		var candidate string
		switch m[1] {
		case "BL":
			candidate = "TBL-" + m[2]
		case "NL":
			candidate = "TNL-" + m[2]
		default:
			candidate = "TUL-" + m[2]
		}
		if n.vocab.Has(candidate) {
			return candidate
		}
	}

	// Numeric-prefixed shorthand (e.g. "2-TTL") binds to the zone's box
	// family when there is one.
	if m := numPrefixRe.FindStringSubmatch(mapped); m != nil {
		if boxFamily := boxZonePrefix(zone); boxFamily != "" {
			if candidate := boxFamily + "-" + m[1]; n.vocab.Has(candidate) {
				return candidate
			}
		}
		mapped = m[1]
	}

	// Bare subtype tokens inside a box zone bind to the zone family.
	if boxFamily := boxZonePrefix(zone); boxFamily != "" && !n.vocab.Has(mapped) {
		if candidate := boxFamily + "-" + mapped; n.vocab.Has(candidate) {
			return candidate
		}
	}

	return mapped
}

// Canonicalize runs the full normalization chain for one raw tag and
// returns a vocabulary member. The boolean reports whether the result
// differs from the raw input.
func (n *Normalizer) Canonicalize(raw, zone, text string) (string, bool) {
	mapped := n.MapAlias(raw, zone, text)
	if n.vocab.Has(mapped) {
		return mapped, mapped != raw
	}

	if fb := n.familyFallback(mapped); fb != "" {
		return fb, true
	}

	if closest := n.closestMatch(mapped); closest != "" {
		return closest, true
	}

	return GenericTag, raw != GenericTag
}

// familyFallback degrades an unknown tag within its style family:
// unknown headings become H1, list tags keep their position, table
// tags collapse to T, box tags to the BX1 family.
func (n *Normalizer) familyFallback(tag string) string {
	upper := strings.ToUpper(tag)

	if headingRe.MatchString(upper) && n.vocab.Has("H1") {
		return "H1"
	}

	for _, family := range []string{"BL", "NL", "UL"} {
		if !strings.Contains(upper, family) {
			continue
		}
		pos := "MID"
		if strings.Contains(upper, "FIRST") {
			pos = "FIRST"
		} else if strings.Contains(upper, "LAST") {
			pos = "LAST"
		}
		if candidate := family + "-" + pos; n.vocab.Has(candidate) {
			return candidate
		}
		if candidate := family + "-MID"; n.vocab.Has(candidate) {
			return candidate
		}
	}

	if strings.HasPrefix(upper, "T") && len(upper) <= 3 && n.vocab.Has("T") {
		return "T"
	}

	if strings.Contains(upper, "TXT") || strings.Contains(upper, "TEXT") {
		return GenericTag
	}

	if strings.Contains(upper, "BX") {
		if strings.Contains(upper, "TTL") && n.vocab.Has("BX1-TTL") {
			return "BX1-TTL"
		}
		if n.vocab.Has("BX1-TXT") {
			return "BX1-TXT"
		}
	}

	return ""
}

// closestMatch returns the vocabulary style within Levenshtein
// distance 2 of the tag, when one exists unambiguously close.
func (n *Normalizer) closestMatch(tag string) string {
	if tag == "" {
		return ""
	}
	best := ""
	bestDist := 3
	for _, style := range n.vocab.List() {
		d := textsim.Levenshtein(tag, style)
		if d < bestDist {
			bestDist = d
			best = style
		}
	}
	return best
}

// RefListTag picks the reference list style for a paragraph based on
// its visual marker.
func RefListTag(bulleted bool) string {
	return refListTag(bulleted)
}

func refListTag(bulleted bool) string {
	if bulleted {
		return "REF-U"
	}
	return "REF-N"
}

// IsNumbered reports whether text starts with a reference-style
// number marker.
func IsNumbered(text string) bool {
	return refNumberRe.MatchString(strings.TrimSpace(text))
}

// IsBulleted reports whether text starts with a bullet marker.
func IsBulleted(text string) bool {
	return refBulletRe.MatchString(strings.TrimSpace(text))
}

func boxZonePrefix(zone string) string {
	if strings.HasPrefix(zone, "BOX_") {
		return strings.TrimPrefix(zone, "BOX_")
	}
	return ""
}
