// Package features extracts deterministic boolean and string features
// from paragraph text and structural metadata. The feature set is the
// shared input of rule learning and rule inference, so extraction must
// stay pure: same text and metadata, same features, no I/O.
package features

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/jonathan/style-tagger/internal/types"
)

var (
	numberedRe = regexp.MustCompile(`^\s*(\d+[.)]|\(\d+\)|\[\d+\])\s+`)
	letteredRe = regexp.MustCompile(`(?i)^\s*([a-z][.)]|\([a-z]\))\s+`)
	romanRe    = regexp.MustCompile(`(?i)^\s*([ivxlcdm]+[.)]|\([ivxlcdm]+\))\s+`)
	bulletRe   = regexp.MustCompile(`^\s*[\x{2022}\x{25CF}\x{2013}\x{2014}*-]\s+`)
	allCapsRe  = regexp.MustCompile(`^[A-Z\s\d\-,.:;!?'"]+$`)
	yearRe     = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	sentEndRe  = regexp.MustCompile(`[.!?]\s*$`)
	footLetRe  = regexp.MustCompile(`^[a-z]\)`)
)

// Set holds extracted features. Boolean features are only meaningful
// when true; string features are matched by equality.
type Set struct {
	Bools   map[string]bool
	Strings map[string]string
}

// Matches evaluates a rule condition against the set. Bare names match
// a true boolean feature; "name=value" matches a string feature by
// equality.
func (s Set) Matches(condition string) bool {
	if name, value, ok := strings.Cut(condition, "="); ok {
		return s.Strings[name] == value
	}
	return s.Bools[condition]
}

// Extract computes the feature set for one paragraph.
func Extract(text, zone string, meta types.ParagraphMeta) Set {
	stripped := strings.TrimSpace(text)
	lower := strings.ToLower(stripped)
	if zone == "" {
		zone = types.ZoneBody
	}

	bools := map[string]bool{
		"is_empty": stripped == "",
		"is_short": len(stripped) < 50,
		"is_long":  len(stripped) > 500,

		"has_number_prefix": numberedRe.MatchString(stripped),
		"has_letter_prefix": letteredRe.MatchString(stripped),
		"has_roman_prefix":  romanRe.MatchString(stripped),
		"has_bullet":        bulletRe.MatchString(stripped) || meta.ListKind == "bullet",

		"is_all_caps":       stripped != "" && allCapsRe.MatchString(stripped),
		"starts_with_digit": startsWithDigit(stripped),
		"ends_with_period":  strings.HasSuffix(stripped, "."),
		"ends_with_colon":   strings.HasSuffix(stripped, ":"),
		"has_citation_year": yearRe.MatchString(text),

		"looks_like_heading":   looksLikeHeading(stripped),
		"looks_like_caption":   looksLikeCaption(lower),
		"looks_like_reference": LooksLikeReference(text),
		"looks_like_footnote":  looksLikeFootnote(stripped),

		"is_in_table":       zone == types.ZoneTable,
		"is_in_box":         types.IsBoxZone(zone),
		"is_in_back_matter": zone == types.ZoneBackMatter,
		"is_header_row":     meta.IsHeaderRow,
	}

	strs := map[string]string{"zone": zone}
	if meta.ListKind != "" {
		strs["list_kind"] = meta.ListKind
	}
	if meta.ListPosition != "" {
		strs["list_position"] = meta.ListPosition
	}

	return Set{Bools: bools, Strings: strs}
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

func looksLikeHeading(s string) bool {
	if s == "" || len(s) > 200 {
		return false
	}
	if sentEndRe.MatchString(s) {
		return false
	}
	words := strings.Fields(s)
	if len(words) == 0 {
		return false
	}
	titled := 0
	for _, w := range words {
		r := []rune(w)[0]
		if unicode.IsUpper(r) {
			titled++
		}
	}
	need := int(0.6 * float64(len(words)))
	if need < 1 {
		need = 1
	}
	return titled >= need
}

func looksLikeCaption(lower string) bool {
	for _, prefix := range []string{"figure", "table", "fig.", "tab."} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// LooksLikeReference reports whether text resembles a bibliography
// entry. Exported because reference-zone detection reuses it.
func LooksLikeReference(text string) bool {
	stripped := strings.TrimSpace(text)
	if stripped == "" {
		return false
	}
	if numberedRe.MatchString(stripped) || bulletRe.MatchString(stripped) {
		return true
	}
	lower := strings.ToLower(stripped)
	hasSignal := yearRe.MatchString(lower) ||
		strings.Contains(lower, "doi") ||
		strings.Contains(lower, "et al")
	punct := strings.Count(text, ".") + strings.Count(text, ";") +
		strings.Count(text, ":") + strings.Count(text, ",")
	return hasSignal && punct >= 2
}

func looksLikeFootnote(s string) bool {
	for _, prefix := range []string{"*", "†", "‡"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return footLetRe.MatchString(s)
}
