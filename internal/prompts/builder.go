package prompts

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jonathan/style-tagger/internal/types"
	"github.com/jonathan/style-tagger/internal/vocab"
)

var (
	visibleBulletRe = regexp.MustCompile(`^\s*[\x{2022}\x{25CF}\x{25AA}\x{25CB}*-]`)
	visibleNumberRe = regexp.MustCompile(`^\s*[\d\w]+\.`)
)

// UserPromptInput carries everything needed to render one chunk's
// classification request.
type UserPromptInput struct {
	Paragraphs   []types.Paragraph
	DocumentName string
	DocumentType string
	// ChunkInfo is a human-readable position marker like
	// "Chunk 2 of 5 (paragraphs 76-150)".
	ChunkInfo string
	// Grounded is the pre-formatted ground-truth examples section, empty
	// when retrieval is disabled.
	Grounded string
}

// BuildUserPrompt renders the chunk prompt: paragraph lines with zone
// and structure hints, per-zone valid-style notes, grounded examples,
// and the closed tag list.
func BuildUserPrompt(in UserPromptInput, v *vocab.Vocabulary) string {
	docType := in.DocumentType
	if docType == "" {
		docType = "Academic Document"
	}

	lines := make([]string, 0, len(in.Paragraphs))
	zoneCounts := make(map[string]int)
	for _, p := range in.Paragraphs {
		zone := p.EffectiveZone()
		zoneCounts[zone]++
		lines = append(lines, paragraphLine(p, zone))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Document: %s\n", in.DocumentName)
	fmt.Fprintf(&b, "Document Type: %s\n", docType)
	fmt.Fprintf(&b, "Total Paragraphs in this batch: %d\n", len(in.Paragraphs))
	if in.ChunkInfo != "" {
		b.WriteString(in.ChunkInfo)
		b.WriteString("\n")
	}
	b.WriteString(zoneSection(zoneCounts, v))
	if in.Grounded != "" {
		b.WriteString("\n")
		b.WriteString(in.Grounded)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nIMPORTANT: Return a complete JSON array with ALL %d paragraphs classified.\n", len(in.Paragraphs))
	fmt.Fprintf(&b, "IMPORTANT: Return ONLY one of these tags exactly (case-sensitive): %s\n", strings.Join(v.List(), ", "))
	b.WriteString("IMPORTANT: The `tag` value must be only the exact style token, with no punctuation, labels, or commentary.\n")
	if in.Grounded != "" {
		b.WriteString("IMPORTANT: Learn from the GROUND TRUTH EXAMPLES above - they show real manual-tagged patterns from similar books.\n")
	}
	fmt.Fprintf(&b, "IMPORTANT: If unsure, choose %s.\n", vocab.GenericTag)
	b.WriteString("\n---\n\nClassify each paragraph below:\n\n")
	b.WriteString(strings.Join(lines, "\n"))
	return b.String()
}

// paragraphLine renders one paragraph with its context hint. List
// markers stripped upstream are re-surfaced as visual cues so the
// model sees what the page shows.
func paragraphLine(p types.Paragraph, zone string) string {
	text := p.Text
	switch p.Meta.ListKind {
	case "bullet":
		if !visibleBulletRe.MatchString(text) {
			text = "• " + text
		}
	case "numbered":
		if !visibleNumberRe.MatchString(text) {
			text = "1. " + text
		}
	}

	var hints []string
	if zone != types.ZoneBody {
		hints = append(hints, zone)
	}
	if p.Meta.IsTable {
		if p.Meta.IsHeaderRow {
			hints = append(hints, "TABLE,HEADER_ROW")
		} else {
			hints = append(hints, "TABLE")
		}
	}
	if p.Meta.ListKind != "" {
		if p.Meta.ListPosition != "" {
			hints = append(hints, fmt.Sprintf("LIST:%s,%s", p.Meta.ListKind, p.Meta.ListPosition))
		} else {
			hints = append(hints, "LIST:"+p.Meta.ListKind)
		}
	}
	if p.Meta.BoxMarker != "" {
		hints = append(hints, "BOX_MARKER:"+p.Meta.BoxMarker)
	}

	hint := ""
	if len(hints) > 0 {
		hint = fmt.Sprintf(" [%s]", strings.Join(hints, " | "))
	}
	return fmt.Sprintf("[%d]%s %s", p.ID, hint, text)
}

// zoneSection lists the zones present in the chunk with their valid
// styles so the model sees the constraints it will be validated
// against.
func zoneSection(zoneCounts map[string]int, v *vocab.Vocabulary) string {
	if len(zoneCounts) == 0 {
		return ""
	}

	zones := make([]string, 0, len(zoneCounts))
	for z := range zoneCounts {
		zones = append(zones, z)
	}
	sort.Strings(zones)

	descriptions := map[string]string{
		types.ZoneMetadata:    "Pre-press info",
		types.ZoneFrontMatter: "Chapter opener/objectives",
		types.ZoneTable:       "Table cell content",
		types.ZoneBackMatter:  "References/end-of-chapter",
		types.ZoneBody:        "Main chapter content",
	}

	var notes []string
	for _, z := range zones {
		desc, ok := descriptions[z]
		if !ok && types.IsBoxZone(z) {
			desc = "Box content"
		}
		notes = append(notes, fmt.Sprintf("- %s (%d items): %s", z, zoneCounts[z], desc))

		if patterns := v.ZonePatterns(z); patterns != nil {
			notes = append(notes, "  VALID STYLES: "+strings.Join(patterns, ", "))
		} else if types.IsBoxZone(z) {
			notes = append(notes, fmt.Sprintf("  VALID STYLES: %s-* styles", strings.TrimPrefix(z, types.BoxZonePrefix)))
		} else {
			notes = append(notes, "  VALID STYLES: Full range (H1-H6, TXT, BL-*, NL-*, etc.)")
		}
	}

	return "\nCONTEXT ZONES DETECTED:\n" + strings.Join(notes, "\n") +
		"\n\nIMPORTANT: Use ONLY styles valid for each paragraph's zone. Zone violations will be flagged.\n"
}
