package features

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/style-tagger/internal/types"
)

func TestExtract_NumberingPatterns(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		feature string
	}{
		{"arabic with dot", "1. Introduction to the method", "has_number_prefix"},
		{"arabic with paren", "2) Second point", "has_number_prefix"},
		{"bracketed", "[3] Smith J, et al.", "has_number_prefix"},
		{"lettered", "a) first option", "has_letter_prefix"},
		{"roman", "iv. Discussion", "has_roman_prefix"},
		{"bullet dot", "• key point", "has_bullet"},
		{"bullet dash", "- key point", "has_bullet"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := Extract(tt.text, types.ZoneBody, types.ParagraphMeta{})
			assert.True(t, set.Bools[tt.feature], "expected %s for %q", tt.feature, tt.text)
		})
	}
}

func TestExtract_NoPrefixOnPlainProse(t *testing.T) {
	set := Extract("The results were consistent across cohorts.", types.ZoneBody, types.ParagraphMeta{})
	assert.False(t, set.Bools["has_number_prefix"])
	assert.False(t, set.Bools["has_bullet"])
	assert.False(t, set.Bools["looks_like_heading"])
	assert.True(t, set.Bools["ends_with_period"])
}

func TestExtract_HeadingHeuristics(t *testing.T) {
	set := Extract("Clinical Assessment And Management", types.ZoneBody, types.ParagraphMeta{})
	assert.True(t, set.Bools["looks_like_heading"])
	assert.False(t, set.Bools["is_all_caps"])

	caps := Extract("METHODS", types.ZoneBody, types.ParagraphMeta{})
	assert.True(t, caps.Bools["is_all_caps"])
	assert.True(t, caps.Bools["looks_like_heading"])

	// Sentences with terminal punctuation are not headings.
	sentence := Extract("This Is A Full Sentence.", types.ZoneBody, types.ParagraphMeta{})
	assert.False(t, sentence.Bools["looks_like_heading"])
}

func TestExtract_ReferenceAndCaption(t *testing.T) {
	ref := Extract("Smith J, Jones K. Outcomes in practice. J Clin Med. 2019;12:44-51.", types.ZoneBody, types.ParagraphMeta{})
	assert.True(t, ref.Bools["looks_like_reference"])
	assert.True(t, ref.Bools["has_citation_year"])

	cap := Extract("Table 3. Baseline characteristics", types.ZoneTable, types.ParagraphMeta{})
	assert.True(t, cap.Bools["looks_like_caption"])
	assert.True(t, cap.Bools["is_in_table"])
}

func TestExtract_ZoneFeatures(t *testing.T) {
	set := Extract("text", "BOX_CASE", types.ParagraphMeta{})
	assert.True(t, set.Bools["is_in_box"])
	assert.Equal(t, "BOX_CASE", set.Strings["zone"])

	back := Extract("text", types.ZoneBackMatter, types.ParagraphMeta{})
	assert.True(t, back.Bools["is_in_back_matter"])

	// Empty zone defaults to BODY.
	body := Extract("text", "", types.ParagraphMeta{})
	assert.Equal(t, types.ZoneBody, body.Strings["zone"])
}

func TestExtract_MetadataListCues(t *testing.T) {
	meta := types.ParagraphMeta{ListKind: "bullet", ListPosition: "mid"}
	set := Extract("item text without visible marker", types.ZoneBody, meta)
	assert.True(t, set.Bools["has_bullet"])
	assert.Equal(t, "bullet", set.Strings["list_kind"])
	assert.Equal(t, "mid", set.Strings["list_position"])
}

func TestSet_Matches(t *testing.T) {
	set := Set{
		Bools:   map[string]bool{"has_bullet": true, "is_short": false},
		Strings: map[string]string{"zone": "TABLE"},
	}
	assert.True(t, set.Matches("has_bullet"))
	assert.False(t, set.Matches("is_short"))
	assert.False(t, set.Matches("unknown_feature"))
	assert.True(t, set.Matches("zone=TABLE"))
	assert.False(t, set.Matches("zone=BODY"))
}
