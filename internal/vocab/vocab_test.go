package vocab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVocab(t *testing.T) *Vocabulary {
	t.Helper()
	v, err := New([]string{
		"TXT", "TXT-FLUSH", "PMI", "QUO",
		"H1", "H2", "H3",
		"CN", "CT", "CAU",
		"BL-FIRST", "BL-MID", "BL-LAST",
		"NL-FIRST", "NL-MID", "NL-LAST",
		"UL-MID",
		"T", "T1", "T2", "TD", "TFN",
		"TH1", "TH2", "TH3",
		"TBL-FIRST", "TBL-MID", "TBL-LAST",
		"TNL-MID", "TUL-MID",
		"REF-N", "REF-U", "REFH1", "REFH2",
		"BX1-TTL", "BX1-TXT", "BX2-TTL", "BX2-TXT", "BX4-TTL", "BX4-TXT",
	}, DefaultZoneConstraints())
	require.NoError(t, err)
	return v
}

func TestNew_RequiresGenericTag(t *testing.T) {
	_, err := New([]string{"H1", "H2"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TXT")
}

func TestParse_ValidatesArtifact(t *testing.T) {
	v, err := Parse([]byte(`{"styles": ["TXT", "H1"]}`))
	require.NoError(t, err)
	assert.True(t, v.Has("H1"))
	assert.Equal(t, 2, v.Len())

	_, err = Parse([]byte(`{"styles": []}`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"zones": {}}`))
	assert.Error(t, err)
}

func TestAllowedInZone(t *testing.T) {
	v := testVocab(t)

	// BODY is unconstrained.
	assert.True(t, v.AllowedInZone("H1", "BODY"))
	assert.True(t, v.AllowedInZone("ANYTHING", "BODY"))

	// METADATA admits only PMI.
	assert.True(t, v.AllowedInZone("PMI", "METADATA"))
	assert.False(t, v.AllowedInZone("TXT", "METADATA"))

	// TABLE admits table styles, not body lists.
	assert.True(t, v.AllowedInZone("T1", "TABLE"))
	assert.True(t, v.AllowedInZone("TBL-MID", "TABLE"))
	assert.False(t, v.AllowedInZone("BL-MID", "TABLE"))
	assert.False(t, v.AllowedInZone("TXT", "TABLE"))

	// Wildcard patterns match by prefix.
	assert.True(t, v.AllowedInZone("BL-MID", "BACK_MATTER"))
	assert.True(t, v.AllowedInZone("REF-N", "BACK_MATTER"))
	assert.False(t, v.AllowedInZone("T1", "BACK_MATTER"))

	// Unknown zones are unconstrained.
	assert.True(t, v.AllowedInZone("TXT", "SIDEBAR"))
}

func TestSanitizeRaw(t *testing.T) {
	n := NewNormalizer(testVocab(t))

	assert.Equal(t, "H1", n.SanitizeRaw("h1"))
	assert.Equal(t, "BL-MID", n.SanitizeRaw("bl-mid"))
	assert.Equal(t, "TXT", n.SanitizeRaw(""))
	assert.Equal(t, "TXT", n.SanitizeRaw("???"))

	// Tag embedded in prose is recovered.
	assert.Equal(t, "BL-MID", n.SanitizeRaw("the style is BL-MID here"))
	// Vendor-prefixed output yields the vocabulary member.
	assert.Equal(t, "BL-MID", n.SanitizeRaw("WK_BL-MID"))
}

func TestNormalizeStyle(t *testing.T) {
	n := NewNormalizer(testVocab(t))

	// Vendor prefixes are stripped.
	assert.Equal(t, "TXT", n.NormalizeStyle("EFP_TXT", ""))
	assert.Equal(t, "H2", n.NormalizeStyle("EYU_H2", ""))
	// SK_H1..SK_H6 keep their prefix for contextual remapping.
	assert.Equal(t, "SK_H3", n.NormalizeStyle("SK_H3", ""))

	// Vendor box names normalize to the default box family.
	assert.Equal(t, "BX4-TTL", n.NormalizeStyle("EFP_BX_TTL", ""))
	assert.Equal(t, "BX4-TXT", n.NormalizeStyle("BX-TXT", ""))
	// Explicit box prefix wins over the default.
	assert.Equal(t, "BX2-TXT", n.NormalizeStyle("BX-TXT", "BX2"))

	// Aliases.
	assert.Equal(t, "CN", n.NormalizeStyle("CHAPTERNUMBER", ""))
	assert.Equal(t, "H1", n.NormalizeStyle("HH", ""))

	// List suffixes are dropped from non-list bases.
	assert.Equal(t, "H1", n.NormalizeStyle("H1-MID", ""))
	assert.Equal(t, "BL-MID", n.NormalizeStyle("BL-MID", ""))
	assert.Equal(t, "TNL-FIRST", n.NormalizeStyle("TNL-FIRST", ""))
}

func TestMapAlias_TableHeadings(t *testing.T) {
	n := NewNormalizer(testVocab(t))

	assert.Equal(t, "TH3", n.MapAlias("SK_H3", "TABLE", "Column header"))
	assert.Equal(t, "TH1", n.MapAlias("TBL-H1", "TABLE", ""))
	// Outside tables SK_H3 is not remapped to a table heading.
	assert.NotEqual(t, "TH3", n.MapAlias("SK_H3", "BODY", ""))
}

func TestMapAlias_ReferenceZoneLists(t *testing.T) {
	n := NewNormalizer(testVocab(t))

	assert.Equal(t, "REF-N", n.MapAlias("NL-MID", "BACK_MATTER", "12. Smith J. 2019."))
	assert.Equal(t, "REF-U", n.MapAlias("BL-MID", "BACK_MATTER", "• Smith J. 2019."))
	assert.Equal(t, "REF-N", n.MapAlias("REF", "BACK_MATTER", "3. Jones K."))
	// Body lists keep their tags.
	assert.Equal(t, "NL-MID", n.MapAlias("NL-MID", "BODY", "12. item"))
}

func TestMapAlias_BoxZoneTokens(t *testing.T) {
	n := NewNormalizer(testVocab(t))

	assert.Equal(t, "BX2-TTL", n.MapAlias("TTL", "BOX_BX2", ""))
	assert.Equal(t, "BX2-TTL", n.MapAlias("2-TTL", "BOX_BX2", ""))
	assert.Equal(t, "T1", n.MapAlias("TTL", "TABLE", ""))
}

func TestMapAlias_TableListSpellings(t *testing.T) {
	n := NewNormalizer(testVocab(t))

	assert.Equal(t, "TNL-MID", n.MapAlias("TBL-NL-MID", "TABLE", ""))
	assert.Equal(t, "TBL-FIRST", n.MapAlias("TBL-BL-FIRST", "TABLE", ""))
	assert.Equal(t, "TUL-MID", n.MapAlias("TBL-UL-MID", "TABLE", ""))
}

func TestCanonicalize_Chain(t *testing.T) {
	n := NewNormalizer(testVocab(t))

	// Already valid: unchanged.
	tag, changed := n.Canonicalize("TXT", "BODY", "prose")
	assert.Equal(t, "TXT", tag)
	assert.False(t, changed)

	// Unknown heading degrades within the family.
	tag, _ = n.Canonicalize("H7", "BODY", "Heading")
	assert.Equal(t, "H1", tag)

	// Unknown list tag keeps its position.
	tag, _ = n.Canonicalize("LIST-BL-FIRST", "BODY", "• item")
	assert.Equal(t, "BL-FIRST", tag)

	// Near-miss resolves by edit distance.
	tag, _ = n.Canonicalize("REFN", "BODY", "")
	assert.Equal(t, "REF-N", tag)

	// Hopeless input bottoms out at the generic tag.
	tag, changed = n.Canonicalize("ZZZZZZZ", "BODY", "")
	assert.Equal(t, "TXT", tag)
	assert.True(t, changed)
}

func TestIsNumberedIsBulleted(t *testing.T) {
	assert.True(t, IsNumbered("12. Smith J."))
	assert.True(t, IsNumbered("[3] Jones"))
	assert.False(t, IsNumbered("Smith J."))
	assert.True(t, IsBulleted("• item"))
	assert.False(t, IsBulleted("item"))
	assert.Equal(t, "REF-U", RefListTag(true))
	assert.Equal(t, "REF-N", RefListTag(false))
}
