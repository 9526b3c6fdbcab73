package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJSONBlock(t *testing.T) {
	assert.Equal(t, `[{"id":1}]`, CleanJSONBlock("```json\n[{\"id\":1}]\n```"))
	assert.Equal(t, `[{"id":1}]`, CleanJSONBlock("```\n[{\"id\":1}]\n```"))
	assert.Equal(t, `[{"id":1}]`, CleanJSONBlock(`[{"id":1}]`))
}

func TestParseClassifications_DirectArray(t *testing.T) {
	items, err := ParseClassifications(`[
		{"id": 1, "tag": "H1", "confidence": 95, "reasoning": "chapter heading"},
		{"id": 2, "tag": "TXT", "confidence": 88}
	]`)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 1, items[0].ID)
	assert.Equal(t, "H1", items[0].Tag)
	assert.Equal(t, 95.0, items[0].Confidence)
	assert.Equal(t, "chapter heading", items[0].Reasoning)
}

func TestParseClassifications_ArrayEmbeddedInProse(t *testing.T) {
	items, err := ParseClassifications(`Here are the classifications:
[{"id": 1, "tag": "TXT", "confidence": 80}]
Let me know if you need anything else.`)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "TXT", items[0].Tag)
}

func TestParseClassifications_TruncatedArray(t *testing.T) {
	items, err := ParseClassifications(`[
		{"id": 1, "tag": "H1", "confidence": 95},
		{"id": 2, "tag": "TXT", "confidence": 88},
		{"id": 3, "tag": "BL-`)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 2, items[1].ID)
}

func TestParseClassifications_IndividualObjects(t *testing.T) {
	items, err := ParseClassifications(`garbage {"id": 4, "tag": "T1", "confidence": 77} more garbage
		{"id": 5, "tag": "T", "confidence": 70} trailing`)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 4, items[0].ID)
	assert.Equal(t, "T1", items[0].Tag)
	assert.Equal(t, 77.0, items[0].Confidence)
}

func TestParseClassifications_Unparseable(t *testing.T) {
	_, err := ParseClassifications("no json here at all")
	require.Error(t, err)
}

func TestNormalizeConfidence(t *testing.T) {
	assert.Equal(t, 95, NormalizeConfidence(95))
	assert.Equal(t, 85, NormalizeConfidence(0.85))
	assert.Equal(t, 100, NormalizeConfidence(250))
	assert.Equal(t, 0, NormalizeConfidence(-3))
	assert.Equal(t, 100, NormalizeConfidence(1.0))
}
