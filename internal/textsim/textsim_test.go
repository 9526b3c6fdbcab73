package textsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "hello world", Normalize("  Hello  World \n"))
	assert.Equal(t, "", Normalize("   "))
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 1.0, Ratio("same text", "same text"))
	assert.Equal(t, 0.0, Ratio("abc", "xyz"))
	assert.Equal(t, 1.0, Ratio("", ""))
	assert.Equal(t, 0.0, Ratio("abc", ""))

	// Near-identical strings score close to 1.
	score := Ratio("the patient was admitted", "the patient was admited")
	assert.Greater(t, score, 0.9)
	assert.Less(t, score, 1.0)

	// Symmetric.
	assert.Equal(t, Ratio("alpha beta", "alpha"), Ratio("alpha", "alpha beta"))
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, Levenshtein("kitten", "kitten"))
	assert.Equal(t, 3, Levenshtein("kitten", "sitting"))
	assert.Equal(t, 5, Levenshtein("", "hello"))
	assert.Equal(t, 1, Levenshtein("H1", "H2"))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"the", "quick", "brown", "fox"}, Tokenize("The quick, brown fox!"))
	assert.Equal(t, []string{"ref", "2019", "doi"}, Tokenize("REF [2019] doi:"))
	assert.Empty(t, Tokenize("!!!"))
}
