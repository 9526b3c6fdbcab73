// Package textsim provides the text normalization and string similarity
// primitives shared by alignment, retrieval, caching and vocabulary
// matching.
package textsim

import (
	"regexp"
	"strings"
)

var wsRe = regexp.MustCompile(`\s+`)

// Normalize lowercases, replaces non-breaking spaces and collapses
// whitespace runs so that cosmetic differences do not affect matching.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, " ", " ")
	text = wsRe.ReplaceAllString(strings.TrimSpace(text), " ")
	return strings.ToLower(text)
}

// Ratio returns a similarity score in [0, 1] for two strings:
// 2*LCS / (len(a)+len(b)), computed over runes. Identical strings score
// 1.0, strings with no common subsequence score 0.0.
func Ratio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}
	lcs := lcsLength(ra, rb)
	return 2.0 * float64(lcs) / float64(len(ra)+len(rb))
}

func lcsLength(a, b []rune) int {
	if len(b) > len(a) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// Levenshtein returns the edit distance between two strings, counting
// insertions, deletions and substitutions at unit cost.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

var tokenRe = regexp.MustCompile(`[a-z0-9]+`)

// Tokenize lowercases text and splits it into alphanumeric tokens for
// TF-IDF vectorization.
func Tokenize(text string) []string {
	return tokenRe.FindAllString(strings.ToLower(text), -1)
}
