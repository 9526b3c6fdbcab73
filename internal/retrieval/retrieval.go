// Package retrieval serves few-shot grounding examples from the
// labeled corpus using TF-IDF cosine similarity. The index is built
// once and is immutable afterwards, so concurrent chunk workers can
// query it without locking.
package retrieval

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/jonathan/style-tagger/internal/textsim"
	"github.com/jonathan/style-tagger/internal/types"
)

// Index build and query defaults.
const (
	DefaultMinAlignment = 0.75
	DefaultK            = 10
	// SameDocBoost multiplies the similarity of examples from the same
	// source document family.
	SameDocBoost = 1.2
)

var inlineTagRe = regexp.MustCompile(`<[^>]+>`)

// Scored pairs a corpus example with its query similarity.
type Scored struct {
	Example types.LabeledExample
	Score   float64
}

// Query selects and ranks corpus examples for one paragraph.
type Query struct {
	Text string
	K    int
	// DocID enables the same-document boost when set.
	DocID string
	// Zone restricts results to one context zone when set.
	Zone string
	// Tag restricts results to one gold tag when set.
	Tag string
}

// Index is the immutable TF-IDF index over the labeled corpus.
type Index struct {
	examples []types.LabeledExample
	vectors  []map[string]float64
	idf      map[string]float64
	docs     map[string]struct{}
}

// NewIndex filters the corpus to mapped, well-aligned examples and
// builds their TF-IDF vectors. minAlignment defaults to
// DefaultMinAlignment when non-positive.
func NewIndex(corpus []types.LabeledExample, minAlignment float64) *Index {
	if minAlignment <= 0 {
		minAlignment = DefaultMinAlignment
	}

	idx := &Index{
		idf:  make(map[string]float64),
		docs: make(map[string]struct{}),
	}
	for _, ex := range corpus {
		if !ex.Mapped() || ex.AlignmentScore < minAlignment {
			continue
		}
		idx.examples = append(idx.examples, ex)
		if ex.DocID != "" {
			idx.docs[ex.DocID] = struct{}{}
		}
	}

	docFreq := make(map[string]int)
	tokenized := make([][]string, len(idx.examples))
	for i, ex := range idx.examples {
		tokens := tokenize(ex.Text)
		tokenized[i] = tokens
		seen := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			docFreq[tok]++
		}
	}

	n := float64(len(idx.examples))
	for tok, freq := range docFreq {
		idx.idf[tok] = n / float64(freq)
	}

	idx.vectors = make([]map[string]float64, len(idx.examples))
	for i, tokens := range tokenized {
		idx.vectors[i] = idx.vectorize(tokens)
	}
	return idx
}

// Len returns the number of indexed examples.
func (idx *Index) Len() int { return len(idx.examples) }

// Retrieve returns up to K examples ranked by boosted cosine
// similarity. A query that produces no usable tokens falls back to a
// diverse cross-tag sample, and filters that leave fewer than K
// matches are topped up the same way, so prompts are never unanchored.
func (idx *Index) Retrieve(q Query) []Scored {
	if len(idx.examples) == 0 {
		return nil
	}
	if q.K <= 0 {
		q.K = DefaultK
	}

	queryVec := idx.vectorize(tokenize(q.Text))
	if len(queryVec) == 0 {
		return idx.diverse(q.K)
	}

	docFamily := docFamily(q.DocID)
	scored := make([]Scored, 0, len(idx.examples))
	for i, ex := range idx.examples {
		if q.Zone != "" && ex.Zone != q.Zone {
			continue
		}
		if q.Tag != "" && ex.Tag != q.Tag {
			continue
		}
		score := cosine(queryVec, idx.vectors[i])
		if docFamily != "" && strings.HasPrefix(ex.DocID, docFamily) {
			score *= SameDocBoost
		}
		scored = append(scored, Scored{Example: ex, Score: score})
	}

	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Score > scored[b].Score
	})
	if len(scored) > q.K {
		scored = scored[:q.K]
	}
	if len(scored) < q.K {
		scored = idx.backfill(scored, q.K)
	}
	return scored
}

// backfill tops up a filtered result set with a diverse cross-tag
// sample so callers always receive k examples from a non-empty corpus.
// Backfilled examples carry a zero score.
func (idx *Index) backfill(scored []Scored, k int) []Scored {
	picked := make(map[string]struct{}, len(scored))
	for _, s := range scored {
		picked[exampleKey(s.Example)] = struct{}{}
	}
	for _, s := range idx.diverse(k) {
		if len(scored) >= k {
			break
		}
		if _, dup := picked[exampleKey(s.Example)]; dup {
			continue
		}
		picked[exampleKey(s.Example)] = struct{}{}
		scored = append(scored, s)
	}
	return scored
}

// diverse samples one example per tag, then backfills with the
// best-aligned remainder.
func (idx *Index) diverse(k int) []Scored {
	byTag := make(map[string]types.LabeledExample)
	var tags []string
	for _, ex := range idx.examples {
		if _, seen := byTag[ex.Tag]; !seen {
			byTag[ex.Tag] = ex
			tags = append(tags, ex.Tag)
		}
	}
	sort.Strings(tags)

	var out []Scored
	picked := make(map[string]struct{})
	for _, tag := range tags {
		if len(out) >= k {
			break
		}
		ex := byTag[tag]
		out = append(out, Scored{Example: ex})
		picked[exampleKey(ex)] = struct{}{}
	}

	if len(out) < k {
		rest := make([]types.LabeledExample, len(idx.examples))
		copy(rest, idx.examples)
		sort.SliceStable(rest, func(a, b int) bool {
			return rest[a].AlignmentScore > rest[b].AlignmentScore
		})
		for _, ex := range rest {
			if len(out) >= k {
				break
			}
			if _, dup := picked[exampleKey(ex)]; dup {
				continue
			}
			picked[exampleKey(ex)] = struct{}{}
			out = append(out, Scored{Example: ex})
		}
	}
	return out
}

// FormatForPrompt renders retrieved examples as prompt grounding lines.
func FormatForPrompt(examples []Scored) string {
	if len(examples) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("# GROUND TRUTH EXAMPLES (from manual-tagged training data)\n")
	sb.WriteString("# Use these as reference patterns for your classifications:\n\n")
	for i, s := range examples {
		text := s.Example.Text
		if len(text) > 150 {
			text = text[:150]
		}
		family := docFamily(s.Example.DocID)
		if family == "" {
			family = "?"
		}
		if len(family) > 15 {
			family = family[:15]
		}
		line := fmt.Sprintf("%d. [%s] %s => %s", i+1, family, text, s.Example.Tag)
		if s.Example.Zone != "" {
			line += fmt.Sprintf(" [%s]", s.Example.Zone)
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

// TagDistribution counts indexed examples per gold tag.
func (idx *Index) TagDistribution() map[string]int {
	counts := make(map[string]int)
	for _, ex := range idx.examples {
		counts[ex.Tag]++
	}
	return counts
}

// Stats summarizes the index for diagnostics.
type Stats struct {
	TotalExamples     int     `json:"total_examples"`
	NumDocuments      int     `json:"num_documents"`
	VocabSize         int     `json:"vocab_size"`
	AvgAlignmentScore float64 `json:"avg_alignment_score"`
}

// Stats returns index-level statistics.
func (idx *Index) Stats() Stats {
	s := Stats{
		TotalExamples: len(idx.examples),
		NumDocuments:  len(idx.docs),
		VocabSize:     len(idx.idf),
	}
	if len(idx.examples) > 0 {
		sum := 0.0
		for _, ex := range idx.examples {
			sum += ex.AlignmentScore
		}
		s.AvgAlignmentScore = sum / float64(len(idx.examples))
	}
	return s
}

func (idx *Index) vectorize(tokens []string) map[string]float64 {
	if len(tokens) == 0 {
		return nil
	}
	tf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}
	vec := make(map[string]float64, len(tf))
	for tok, count := range tf {
		idf, known := idx.idf[tok]
		if !known {
			continue
		}
		vec[tok] = float64(count) / float64(len(tokens)) * idf
	}
	return vec
}

func tokenize(text string) []string {
	text = inlineTagRe.ReplaceAllString(text, " ")
	return textsim.Tokenize(textsim.Normalize(text))
}

func cosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	dot := 0.0
	for tok, av := range a {
		if bv, ok := b[tok]; ok {
			dot += av * bv
		}
	}
	if dot == 0 {
		return 0.0
	}
	return dot / (magnitude(a) * magnitude(b))
}

func magnitude(v map[string]float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// docFamily returns the document family prefix used for the same-doc
// boost, the doc ID up to its first underscore.
func docFamily(docID string) string {
	if docID == "" {
		return ""
	}
	family, _, _ := strings.Cut(docID, "_")
	return family
}

func exampleKey(ex types.LabeledExample) string {
	return fmt.Sprintf("%s:%d", ex.DocID, ex.ParaIndex)
}
