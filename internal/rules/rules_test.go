package rules

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/style-tagger/internal/types"
)

// trainingCorpus builds a corpus where bulleted paragraphs are always
// BL-MID, table-zone paragraphs are always T, and body prose is TXT.
func trainingCorpus() []types.LabeledExample {
	var examples []types.LabeledExample
	for i := 0; i < 12; i++ {
		examples = append(examples, types.LabeledExample{
			DocID:          "doc1",
			ParaIndex:      i,
			Text:           fmt.Sprintf("• bulleted item number %d with some content", i),
			Tag:            "BL-MID",
			Zone:           types.ZoneBody,
			AlignmentScore: 1.0,
		})
	}
	for i := 0; i < 12; i++ {
		examples = append(examples, types.LabeledExample{
			DocID:          "doc2",
			ParaIndex:      i,
			Text:           fmt.Sprintf("cell value %d", i),
			Tag:            "T",
			Zone:           types.ZoneTable,
			AlignmentScore: 1.0,
		})
	}
	for i := 0; i < 12; i++ {
		examples = append(examples, types.LabeledExample{
			DocID:          "doc3",
			ParaIndex:      i,
			Text:           fmt.Sprintf("Plain narrative sentence number %d describing the study results in detail.", i),
			Tag:            "TXT",
			Zone:           types.ZoneBody,
			AlignmentScore: 1.0,
		})
	}
	return examples
}

func findRule(rs *types.RuleSet, condition, tag string) (types.Rule, bool) {
	for _, r := range rs.Rules {
		if r.Condition == condition && r.Tag == tag {
			return r, true
		}
	}
	return types.Rule{}, false
}

func TestTrain_LearnsHighConfidenceRules(t *testing.T) {
	rs := Train(trainingCorpus(), TrainOptions{MinSupport: 10, MinConfidence: 0.8})
	require.NotEmpty(t, rs.Rules)
	assert.Equal(t, 36, rs.Examples)

	bullet, ok := findRule(rs, "has_bullet", "BL-MID")
	require.True(t, ok, "expected has_bullet -> BL-MID rule")
	assert.Equal(t, 12, bullet.Support)
	assert.Equal(t, 12, bullet.Total)
	assert.Equal(t, 1.0, bullet.Confidence)

	table, ok := findRule(rs, "zone=TABLE", "T")
	require.True(t, ok, "expected zone=TABLE -> T rule")
	assert.Equal(t, 1.0, table.Confidence)
}

func TestTrain_MinSupportExcludesRareTags(t *testing.T) {
	corpus := trainingCorpus()
	// Only 3 heading examples, below min support.
	for i := 0; i < 3; i++ {
		corpus = append(corpus, types.LabeledExample{
			DocID:     "doc9",
			ParaIndex: i,
			Text:      "Chapter Heading Text",
			Tag:       "H1",
			Zone:      types.ZoneBody,
		})
	}

	rs := Train(corpus, TrainOptions{MinSupport: 10, MinConfidence: 0.8})
	for _, r := range rs.Rules {
		assert.NotEqual(t, "H1", r.Tag, "tag below min support must not produce rules")
	}
}

func TestTrain_SkipsUnmappedExamples(t *testing.T) {
	corpus := trainingCorpus()
	for i := 0; i < 20; i++ {
		corpus = append(corpus, types.LabeledExample{
			DocID:     "doc4",
			ParaIndex: i,
			Text:      "• some bulleted noise",
			Tag:       types.TagUnmapped,
			Zone:      types.ZoneBody,
		})
	}

	rs := Train(corpus, TrainOptions{MinSupport: 10, MinConfidence: 0.8})
	assert.Equal(t, 36, rs.Examples)
	bullet, ok := findRule(rs, "has_bullet", "BL-MID")
	require.True(t, ok)
	// Unmapped bullets must not dilute the rule's precision.
	assert.Equal(t, 1.0, bullet.Confidence)
}

func TestTrain_Deterministic(t *testing.T) {
	corpus := trainingCorpus()
	first := Train(corpus, TrainOptions{})
	second := Train(corpus, TrainOptions{})
	assert.Equal(t, first.Rules, second.Rules)
}

func TestTrain_RulesSortedByConfidence(t *testing.T) {
	rs := Train(trainingCorpus(), TrainOptions{MinSupport: 5, MinConfidence: 0.5})
	for i := 1; i < len(rs.Rules); i++ {
		assert.GreaterOrEqual(t, rs.Rules[i-1].Confidence, rs.Rules[i].Confidence)
	}
}

func TestEngine_Predict(t *testing.T) {
	engine := NewEngine(0.8)
	engine.Swap(Train(trainingCorpus(), TrainOptions{MinSupport: 10, MinConfidence: 0.8}))

	match, ok := engine.Predict("• another bulleted item", types.ZoneBody, types.ParagraphMeta{})
	require.True(t, ok)
	assert.Equal(t, "BL-MID", match.Tag)
	assert.GreaterOrEqual(t, match.Confidence, 0.8)

	// No trailing period, so the learned ends_with_period rule stays out.
	_, ok = engine.Predict("plain prose paragraph with no structure at all", types.ZoneBody, types.ParagraphMeta{})
	assert.False(t, ok, "no rule should match plain prose")
}

func TestEngine_ThresholdFiltersWeakRules(t *testing.T) {
	engine := NewEngine(0.9)
	engine.Swap(&types.RuleSet{Version: 1, Rules: []types.Rule{
		{Condition: "has_bullet", Tag: "BL-MID", Support: 8, Total: 10, Confidence: 0.8},
	}})

	_, ok := engine.Predict("• bulleted", types.ZoneBody, types.ParagraphMeta{})
	assert.False(t, ok)
}

func TestEngine_SwapReplacesSnapshot(t *testing.T) {
	engine := NewEngine(0.8)
	_, ok := engine.Predict("• bulleted", types.ZoneBody, types.ParagraphMeta{})
	assert.False(t, ok, "empty engine must not predict")

	engine.Swap(&types.RuleSet{Version: 2, Rules: []types.Rule{
		{Condition: "has_bullet", Tag: "UL-MID", Support: 20, Total: 20, Confidence: 1.0},
	}})
	match, ok := engine.Predict("• bulleted", types.ZoneBody, types.ParagraphMeta{})
	require.True(t, ok)
	assert.Equal(t, "UL-MID", match.Tag)
	assert.Equal(t, 2, engine.RuleSet().Version)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	rs := Train(trainingCorpus(), TrainOptions{})
	path := filepath.Join(t.TempDir(), "learned_rules.json")

	require.NoError(t, Save(path, rs))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, rs.Rules, loaded.Rules)
	assert.Equal(t, rs.Examples, loaded.Examples)
}

func TestParse_RejectsInvalidArtifact(t *testing.T) {
	_, err := Parse([]byte(`{"rules": "not an array"}`))
	require.Error(t, err)

	_, err = Parse([]byte(`{"version": 1, "rules": [{"condition": ""}]}`))
	require.Error(t, err)
}

func TestReport_ListsTopRules(t *testing.T) {
	rs := Train(trainingCorpus(), TrainOptions{})
	out := Report(rs, 10)
	assert.Contains(t, out, "LEARNED RULES REPORT")
	assert.Contains(t, out, "has_bullet")
	assert.Contains(t, out, "BL-MID")

	assert.Equal(t, "No rules learned yet.", Report(nil, 10))
}
