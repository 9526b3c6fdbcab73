package classify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/style-tagger/internal/cache"
	"github.com/jonathan/style-tagger/internal/llm"
	"github.com/jonathan/style-tagger/internal/rules"
	"github.com/jonathan/style-tagger/internal/types"
	"github.com/jonathan/style-tagger/internal/vocab"
)

type mockCall struct {
	prompt string
	tier   llm.Tier
}

// mockClient scripts responses per call and records every prompt.
type mockClient struct {
	mu      sync.Mutex
	calls   []mockCall
	respond func(prompt string, tier llm.Tier, call int) (string, error)
}

func (m *mockClient) GenerateJSON(_ context.Context, prompt string, tier llm.Tier) (string, types.TokenUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := len(m.calls)
	m.calls = append(m.calls, mockCall{prompt: prompt, tier: tier})
	text, err := m.respond(prompt, tier, call)
	return text, types.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}, err
}

func (m *mockClient) GetModel(llm.Tier) string { return "mock-model" }
func (m *mockClient) Close() error             { return nil }

func (m *mockClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func testNormalizer(t *testing.T) *vocab.Normalizer {
	t.Helper()
	v, err := vocab.New([]string{
		"TXT", "PMI", "QUO",
		"H1", "H2", "H3",
		"BL-FIRST", "BL-MID", "BL-LAST", "NL-MID", "UL-MID",
		"T", "T1", "TFN", "TBL-MID", "TNL-MID", "TH3",
		"REF-N", "REF-U",
		"BX1-TTL", "BX1-TXT",
	}, vocab.DefaultZoneConstraints())
	require.NoError(t, err)
	return vocab.NewNormalizer(v)
}

func newOrchestrator(t *testing.T, deps Deps) *Orchestrator {
	t.Helper()
	if deps.Normalizer == nil {
		deps.Normalizer = testNormalizer(t)
	}
	o, err := New(deps)
	require.NoError(t, err)
	return o
}

func TestNew_RequiresNormalizer(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}

func TestClassify_Empty(t *testing.T) {
	o := newOrchestrator(t, Deps{})

	results, stats, err := o.Classify(context.Background(), nil, "doc")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, stats.TotalParagraphs)
}

func TestClassify_LLMPath(t *testing.T) {
	client := &mockClient{respond: func(_ string, _ llm.Tier, _ int) (string, error) {
		return `[
			{"id": 0, "tag": "H1", "confidence": 98},
			{"id": 1, "tag": "TXT", "confidence": 92},
			{"id": 2, "tag": "BL-MID", "confidence": 90}
		]`, nil
	}}
	o := newOrchestrator(t, Deps{Client: client})

	paras := []types.Paragraph{
		{ID: 0, Text: "Introduction"},
		{ID: 1, Text: "Plain prose paragraph."},
		{ID: 2, Text: "• bullet item"},
	}

	results, stats, err := o.Classify(context.Background(), paras, "doc")
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, []int{0, 1, 2}, []int{results[0].ID, results[1].ID, results[2].ID})
	assert.Equal(t, "H1", results[0].Tag)
	assert.Equal(t, "TXT", results[1].Tag)
	assert.Equal(t, "BL-MID", results[2].Tag)
	for _, r := range results {
		assert.Equal(t, types.SourceLLM, r.Source)
	}

	assert.Equal(t, 3, stats.LLMPredictions)
	assert.Equal(t, 1, stats.ChunksDispatched)
	assert.Equal(t, 0, stats.ChunksFailed)
	assert.Equal(t, 15, stats.Usage.TotalTokens)
	assert.Equal(t, 1, client.callCount())
}

func TestClassify_RulesShortCircuitLLM(t *testing.T) {
	engine := rules.NewEngine(0.80)
	engine.Swap(&types.RuleSet{Version: 1, Rules: []types.Rule{
		{Condition: "has_bullet", Tag: "BL-MID", Support: 20, Total: 20, Confidence: 1.0},
	}})

	client := &mockClient{respond: func(_ string, _ llm.Tier, _ int) (string, error) {
		return `[{"id": 1, "tag": "TXT", "confidence": 90}]`, nil
	}}
	o := newOrchestrator(t, Deps{Client: client, Rules: engine})

	paras := []types.Paragraph{
		{ID: 0, Text: "• bullet item"},
		{ID: 1, Text: "Plain prose paragraph with no structure"},
	}

	results, stats, err := o.Classify(context.Background(), paras, "doc")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "BL-MID", results[0].Tag)
	assert.Equal(t, types.SourceRule, results[0].Source)
	assert.Equal(t, 100, results[0].Confidence)
	assert.Equal(t, types.SourceLLM, results[1].Source)

	assert.Equal(t, 1, stats.RulePredictions)
	assert.Equal(t, 1, stats.LLMPredictions)
	assert.InDelta(t, 0.5, stats.RuleCoverage, 1e-9)

	// The rule-covered paragraph never reached the model.
	require.Equal(t, 1, client.callCount())
	assert.NotContains(t, client.calls[0].prompt, "bullet item")
}

func TestClassify_CacheHitsOnSecondRun(t *testing.T) {
	client := &mockClient{respond: func(_ string, _ llm.Tier, _ int) (string, error) {
		return `[{"id": 0, "tag": "TXT", "confidence": 95}]`, nil
	}}
	c := cache.New(nil, 0)
	o := newOrchestrator(t, Deps{Client: client, Cache: c})

	paras := []types.Paragraph{{ID: 0, Text: "Plain prose paragraph."}}

	first, _, err := o.Classify(context.Background(), paras, "doc")
	require.NoError(t, err)
	assert.Equal(t, types.SourceLLM, first[0].Source)
	assert.Equal(t, 1, client.callCount())

	second, stats, err := o.Classify(context.Background(), paras, "doc")
	require.NoError(t, err)
	assert.Equal(t, types.SourceCache, second[0].Source)
	assert.Equal(t, "TXT", second[0].Tag)
	assert.Equal(t, 1, stats.CachePredictions)
	// No new model calls.
	assert.Equal(t, 1, client.callCount())
}

func TestClassify_ChunkFailureUsesGroundedFallback(t *testing.T) {
	client := &mockClient{respond: func(_ string, _ llm.Tier, _ int) (string, error) {
		return "", errors.New("boom")
	}}
	o := newOrchestrator(t, Deps{Client: client})

	paras := []types.Paragraph{
		{ID: 0, Text: "Some paragraph"},
		{ID: 1, Text: "Another paragraph"},
	}

	results, stats, err := o.Classify(context.Background(), paras, "doc")
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, r := range results {
		assert.Equal(t, types.SourceGroundedFallback, r.Source)
		assert.Equal(t, "TXT", r.Tag)
	}
	assert.Equal(t, 1, stats.ChunksFailed)
	assert.Equal(t, 2, stats.FallbackTags)
	assert.Equal(t, 0, stats.LLMPredictions)
}

func TestClassify_ChunkRetriesFallbackTier(t *testing.T) {
	client := &mockClient{respond: func(_ string, tier llm.Tier, _ int) (string, error) {
		if tier == llm.TierFallback {
			return `[{"id": 0, "tag": "H1", "confidence": 93}]`, nil
		}
		return "", errors.New("primary exhausted")
	}}
	o := newOrchestrator(t, Deps{Client: client})

	paras := []types.Paragraph{{ID: 0, Text: "Heading Text"}}

	results, stats, err := o.Classify(context.Background(), paras, "doc")
	require.NoError(t, err)
	require.Len(t, results, 1)

	// The fallback tier rescued the chunk; no grounded degradation.
	assert.Equal(t, "H1", results[0].Tag)
	assert.Equal(t, types.SourceLLM, results[0].Source)
	assert.Equal(t, 0, stats.ChunksFailed)
	assert.Equal(t, 1, stats.LLMPredictions)

	require.Equal(t, 2, client.callCount())
	assert.Equal(t, llm.TierPrimary, client.calls[0].tier)
	assert.Equal(t, llm.TierFallback, client.calls[1].tier)
}

func TestClassify_CancelledContextLeavesParagraphsUnresolved(t *testing.T) {
	client := &mockClient{respond: func(_ string, _ llm.Tier, _ int) (string, error) {
		return `[{"id": 0, "tag": "TXT", "confidence": 95}]`, nil
	}}
	c := cache.New(nil, 0)
	o := newOrchestrator(t, Deps{Client: client, Cache: c})

	paras := []types.Paragraph{{ID: 0, Text: "Plain prose paragraph."}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, stats, err := o.Classify(ctx, paras, "doc")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, stats.ChunksDispatched)
	assert.Equal(t, 0, client.callCount())

	// Nothing degraded was cached; a live run still classifies for real.
	fresh, _, err := o.Classify(context.Background(), paras, "doc")
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, types.SourceLLM, fresh[0].Source)
}

func TestClassify_MissingIDBackfill(t *testing.T) {
	client := &mockClient{respond: func(_ string, _ llm.Tier, _ int) (string, error) {
		return `[{"id": 0, "tag": "H1", "confidence": 96}]`, nil
	}}
	o := newOrchestrator(t, Deps{Client: client})

	paras := []types.Paragraph{
		{ID: 0, Text: "Heading"},
		{ID: 1, Text: "Paragraph the model forgot"},
	}

	results, _, err := o.Classify(context.Background(), paras, "doc")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "H1", results[0].Tag)
	assert.Equal(t, "TXT", results[1].Tag)
	assert.Equal(t, 0, results[1].Confidence)
	assert.Equal(t, "Missing from API response", results[1].Reasoning)
}

func TestClassify_SelfHealRetry(t *testing.T) {
	client := &mockClient{respond: func(prompt string, _ llm.Tier, call int) (string, error) {
		if call == 0 {
			return `[{"id": 0, "tag": "BOGUS_STYLE", "confidence": 90}]`, nil
		}
		return `[{"id": 0, "tag": "H1", "confidence": 95}]`, nil
	}}
	o := newOrchestrator(t, Deps{Client: client})

	paras := []types.Paragraph{{ID: 0, Text: "Heading Text"}}

	results, _, err := o.Classify(context.Background(), paras, "doc")
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "H1", results[0].Tag)
	assert.Equal(t, 95, results[0].Confidence)

	// The correction echoes the model's own spelling of the bad tag.
	require.Equal(t, 2, client.callCount())
	assert.Contains(t, client.calls[1].prompt, "INVALID TAGS FOUND: BOGUS_STYLE")
}

func TestClassify_FallbackImprovesLowConfidence(t *testing.T) {
	client := &mockClient{respond: func(_ string, tier llm.Tier, _ int) (string, error) {
		if tier == llm.TierFallback {
			return `[{"id": 0, "tag": "QUO", "confidence": 95, "reasoning": "quoted passage"}]`, nil
		}
		return `[{"id": 0, "tag": "TXT", "confidence": 50}]`, nil
	}}
	o := newOrchestrator(t, Deps{Client: client, Options: Options{EnableFallback: true}})

	paras := []types.Paragraph{{ID: 0, Text: "An extended quotation set off from the text."}}

	results, stats, err := o.Classify(context.Background(), paras, "doc")
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "QUO", results[0].Tag)
	assert.Equal(t, 95, results[0].Confidence)
	assert.True(t, results[0].FallbackModel)
	assert.Contains(t, results[0].Reasoning, "[fallback]")

	assert.Equal(t, 1, stats.FallbackCalls)
	assert.Equal(t, 1, stats.ItemsImproved)

	// The second call went to the fallback tier.
	require.Equal(t, 2, client.callCount())
	assert.Equal(t, llm.TierFallback, client.calls[1].tier)
	assert.Contains(t, client.calls[1].prompt, "LOW CONFIDENCE")
}

func TestClassify_ZoneValidationRepairsTags(t *testing.T) {
	client := &mockClient{respond: func(_ string, _ llm.Tier, _ int) (string, error) {
		return `[{"id": 0, "tag": "TXT", "confidence": 95}]`, nil
	}}
	o := newOrchestrator(t, Deps{Client: client})

	paras := []types.Paragraph{{ID: 0, Text: "plain cell value", Zone: types.ZoneTable}}

	results, _, err := o.Classify(context.Background(), paras, "doc")
	require.NoError(t, err)
	require.Len(t, results, 1)

	// TXT is illegal in TABLE; the deterministic fallback repairs it.
	assert.Equal(t, "T", results[0].Tag)
	assert.True(t, results[0].ZoneAdjusted)
	assert.LessOrEqual(t, results[0].Confidence, 70)
}

func TestClassify_ReferenceZoneOverlay(t *testing.T) {
	var prompts []string
	client := &mockClient{respond: func(prompt string, _ llm.Tier, _ int) (string, error) {
		prompts = append(prompts, prompt)
		return `[
			{"id": 0, "tag": "H1", "confidence": 96},
			{"id": 1, "tag": "NL-MID", "confidence": 88},
			{"id": 2, "tag": "NL-MID", "confidence": 88}
		]`, nil
	}}
	o := newOrchestrator(t, Deps{Client: client})

	paras := []types.Paragraph{
		{ID: 0, Text: "References"},
		{ID: 1, Text: "1. Smith, J. Journal of Testing, 2019."},
		{ID: 2, Text: "2. Jones, K. Proceedings of the Annual Conference, 2020."},
	}

	results, _, err := o.Classify(context.Background(), paras, "doc")
	require.NoError(t, err)
	require.Len(t, results, 3)

	// The overlay put the citations in BACK_MATTER, so the NL tags are
	// remapped to numbered reference entries.
	assert.Equal(t, "REF-N", results[1].Tag)
	assert.Equal(t, "REF-N", results[2].Tag)
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "BACK_MATTER")
}

func TestChunkParagraphs(t *testing.T) {
	paras := make([]types.Paragraph, 10)
	for i := range paras {
		paras[i] = types.Paragraph{ID: i}
	}

	chunks := chunkParagraphs(paras, 4)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 4)
	assert.Len(t, chunks[1], 4)
	assert.Len(t, chunks[2], 2)

	one := chunkParagraphs(paras, 75)
	assert.Len(t, one, 1)
}
