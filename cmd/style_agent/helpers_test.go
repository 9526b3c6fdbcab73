package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/style-tagger/internal/config"
	"github.com/jonathan/style-tagger/internal/types"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadParagraphs(t *testing.T) {
	path := writeTempFile(t, "paras.json", `[
		{"id": 0, "text": "Introduction", "zone": "BODY"},
		{"id": 1, "text": "• item", "metadata": {"list_kind": "bullet", "list_position": "mid"}}
	]`)

	paras, err := loadParagraphs(path)
	require.NoError(t, err)
	require.Len(t, paras, 2)
	assert.Equal(t, "Introduction", paras[0].Text)
	assert.Equal(t, "bullet", paras[1].Meta.ListKind)
}

func TestLoadParagraphs_Missing(t *testing.T) {
	_, err := loadParagraphs("/nonexistent/paras.json")
	assert.Error(t, err)
}

func TestLoadCorpus_BadJSON(t *testing.T) {
	path := writeTempFile(t, "corpus.json", `{not json`)
	_, err := loadCorpus(path)
	assert.Error(t, err)
}

func TestLoadTaggedParagraphs(t *testing.T) {
	path := writeTempFile(t, "tagged.json", `[
		{"text": "Introduction", "tag": "H1"},
		{"text": "Body text.", "tag": "TXT"}
	]`)

	tagged, err := loadTaggedParagraphs(path)
	require.NoError(t, err)
	require.Len(t, tagged, 2)
	assert.Equal(t, "H1", tagged[0].Tag)
}

func TestMergeCorpus_ReplacesDocument(t *testing.T) {
	existing := []types.LabeledExample{
		{DocID: "doc1", ParaIndex: 0, Tag: "TXT"},
		{DocID: "doc2", ParaIndex: 0, Tag: "H1"},
	}
	fresh := []types.LabeledExample{
		{DocID: "doc1", ParaIndex: 0, Tag: "H2"},
		{DocID: "doc1", ParaIndex: 1, Tag: "TXT"},
	}

	merged := mergeCorpus(existing, fresh, "doc1")
	require.Len(t, merged, 3)
	assert.Equal(t, "doc2", merged[0].DocID)
	assert.Equal(t, "H2", merged[1].Tag)
}

func TestWriteJSON_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	results := []types.Classification{{ID: 0, Tag: "TXT", Confidence: 90, Source: types.SourceLLM}}

	require.NoError(t, writeJSON(path, results))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tag": "TXT"`)
}

func TestBuildRuleEngine_FromArtifact(t *testing.T) {
	path := writeTempFile(t, "rules.json", `{
		"version": 1,
		"trained_at": "2026-01-15T00:00:00Z",
		"examples": 40,
		"rules": [
			{"condition": "has_bullet", "predicted_tag": "BL-MID", "support": 20, "total": 20, "confidence": 1.0}
		]
	}`)

	engine, err := buildRuleEngine(context.Background(), &config.Config{RuleSet: path}, nil)
	require.NoError(t, err)
	require.NotNil(t, engine)

	match, ok := engine.Predict("• bullet item", types.ZoneBody, types.ParagraphMeta{})
	require.True(t, ok)
	assert.Equal(t, "BL-MID", match.Tag)
}

func TestBuildRetriever_NoSources(t *testing.T) {
	retriever, err := buildRetriever(context.Background(), &config.Config{}, nil)
	require.NoError(t, err)
	assert.Nil(t, retriever)
}
