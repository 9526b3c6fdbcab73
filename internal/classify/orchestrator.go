// Package classify orchestrates a classification run: reference-zone
// overlay, cache and rule partitions, concurrent LLM chunk dispatch,
// low-confidence fallback, zone validation, and write-through caching.
package classify

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/style-tagger/internal/cache"
	"github.com/jonathan/style-tagger/internal/llm"
	"github.com/jonathan/style-tagger/internal/prompts"
	"github.com/jonathan/style-tagger/internal/retrieval"
	"github.com/jonathan/style-tagger/internal/rules"
	"github.com/jonathan/style-tagger/internal/types"
	"github.com/jonathan/style-tagger/internal/vocab"
	"github.com/jonathan/style-tagger/internal/zone"
)

// Defaults for the orchestrator's tunables.
const (
	DefaultChunkSize         = 75
	DefaultWorkers           = 4
	DefaultFallbackThreshold = 75
	// fallbackBatchSize bounds items per fallback-model call so the
	// difficult-cases prompt stays focused.
	fallbackBatchSize = 30
	// groundedSimThreshold is the minimum retriever similarity before a
	// ground-truth tag substitutes for a failed prediction.
	groundedSimThreshold = 0.7
)

// Options tune a run. Zero values fall back to the defaults above.
type Options struct {
	ChunkSize         int
	Workers           int
	FallbackThreshold int
	EnableFallback    bool
	DocumentType      string
	Verbose           bool
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.FallbackThreshold <= 0 {
		o.FallbackThreshold = DefaultFallbackThreshold
	}
	return o
}

// Deps wires the orchestrator's collaborators. Normalizer is required;
// everything else degrades gracefully when nil: no client means
// rule/cache/grounded-only runs, no engine means no rule partition, no
// cache means every paragraph is classified fresh.
type Deps struct {
	Client     llm.Client
	Rules      *rules.Engine
	Retriever  *retrieval.Index
	Cache      *cache.Cache
	Normalizer *vocab.Normalizer
	Options    Options
}

// Orchestrator runs document classification end to end.
type Orchestrator struct {
	client    llm.Client
	engine    *rules.Engine
	retriever *retrieval.Index
	cache     *cache.Cache
	norm      *vocab.Normalizer
	validator *zone.Validator
	opts      Options
}

// New builds an Orchestrator from its dependencies.
func New(deps Deps) (*Orchestrator, error) {
	if deps.Normalizer == nil {
		return nil, fmt.Errorf("normalizer is required")
	}
	return &Orchestrator{
		client:    deps.Client,
		engine:    deps.Rules,
		retriever: deps.Retriever,
		cache:     deps.Cache,
		norm:      deps.Normalizer,
		validator: zone.NewValidator(deps.Normalizer),
		opts:      deps.Options.withDefaults(),
	}, nil
}

// Classify assigns a tag to every paragraph and returns results in
// paragraph order along with run statistics. Chunk failures are
// isolated: a failed LLM chunk yields grounded fallback tags, never an
// aborted run.
func (o *Orchestrator) Classify(ctx context.Context, paras []types.Paragraph, documentName string) ([]types.Classification, *types.RunStats, error) {
	stats := &types.RunStats{TotalParagraphs: len(paras)}
	if len(paras) == 0 {
		return nil, stats, nil
	}

	// Reference sections override paragraph zones before anything keys
	// off them (cache keys, rules, prompts, validation).
	det := zone.DetectReferenceZone(paras)
	paras = zone.ApplyReferenceZone(paras, det)
	if det.Found() && o.opts.Verbose {
		fmt.Printf("Reference zone: paragraphs %d-%d (%s)\n", det.Start, det.End-1, det.Trigger)
	}

	paraByID := make(map[int]types.Paragraph, len(paras))
	for _, p := range paras {
		paraByID[p.ID] = p
	}

	// Partition 1: cache.
	var results []types.Classification
	uncached := paras
	if o.cache != nil {
		results, uncached = o.cachePartition(ctx, paras, documentName)
		stats.CachePredictions = len(results)
	}

	// Partition 2: learned rules.
	var llmNeeded []types.Paragraph
	if o.engine != nil {
		var rulePreds []types.Classification
		rulePreds, llmNeeded = o.rulePartition(uncached)
		stats.RulePredictions = len(rulePreds)
		results = append(results, rulePreds...)
	} else {
		llmNeeded = uncached
	}
	if stats.TotalParagraphs > 0 {
		stats.RuleCoverage = float64(stats.RulePredictions) / float64(stats.TotalParagraphs)
	}

	// Partition 3: the LLM, in concurrent chunks.
	if len(llmNeeded) > 0 {
		llmResults := o.classifyWithLLM(ctx, llmNeeded, documentName, stats)
		results = append(results, llmResults...)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })

	// Low-confidence items get a second opinion from the fallback tier.
	if o.opts.EnableFallback && o.client != nil {
		o.processFallback(ctx, results, paraByID, documentName, stats)
	}

	results = o.validator.Validate(results, paras)

	// Write-through: every fresh prediction becomes a future cache hit.
	if o.cache != nil {
		for _, r := range results {
			if r.Source == types.SourceCache {
				continue
			}
			p, ok := paraByID[r.ID]
			if !ok {
				continue
			}
			if err := o.cache.Put(ctx, documentName, p.ID, p.Text, p.EffectiveZone(), r); err != nil {
				fmt.Printf("Warning: cache write failed for paragraph %d: %v\n", r.ID, err)
			}
		}
		stats.Cache = o.cache.Stats()
	}

	return results, stats, nil
}

// cachePartition splits paragraphs into cached results and the rest.
func (o *Orchestrator) cachePartition(ctx context.Context, paras []types.Paragraph, documentName string) ([]types.Classification, []types.Paragraph) {
	var hits []types.Classification
	var misses []types.Paragraph
	for _, p := range paras {
		entry, ok := o.cache.Get(ctx, documentName, p.ID, p.Text, p.EffectiveZone())
		if !ok {
			misses = append(misses, p)
			continue
		}
		hits = append(hits, types.Classification{
			ID:         p.ID,
			Tag:        entry.Tag,
			Confidence: entry.Confidence,
			Source:     types.SourceCache,
		})
	}
	if len(hits) > 0 {
		fmt.Printf("Cache: %d cached, %d need classification\n", len(hits), len(misses))
	}
	return hits, misses
}

// rulePartition answers paragraphs the learned rules are confident
// about and passes the rest on.
func (o *Orchestrator) rulePartition(paras []types.Paragraph) ([]types.Classification, []types.Paragraph) {
	var preds []types.Classification
	var rest []types.Paragraph
	for _, p := range paras {
		match, ok := o.engine.Predict(p.Text, p.EffectiveZone(), p.Meta)
		if !ok {
			rest = append(rest, p)
			continue
		}
		preds = append(preds, types.Classification{
			ID:         p.ID,
			Tag:        match.Tag,
			Confidence: int(match.Confidence*100 + 0.5),
			Source:     types.SourceRule,
			Reasoning:  "rule: " + match.Condition,
		})
	}
	if len(preds) > 0 {
		fmt.Printf("Rule-based classification: %d/%d paragraphs (%.1f%% coverage)\n",
			len(preds), len(paras), float64(len(preds))/float64(len(paras))*100)
	}
	return preds, rest
}

// classifyWithLLM dispatches chunks to bounded workers. Worker errors
// never surface: a failed chunk produces grounded fallback tags so the
// rest of the document still classifies.
func (o *Orchestrator) classifyWithLLM(ctx context.Context, paras []types.Paragraph, documentName string, stats *types.RunStats) []types.Classification {
	profile := prompts.RouteProfile(paras)
	systemPrompt, err := prompts.SystemPrompt(profile, o.norm.Vocabulary().List())
	if err != nil {
		systemPrompt = ""
	}

	chunks := chunkParagraphs(paras, o.opts.ChunkSize)
	chunkResults := make([][]types.Classification, len(chunks))

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(o.opts.Workers)

	dispatched := 0
	for i, chunk := range chunks {
		// Cancellation stops new dispatches; in-flight chunks run to
		// completion and their paragraphs still get results.
		if ctx.Err() != nil {
			break
		}
		dispatched++
		i, chunk := i, chunk
		g.Go(func() error {
			info := fmt.Sprintf("Chunk %d of %d (paragraphs %d to %d)",
				i+1, len(chunks), chunk[0].ID, chunk[len(chunk)-1].ID)

			var res []types.Classification
			var usage types.TokenUsage
			var chunkErr error
			if o.client == nil {
				chunkErr = fmt.Errorf("no classifier client configured")
			} else {
				res, usage, chunkErr = o.classifyChunk(ctx, chunk, documentName, info, systemPrompt, llm.TierPrimary)
				// One attempt on the fallback tier before degrading.
				if chunkErr != nil && ctx.Err() == nil {
					fmt.Printf("Warning: %s failed: %v; retrying once with %s\n",
						info, chunkErr, o.client.GetModel(llm.TierFallback))
					var retryUsage types.TokenUsage
					res, retryUsage, chunkErr = o.classifyChunk(ctx, chunk, documentName, info, systemPrompt, llm.TierFallback)
					usage.Add(retryUsage)
				}
			}

			mu.Lock()
			defer mu.Unlock()
			stats.Usage.Add(usage)
			switch {
			case chunkErr == nil:
				stats.LLMPredictions += len(res)
			case ctx.Err() != nil:
				// Cancelled mid-flight. Leave the chunk unresolved so
				// degraded tags never reach the cache.
				res = nil
			default:
				fmt.Printf("Warning: %s failed: %v; using grounded fallback\n", info, chunkErr)
				stats.ChunksFailed++
				res = o.groundedFallback(chunk)
				stats.FallbackTags += len(res)
			}
			chunkResults[i] = res
			return nil
		})
	}
	// Workers never return errors; failures are handled per chunk.
	_ = g.Wait()
	stats.ChunksDispatched = dispatched

	var out []types.Classification
	for _, res := range chunkResults {
		out = append(out, res...)
	}
	return out
}

// groundedFallback tags a failed chunk from the ground-truth corpus:
// the retriever's top match wins when it is similar enough, otherwise
// the paragraph degrades to the generic tag.
func (o *Orchestrator) groundedFallback(paras []types.Paragraph) []types.Classification {
	out := make([]types.Classification, 0, len(paras))
	for _, p := range paras {
		c := types.Classification{
			ID:         p.ID,
			Tag:        vocab.GenericTag,
			Confidence: 25,
			Source:     types.SourceGroundedFallback,
			Reasoning:  "chunk classification failed",
		}
		if o.retriever != nil {
			scored := o.retriever.Retrieve(retrieval.Query{Text: p.Text, K: 1, Zone: p.EffectiveZone()})
			if len(scored) > 0 && scored[0].Score > groundedSimThreshold {
				c.Tag = scored[0].Example.Tag
				c.Confidence = 50
				c.Reasoning = fmt.Sprintf("grounded fallback (similarity %.2f)", scored[0].Score)
			}
		}
		out = append(out, c)
	}
	return out
}

func chunkParagraphs(paras []types.Paragraph, size int) [][]types.Paragraph {
	var chunks [][]types.Paragraph
	for start := 0; start < len(paras); start += size {
		end := min(start+size, len(paras))
		chunks = append(chunks, paras[start:end])
	}
	return chunks
}
