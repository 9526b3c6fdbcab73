package classify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jonathan/style-tagger/internal/llm"
	"github.com/jonathan/style-tagger/internal/prompts"
	"github.com/jonathan/style-tagger/internal/retrieval"
	"github.com/jonathan/style-tagger/internal/types"
	"github.com/jonathan/style-tagger/internal/vocab"
)

// classifyChunk sends one chunk to the primary model and converts the
// response into vocabulary-valid classifications. Out-of-vocabulary
// tags trigger a single self-heal retry listing them; whatever remains
// invalid afterwards is forced through the normalizer with a grounded
// assist.
func (o *Orchestrator) classifyChunk(ctx context.Context, chunk []types.Paragraph, documentName, chunkInfo, systemPrompt string, tier llm.Tier) ([]types.Classification, types.TokenUsage, error) {
	var usage types.TokenUsage

	userPrompt := prompts.BuildUserPrompt(prompts.UserPromptInput{
		Paragraphs:   chunk,
		DocumentName: documentName,
		DocumentType: o.opts.DocumentType,
		ChunkInfo:    chunkInfo,
		Grounded:     o.groundedSection(chunk),
	}, o.norm.Vocabulary())

	prompt := userPrompt
	if systemPrompt != "" {
		prompt = systemPrompt + "\n\n" + userPrompt
	}

	fmt.Printf("Sending %d paragraphs to %s\n", len(chunk), o.client.GetModel(tier))
	response, callUsage, err := o.client.GenerateJSON(ctx, prompt, tier)
	usage.Add(callUsage)
	if err != nil {
		return nil, usage, err
	}

	raws, err := llm.ParseClassifications(response)
	if err != nil {
		return nil, usage, fmt.Errorf("failed to parse chunk response: %w", err)
	}

	// Self-heal: retry once with the invalid tags called out.
	if invalid := o.findInvalidTags(raws, chunk); len(invalid) > 0 {
		fmt.Printf("Invalid tags detected: %s. Retrying once with correction.\n", strings.Join(invalid, ", "))
		suffix, serr := prompts.CorrectionSuffix(invalid)
		if serr == nil {
			response, callUsage, err = o.client.GenerateJSON(ctx, prompt+"\n\n"+suffix, tier)
			usage.Add(callUsage)
			if err == nil {
				if healed, perr := llm.ParseClassifications(response); perr == nil {
					raws = healed
				}
			}
		}
	}

	return o.finalizeChunk(raws, chunk), usage, nil
}

// groundedSection retrieves few-shot examples similar to the chunk's
// opening paragraphs.
func (o *Orchestrator) groundedSection(chunk []types.Paragraph) string {
	if o.retriever == nil || len(chunk) == 0 {
		return ""
	}

	samples := make([]string, 0, 3)
	for _, p := range chunk[:min(3, len(chunk))] {
		text := p.Text
		if len(text) > 200 {
			text = text[:200]
		}
		samples = append(samples, text)
	}

	scored := o.retriever.Retrieve(retrieval.Query{
		Text: strings.Join(samples, " "),
		K:    retrieval.DefaultK,
		Zone: chunk[0].EffectiveZone(),
	})
	if len(scored) == 0 {
		return ""
	}
	return retrieval.FormatForPrompt(scored)
}

// findInvalidTags collects response tags that stay out of vocabulary
// after contextual alias mapping. The correction prompt echoes the
// model's own spelling, not the mapped form.
func (o *Orchestrator) findInvalidTags(raws []llm.RawClassification, chunk []types.Paragraph) []string {
	textByID := make(map[int]types.Paragraph, len(chunk))
	for _, p := range chunk {
		textByID[p.ID] = p
	}

	seen := make(map[string]struct{})
	for _, raw := range raws {
		p, ok := textByID[raw.ID]
		if !ok {
			continue
		}
		mapped := o.norm.MapAlias(raw.Tag, p.EffectiveZone(), p.Text)
		if !o.norm.Vocabulary().Has(mapped) {
			seen[raw.Tag] = struct{}{}
		}
	}

	invalid := make([]string, 0, len(seen))
	for tag := range seen {
		invalid = append(invalid, tag)
	}
	sort.Strings(invalid)
	return invalid
}

// finalizeChunk converts raw model output into classifications:
// normalizes tags into the vocabulary (with a grounded assist when
// normalization bottoms out), and backfills paragraphs the response
// skipped.
func (o *Orchestrator) finalizeChunk(raws []llm.RawClassification, chunk []types.Paragraph) []types.Classification {
	paraByID := make(map[int]types.Paragraph, len(chunk))
	for _, p := range chunk {
		paraByID[p.ID] = p
	}

	results := make(map[int]types.Classification, len(chunk))
	for _, raw := range raws {
		p, ok := paraByID[raw.ID]
		if !ok {
			// IDs outside the chunk are hallucinated; drop them.
			continue
		}
		if _, dup := results[raw.ID]; dup {
			continue
		}

		zone := p.EffectiveZone()
		tag, changed := o.norm.Canonicalize(raw.Tag, zone, p.Text)
		c := types.Classification{
			ID:         raw.ID,
			Tag:        tag,
			Confidence: llm.NormalizeConfidence(raw.Confidence),
			Source:     types.SourceLLM,
			Reasoning:  raw.Reasoning,
		}
		if changed {
			c.RawTag = raw.Tag
		}

		// Normalization that bottoms out at the generic tag for an
		// unrecognized response is weak evidence; prefer the corpus
		// when a close ground-truth match exists.
		if tag == vocab.GenericTag && changed && o.retriever != nil && !o.mappedInVocab(raw.Tag, zone, p.Text) {
			scored := o.retriever.Retrieve(retrieval.Query{Text: p.Text, K: 1, Zone: zone})
			if len(scored) > 0 && scored[0].Score > groundedSimThreshold {
				c.Tag = scored[0].Example.Tag
				c.Reasoning = fmt.Sprintf("grounded fallback (similarity %.2f)", scored[0].Score)
			}
		}
		results[raw.ID] = c
	}

	// Backfill anything the response skipped.
	out := make([]types.Classification, 0, len(chunk))
	for _, p := range chunk {
		if c, ok := results[p.ID]; ok {
			out = append(out, c)
			continue
		}
		out = append(out, types.Classification{
			ID:         p.ID,
			Tag:        vocab.GenericTag,
			Confidence: 0,
			Source:     types.SourceLLM,
			Reasoning:  "Missing from API response",
		})
	}
	return out
}

func (o *Orchestrator) mappedInVocab(rawTag, zone, text string) bool {
	return o.norm.Vocabulary().Has(o.norm.MapAlias(rawTag, zone, text))
}
