package llm

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// RawClassification is one item of a model's JSON response before
// vocabulary normalization.
type RawClassification struct {
	ID         int     `json:"id"`
	Tag        string  `json:"tag"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// CleanJSONBlock removes markdown code block wrappers from JSON
// responses. Models often wrap JSON in ```json fences even when
// instructed not to.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		return strings.TrimSpace(text)
	}

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.Index(text, "\n"); idx >= 0 {
			firstLine := text[:idx]
			if len(firstLine) < 20 && !strings.Contains(firstLine, " ") && !strings.Contains(firstLine, "{") {
				text = text[idx+1:]
			}
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		return strings.TrimSpace(text)
	}

	return text
}

var (
	arrayRe  = regexp.MustCompile(`\[[\s\S]*\]`)
	objectRe = regexp.MustCompile(`\{\s*"id"\s*:\s*(\d+)\s*,\s*"tag"\s*:\s*"([^"]+)"\s*,\s*"confidence"\s*:\s*(\d+)`)
	fenceRe  = regexp.MustCompile("```(json)?\\s*")
)

// ParseClassifications decodes a model response into classification
// items, trying progressively more forgiving strategies: direct array
// parse, array extraction from surrounding prose, truncation repair,
// and finally per-object scanning. An error means every strategy
// failed.
func ParseClassifications(responseText string) ([]RawClassification, error) {
	text := CleanJSONBlock(responseText)

	var items []RawClassification
	if err := json.Unmarshal([]byte(text), &items); err == nil {
		return items, nil
	}

	if match := arrayRe.FindString(text); match != "" {
		if err := json.Unmarshal([]byte(match), &items); err == nil {
			return items, nil
		}
	}

	if fixed := fixTruncatedArray(text); fixed != "" {
		if err := json.Unmarshal([]byte(fixed), &items); err == nil {
			return items, nil
		}
	}

	if items = parseIndividualObjects(text); len(items) > 0 {
		return items, nil
	}

	preview := responseText
	if len(preview) > 200 {
		preview = preview[:200]
	}
	return nil, fmt.Errorf("failed to parse response as JSON after all strategies: %q", preview)
}

// fixTruncatedArray recovers a JSON array cut off mid-object by
// dropping the incomplete tail and closing the array.
func fixTruncatedArray(text string) string {
	text = strings.TrimSpace(fenceRe.ReplaceAllString(text, ""))

	if !strings.HasPrefix(text, "[") {
		start := strings.Index(text, "[")
		if start < 0 {
			return ""
		}
		text = text[start:]
	}

	if strings.HasSuffix(strings.TrimRight(text, " \t\n"), "]") {
		return text
	}

	if idx := strings.LastIndex(text, "},"); idx >= 0 {
		return text[:idx+1] + "]"
	}
	if idx := strings.LastIndex(text, "}"); idx >= 0 {
		return text[:idx+1] + "]"
	}
	return ""
}

// parseIndividualObjects scavenges well-formed items out of otherwise
// unparseable output.
func parseIndividualObjects(text string) []RawClassification {
	var items []RawClassification
	for _, m := range objectRe.FindAllStringSubmatch(text, -1) {
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		conf, err := strconv.Atoi(m[3])
		if err != nil {
			continue
		}
		items = append(items, RawClassification{ID: id, Tag: m[2], Confidence: float64(conf)})
	}
	return items
}

// NormalizeConfidence converts a model confidence to the 0-100 integer
// scale, accepting fractional 0-1 outputs.
func NormalizeConfidence(value float64) int {
	if value <= 1.0 {
		value *= 100
	}
	conf := int(math.Round(value))
	if conf < 0 {
		conf = 0
	}
	if conf > 100 {
		conf = 100
	}
	return conf
}
