package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jonathan/style-tagger/internal/types"
)

func loadParagraphs(path string) ([]types.Paragraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read paragraphs from %s: %w", path, err)
	}
	var paras []types.Paragraph
	if err := json.Unmarshal(data, &paras); err != nil {
		return nil, fmt.Errorf("failed to parse paragraphs JSON: %w", err)
	}
	return paras, nil
}

func loadCorpus(path string) ([]types.LabeledExample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus from %s: %w", path, err)
	}
	var examples []types.LabeledExample
	if err := json.Unmarshal(data, &examples); err != nil {
		return nil, fmt.Errorf("failed to parse corpus JSON: %w", err)
	}
	return examples, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
