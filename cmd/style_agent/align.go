package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/style-tagger/internal/align"
	"github.com/jonathan/style-tagger/internal/db"
	"github.com/jonathan/style-tagger/internal/types"
)

var alignCommand = &cobra.Command{
	Use:   "align",
	Short: "Align an untagged document against its tagged copy",
	Long:  "Pairs each paragraph of an untagged document with its best match in a manually tagged copy and emits labeled examples for training and retrieval. Paragraphs without a confident match are recorded as UNMAPPED.",
	RunE:  runAlign,
}

var (
	alignDoc       string
	alignTagged    string
	alignDocID     string
	alignThreshold float64
	alignOut       string
	alignAppend    bool
	alignDBURL     string
)

func init() {
	alignCommand.Flags().StringVarP(&alignDoc, "doc", "d", "", "Path to untagged paragraphs JSON file (required)")
	alignCommand.Flags().StringVarP(&alignTagged, "tagged", "t", "", "Path to tagged paragraphs JSON file (required)")
	alignCommand.Flags().StringVar(&alignDocID, "doc-id", "", "Document identifier recorded on each example (required)")
	alignCommand.Flags().Float64Var(&alignThreshold, "threshold", 0, "Minimum similarity ratio for accepting a pairing")
	alignCommand.Flags().StringVarP(&alignOut, "out", "o", "", "Path to write labeled examples to (required)")
	alignCommand.Flags().BoolVar(&alignAppend, "append", false, "Merge into an existing corpus file instead of overwriting")
	alignCommand.Flags().StringVar(&alignDBURL, "db-url", "", "PostgreSQL connection URL (optional, also persists examples)")

	alignCommand.MarkFlagRequired("doc")
	alignCommand.MarkFlagRequired("tagged")
	alignCommand.MarkFlagRequired("doc-id")
	alignCommand.MarkFlagRequired("out")

	rootCmd.AddCommand(alignCommand)
}

func runAlign(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	original, err := loadParagraphs(alignDoc)
	if err != nil {
		return err
	}
	tagged, err := loadTaggedParagraphs(alignTagged)
	if err != nil {
		return err
	}

	aligner := align.New(alignThreshold)
	examples := aligner.Align(alignDocID, original, tagged)

	mapped := 0
	for _, ex := range examples {
		if ex.Mapped() {
			mapped++
		}
	}
	fmt.Fprintf(os.Stdout, "Aligned %d/%d paragraphs (%d unmapped)\n",
		mapped, len(examples), len(examples)-mapped)

	if alignAppend {
		if existing, err := loadCorpus(alignOut); err == nil {
			examples = mergeCorpus(existing, examples, alignDocID)
		}
	}

	if err := writeJSON(alignOut, examples); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Labeled examples: %s\n", alignOut)

	if alignDBURL != "" {
		database, err := db.Connect(ctx, alignDBURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()
		if err := database.SaveExamples(ctx, examples); err != nil {
			return fmt.Errorf("failed to persist examples: %w", err)
		}
		fmt.Fprintln(os.Stdout, "Examples persisted to database")
	}

	return nil
}

func loadTaggedParagraphs(path string) ([]align.TaggedParagraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tagged paragraphs from %s: %w", path, err)
	}
	var tagged []align.TaggedParagraph
	if err := json.Unmarshal(data, &tagged); err != nil {
		return nil, fmt.Errorf("failed to parse tagged paragraphs JSON: %w", err)
	}
	return tagged, nil
}

// mergeCorpus replaces any previous examples for the document and keeps
// everything else.
func mergeCorpus(existing, fresh []types.LabeledExample, docID string) []types.LabeledExample {
	merged := make([]types.LabeledExample, 0, len(existing)+len(fresh))
	for _, ex := range existing {
		if ex.DocID != docID {
			merged = append(merged, ex)
		}
	}
	return append(merged, fresh...)
}
