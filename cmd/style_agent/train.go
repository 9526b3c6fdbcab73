package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/style-tagger/internal/db"
	"github.com/jonathan/style-tagger/internal/rules"
)

var trainCommand = &cobra.Command{
	Use:   "train",
	Short: "Learn classification rules from a labeled corpus",
	Long:  "Derives deterministic if-then rules from aligned ground-truth examples. Only rules with enough support and precision are admitted; the resulting artifact feeds the rule tier of classification runs.",
	RunE:  runTrain,
}

var (
	trainCorpus        string
	trainOut           string
	trainMinSupport    int
	trainMinConfidence float64
	trainTopN          int
	trainDBURL         string
)

func init() {
	trainCommand.Flags().StringVarP(&trainCorpus, "corpus", "c", "", "Path to labeled examples JSON (required)")
	trainCommand.Flags().StringVarP(&trainOut, "out", "o", "", "Path to write the rule set to (required)")
	trainCommand.Flags().IntVar(&trainMinSupport, "min-support", 0, "Minimum correct examples a rule must cover")
	trainCommand.Flags().Float64Var(&trainMinConfidence, "min-confidence", 0, "Minimum rule precision")
	trainCommand.Flags().IntVar(&trainTopN, "top", 20, "Rules to show in the report")
	trainCommand.Flags().StringVar(&trainDBURL, "db-url", "", "PostgreSQL connection URL (optional, also persists the rule set)")

	trainCommand.MarkFlagRequired("corpus")
	trainCommand.MarkFlagRequired("out")

	rootCmd.AddCommand(trainCommand)
}

func runTrain(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	examples, err := loadCorpus(trainCorpus)
	if err != nil {
		return err
	}

	rs := rules.Train(examples, rules.TrainOptions{
		MinSupport:    trainMinSupport,
		MinConfidence: trainMinConfidence,
	})

	if err := rules.Save(trainOut, rs); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Rule set written to %s\n", trainOut)
	fmt.Fprint(os.Stdout, rules.Report(rs, trainTopN))

	if trainDBURL != "" {
		database, err := db.Connect(ctx, trainDBURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()
		if err := database.SaveRuleSet(ctx, rs); err != nil {
			return fmt.Errorf("failed to persist rule set: %w", err)
		}
		fmt.Fprintln(os.Stdout, "Rule set persisted to database")
	}

	return nil
}
