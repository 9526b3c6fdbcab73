package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/style-tagger/internal/rules"
)

var rulesCommand = &cobra.Command{
	Use:   "rules",
	Short: "Inspect a trained rule set",
	RunE:  runRulesReport,
}

var (
	rulesPath string
	rulesTopN int
)

func init() {
	rulesCommand.Flags().StringVarP(&rulesPath, "rules", "r", "", "Path to trained rule set artifact (required)")
	rulesCommand.Flags().IntVar(&rulesTopN, "top", 0, "Rules to show (0 shows all)")

	rulesCommand.MarkFlagRequired("rules")

	rootCmd.AddCommand(rulesCommand)
}

func runRulesReport(_ *cobra.Command, _ []string) error {
	rs, err := rules.Load(rulesPath)
	if err != nil {
		return err
	}
	fmt.Fprint(os.Stdout, rules.Report(rs, rulesTopN))
	return nil
}
