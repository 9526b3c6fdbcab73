// Package main provides the entry point for the paragraph style
// classification CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "style_agent",
	Short: "Grounded paragraph style classifier",
	Long:  "Style Agent assigns typesetting style tags to document paragraphs using learned rules, a ground-truth corpus, and tiered LLM classification.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
