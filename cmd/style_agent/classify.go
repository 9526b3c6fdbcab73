package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/style-tagger/internal/cache"
	"github.com/jonathan/style-tagger/internal/classify"
	"github.com/jonathan/style-tagger/internal/config"
	"github.com/jonathan/style-tagger/internal/db"
	"github.com/jonathan/style-tagger/internal/llm"
	"github.com/jonathan/style-tagger/internal/observability"
	"github.com/jonathan/style-tagger/internal/prompts"
	"github.com/jonathan/style-tagger/internal/retrieval"
	"github.com/jonathan/style-tagger/internal/rules"
	"github.com/jonathan/style-tagger/internal/types"
	"github.com/jonathan/style-tagger/internal/vocab"
)

var classifyCommand = &cobra.Command{
	Use:   "classify",
	Short: "Classify every paragraph of a document",
	Long: `Runs the full classification pipeline: reference zone detection -> cache -> learned rules -> chunked LLM classification -> low-confidence fallback -> zone validation.

Configuration can be loaded from a JSON file using --config. Command-line arguments override config file values.`,
	RunE: runClassifyCmd,
}

var (
	clsConfigPath    string
	clsInput         string
	clsVocab         string
	clsRuleSet       string
	clsCorpus        string
	clsOutput        string
	clsDocName       string
	clsDocType       string
	clsAPIKey        string
	clsModel         string
	clsFallbackModel string
	clsEnableFB      bool
	clsChunkSize     int
	clsWorkers       int
	clsConfThreshold int
	clsCacheTTLDays  int
	clsVerbose       bool
	clsDatabaseURL   string
)

func init() {
	// Config file flag (processed first)
	classifyCommand.Flags().StringVar(&clsConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	classifyCommand.Flags().StringVarP(&clsInput, "input", "i", "", "Path to paragraphs JSON file")
	classifyCommand.Flags().StringVar(&clsVocab, "vocab", "", "Path to allowed-styles artifact")
	classifyCommand.Flags().StringVar(&clsRuleSet, "rules", "", "Path to trained rule set artifact (optional)")
	classifyCommand.Flags().StringVar(&clsCorpus, "corpus", "", "Path to labeled examples JSON (optional, enables grounded retrieval)")
	classifyCommand.Flags().StringVarP(&clsOutput, "output", "o", "", "Path to write classifications to")
	classifyCommand.Flags().StringVar(&clsDocName, "document-name", "", "Document name recorded with the run")
	classifyCommand.Flags().StringVar(&clsDocType, "document-type", "", "Document type hint for prompts")
	classifyCommand.Flags().StringVar(&clsModel, "model", "", "Primary model name")
	classifyCommand.Flags().StringVar(&clsFallbackModel, "fallback-model", "", "Fallback model name for low-confidence items")
	classifyCommand.Flags().BoolVar(&clsEnableFB, "enable-fallback", false, "Re-classify low-confidence items with the fallback model")
	classifyCommand.Flags().IntVar(&clsChunkSize, "chunk-size", 0, "Paragraphs per LLM request")
	classifyCommand.Flags().IntVar(&clsWorkers, "workers", 0, "Concurrent chunk workers")
	classifyCommand.Flags().IntVar(&clsConfThreshold, "confidence-threshold", 0, "Confidence below which the fallback model re-classifies")
	classifyCommand.Flags().IntVar(&clsCacheTTLDays, "cache-ttl-days", 0, "Prediction cache entry lifetime in days")
	classifyCommand.Flags().BoolVarP(&clsVerbose, "verbose", "v", false, "Print detailed debug information")

	// API key can be passed as a flag, or read from env var GEMINI_API_KEY
	classifyCommand.Flags().StringVar(&clsAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")

	// Database URL for run and cache persistence
	classifyCommand.Flags().StringVar(&clsDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")

	rootCmd.AddCommand(classifyCommand)
}

func runClassifyCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	// Step 1: Load config file if provided
	var cfg config.Config
	if clsConfigPath != "" {
		loadedCfg, err := config.LoadConfig(clsConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loadedCfg
		if clsVerbose {
			fmt.Fprintf(os.Stdout, "Loaded config from: %s\n", clsConfigPath)
		}
	}

	// Step 2: Apply CLI overrides (command-line args take priority)
	// Only override if the flag was explicitly set
	if cmd.Flags().Changed("input") {
		cfg.Input = clsInput
	}
	if cmd.Flags().Changed("vocab") {
		cfg.Vocabulary = clsVocab
	}
	if cmd.Flags().Changed("rules") {
		cfg.RuleSet = clsRuleSet
	}
	if cmd.Flags().Changed("corpus") {
		cfg.Corpus = clsCorpus
	}
	if cmd.Flags().Changed("output") {
		cfg.Output = clsOutput
	}
	if cmd.Flags().Changed("document-name") {
		cfg.DocumentName = clsDocName
	}
	if cmd.Flags().Changed("document-type") {
		cfg.DocumentType = clsDocType
	}
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = clsAPIKey
	}
	if cmd.Flags().Changed("model") {
		cfg.Model = clsModel
	}
	if cmd.Flags().Changed("fallback-model") {
		cfg.FallbackModel = clsFallbackModel
	}
	if cmd.Flags().Changed("enable-fallback") {
		cfg.EnableFallback = clsEnableFB
	}
	if cmd.Flags().Changed("chunk-size") {
		cfg.ChunkSize = clsChunkSize
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = clsWorkers
	}
	if cmd.Flags().Changed("confidence-threshold") {
		cfg.ConfidenceThreshold = clsConfThreshold
	}
	if cmd.Flags().Changed("cache-ttl-days") {
		cfg.CacheTTLDays = clsCacheTTLDays
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = clsVerbose
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = clsDatabaseURL
	}

	// Step 3: Apply defaults for unset values
	defaults := config.Config{
		Output:              "classifications.json",
		DocumentType:        "Academic Document",
		ChunkSize:           classify.DefaultChunkSize,
		Workers:             classify.DefaultWorkers,
		ConfidenceThreshold: classify.DefaultFallbackThreshold,
		CacheTTLDays:        30,
	}
	cfg = cfg.MergeWithDefaults(defaults)

	// Step 4: Validate required fields
	if cfg.Input == "" {
		return fmt.Errorf("--input is required (via flag or config)")
	}
	if cfg.Vocabulary == "" {
		return fmt.Errorf("--vocab is required (via flag or config)")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.DocumentName == "" {
		cfg.DocumentName = cfg.Input
	}

	// Step 5: API Key handling. Without a key the run degrades to
	// rules, cache, and grounded fallback only.
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIKey == "" {
		fmt.Fprintln(os.Stdout, "Warning: no API key configured; running without LLM classification")
	}

	// Step 6: Database handling (optional)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	var database *db.DB
	if cfg.DatabaseURL != "" {
		var err error
		database, err = db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			fmt.Fprintf(os.Stdout, "Warning: database unavailable (%v); continuing without persistence\n", err)
			database = nil
		} else {
			defer database.Close()
		}
	}

	paras, err := loadParagraphs(cfg.Input)
	if err != nil {
		return err
	}

	vocabulary, err := vocab.Load(cfg.Vocabulary)
	if err != nil {
		return fmt.Errorf("failed to load vocabulary: %w", err)
	}
	normalizer := vocab.NewNormalizer(vocabulary)

	engine, err := buildRuleEngine(ctx, &cfg, database)
	if err != nil {
		return err
	}

	retriever, err := buildRetriever(ctx, &cfg, database)
	if err != nil {
		return err
	}

	var store cache.Store
	if database != nil {
		store = database.CacheStore()
	}
	predictionCache := cache.New(store, time.Duration(cfg.CacheTTLDays)*24*time.Hour)

	var client llm.Client
	if cfg.APIKey != "" {
		llmCfg := llm.DefaultConfig()
		if cfg.Model != "" {
			llmCfg = llmCfg.WithModel(llm.TierPrimary, cfg.Model)
		}
		if cfg.FallbackModel != "" {
			llmCfg = llmCfg.WithModel(llm.TierFallback, cfg.FallbackModel)
		}
		client, err = llm.NewClient(ctx, llmCfg, cfg.APIKey)
		if err != nil {
			return fmt.Errorf("failed to create classifier client: %w", err)
		}
		defer client.Close()
	}

	orchestrator, err := classify.New(classify.Deps{
		Client:     client,
		Rules:      engine,
		Retriever:  retriever,
		Cache:      predictionCache,
		Normalizer: normalizer,
		Options: classify.Options{
			ChunkSize:         cfg.ChunkSize,
			Workers:           cfg.Workers,
			FallbackThreshold: cfg.ConfidenceThreshold,
			EnableFallback:    cfg.EnableFallback,
			DocumentType:      cfg.DocumentType,
			Verbose:           cfg.Verbose,
		},
	})
	if err != nil {
		return err
	}

	runID, runRecorded := recordRunStart(ctx, database, cfg.DocumentName, paras)

	results, stats, err := orchestrator.Classify(ctx, paras, cfg.DocumentName)
	if err != nil {
		if runRecorded {
			_ = database.CompleteRun(ctx, runID, db.RunStatusFailed, stats)
		}
		return fmt.Errorf("classification failed: %w", err)
	}

	if runRecorded {
		if err := database.SaveResults(ctx, runID, results); err != nil {
			fmt.Fprintf(os.Stdout, "Warning: failed to persist results: %v\n", err)
		}
		if err := database.CompleteRun(ctx, runID, db.RunStatusCompleted, stats); err != nil {
			fmt.Fprintf(os.Stdout, "Warning: failed to complete run record: %v\n", err)
		}
	}

	if err := writeJSON(cfg.Output, results); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Fprintf(os.Stdout, "Classifications written to %s\n", cfg.Output)

	printer := observability.NewPrinter(os.Stdout)
	printer.PrintRunSummary(stats)
	printer.PrintCacheStats(stats.Cache)
	printer.PrintTagDistribution(results)
	printer.PrintZoneViolations(results)

	return nil
}

// buildRuleEngine prefers an explicit rule set artifact over the latest
// trained set in the database. Without either, rules contribute nothing
// and every paragraph falls through to the other tiers.
func buildRuleEngine(ctx context.Context, cfg *config.Config, database *db.DB) (*rules.Engine, error) {
	engine := rules.NewEngine(0)
	if cfg.RuleSet != "" {
		rs, err := rules.Load(cfg.RuleSet)
		if err != nil {
			return nil, fmt.Errorf("failed to load rule set: %w", err)
		}
		engine.Swap(rs)
		return engine, nil
	}
	if database != nil {
		rs, err := database.LoadLatestRuleSet(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load rule set from database: %w", err)
		}
		if rs != nil {
			engine.Swap(rs)
		}
	}
	return engine, nil
}

// buildRetriever indexes the ground-truth corpus when one is available.
func buildRetriever(ctx context.Context, cfg *config.Config, database *db.DB) (*retrieval.Index, error) {
	var corpus []types.LabeledExample
	var err error
	switch {
	case cfg.Corpus != "":
		corpus, err = loadCorpus(cfg.Corpus)
	case database != nil:
		corpus, err = database.LoadExamples(ctx)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(corpus) == 0 {
		return nil, nil
	}
	return retrieval.NewIndex(corpus, 0), nil
}

func recordRunStart(ctx context.Context, database *db.DB, documentName string, paras []types.Paragraph) (runID uuid.UUID, ok bool) {
	if database == nil {
		return uuid.Nil, false
	}
	profile := prompts.RouteProfile(paras)
	runID, err := database.CreateRun(ctx, documentName, string(profile))
	if err != nil {
		fmt.Fprintf(os.Stdout, "Warning: failed to record run: %v\n", err)
		return uuid.Nil, false
	}
	return runID, true
}
