package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/style-tagger/internal/db"
)

var cacheCommand = &cobra.Command{
	Use:   "cache",
	Short: "Manage the persistent prediction cache",
}

var cachePurgeCommand = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired prediction cache entries",
	RunE:  runCachePurge,
}

var (
	cacheDBURL     string
	cacheOlderThan string
)

func init() {
	cachePurgeCommand.Flags().StringVar(&cacheDBURL, "db-url", "", "PostgreSQL connection URL (defaults to DATABASE_URL env var)")
	cachePurgeCommand.Flags().StringVar(&cacheOlderThan, "older-than", "30 days", "Age threshold as a PostgreSQL interval")

	cacheCommand.AddCommand(cachePurgeCommand)
	rootCmd.AddCommand(cacheCommand)
}

func runCachePurge(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	url := cacheDBURL
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		return fmt.Errorf("DATABASE_URL environment variable or --db-url flag is required")
	}

	database, err := db.Connect(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	purged, err := database.CacheStore().PurgeExpiredEntries(ctx, cacheOlderThan)
	if err != nil {
		return fmt.Errorf("failed to purge cache entries: %w", err)
	}
	fmt.Fprintf(os.Stdout, "Purged %d expired cache entries\n", purged)
	return nil
}
