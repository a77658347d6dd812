package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/macsteckler/lightspeeed-scraper/internal/database"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		Long: `Migrate bootstraps the scrape_jobs, news_articles,
processed_news_urls, news_sources, city_sources, and prompts tables.
The statements are idempotent; running migrate against an existing
schema is safe.

Serve and worker run the same bootstrap at startup, so this command is
only needed to prepare a database ahead of a deployment.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context())
		},
	}
}

func runMigrate(ctx context.Context) error {
	db, err := connectForCLI()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}
	fmt.Println("schema migration complete")
	return nil
}
