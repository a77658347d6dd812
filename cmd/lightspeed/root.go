// Command lightspeed runs the news scraping pipeline: a REST facade
// that enqueues scrape jobs, a polling worker that executes them, and
// operator subcommands over the same job store.
package main

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/macsteckler/lightspeeed-scraper/internal/config"
	"github.com/macsteckler/lightspeeed-scraper/internal/logger"
)

const (
	serviceName = "lightspeed-scraper"
	version     = "1.0.0"
)

var (
	cfgFile string
	debug   bool

	rootCmd = &cobra.Command{
		Use:   "lightspeed",
		Short: "News scraping pipeline",
		Long: `Lightspeed scrapes news sources into structured articles.

The serve command runs the REST facade that accepts scrape requests and
enqueues them; the worker command runs the process that claims queued
jobs and executes the extraction, classification, summarization, and
embedding pipeline.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Load .env early so viper sees its variables.
	_ = godotenv.Load()
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is ./config.yaml or ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", serviceName, version)
		},
	})
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newWorkerCmd())
	rootCmd.AddCommand(newJobsCmd())
	rootCmd.AddCommand(newMigrateCmd())
}

// loadConfig reads configuration and applies the global debug flag.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Logger.Level = "debug"
	}
	return cfg, nil
}

// newLogger builds the process logger and returns a flush function for
// deferring.
func newLogger(cfg *config.Config) (logger.Logger, func(), error) {
	log, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return log, func() { _ = log.Sync() }, nil
}
