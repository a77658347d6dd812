package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/macsteckler/lightspeeed-scraper/internal/database"
	"github.com/macsteckler/lightspeeed-scraper/internal/dates"
	"github.com/macsteckler/lightspeeed-scraper/internal/embed"
	"github.com/macsteckler/lightspeeed-scraper/internal/extract"
	"github.com/macsteckler/lightspeeed-scraper/internal/keypool"
	"github.com/macsteckler/lightspeeed-scraper/internal/llm"
	"github.com/macsteckler/lightspeeed-scraper/internal/logger"
	"github.com/macsteckler/lightspeeed-scraper/internal/pipeline"
	"github.com/macsteckler/lightspeeed-scraper/internal/telemetry"
	"github.com/macsteckler/lightspeeed-scraper/internal/worker"
)

func newWorkerCmd() *cobra.Command {
	var resumeJobs bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the scraping worker",
		Long: `Worker polls the job queue and executes claimed jobs through the
scraping pipeline. Several workers may run against the same database;
the queue's atomic claim keeps them from stepping on each other.

By default a starting worker cancels every job left queued or in
progress by a previous run. Pass --resume-jobs to keep them instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context(), resumeJobs)
		},
	}
	cmd.Flags().BoolVar(&resumeJobs, "resume-jobs", false,
		"keep jobs left queued or in progress by a previous worker")
	return cmd
}

func runWorker(ctx context.Context, resumeJobs bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateWorker(); err != nil {
		return err
	}

	log, flush, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer flush()

	tel := telemetry.NewProvider()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Warn("failed to close database", logger.Error(closeErr))
		}
	}()

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	jobs := database.NewJobRepository(db)
	articles := database.NewArticleRepository(db)
	processed := database.NewProcessedURLRepository(db)
	sources := database.NewSourceRepository(db)

	pool, err := keypool.New(cfg.Extraction.APIKeys)
	if err != nil {
		return err
	}

	extractor := extract.New(
		extract.NewBrowserEngine(log),
		extract.NewAPIEngine(cfg.Extraction.APIURL, pool, log),
		tel, log,
	)

	prompts := llm.LoadPrompts(ctx, database.NewPromptRepository(db), log)
	llmClient := llm.New(cfg.LLM, prompts, tel, log)

	var embedder pipeline.Embedder
	if cfg.Embeddings.Enabled {
		sink, sinkErr := embed.NewSink(ctx, cfg.Embeddings, log)
		if sinkErr != nil {
			return sinkErr
		}
		provider := embed.NewProvider(cfg.Embeddings, log)
		embedder = embed.NewService(provider, sink, articles, cfg.Embeddings.MaxConcurrent, tel, log)
	} else {
		log.Info("embeddings disabled, articles will not be vectorized")
	}

	pipe := pipeline.New(pipeline.Deps{
		Jobs:             jobs,
		Articles:         articles,
		Processed:        processed,
		Sources:          sources,
		Extractor:        extractor,
		LLM:              llmClient,
		Dates:            dates.NewResolver(llmClient, log),
		Embedder:         embedder,
		Telemetry:        tel,
		Log:              log,
		BatchConcurrency: pipeline.BatchConcurrencyFor(pool.Size()),
	})

	health := database.NewHealth(db, cfg.Database.MaxIdleConns)
	runner := worker.NewRunner(jobs, pipe, health, tel, log, worker.Config{
		PollInterval: cfg.Worker.PollInterval,
		ResumeJobs:   resumeJobs || cfg.Worker.ResumeJobs,
	})

	scheduler, err := worker.NewScheduler(cfg.Batch, jobs, log)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	worker.NewWatchdog(worker.DefaultShutdownGrace, log).Arm(ctx)

	return runner.Run(ctx)
}
