package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/macsteckler/lightspeeed-scraper/internal/api"
	"github.com/macsteckler/lightspeeed-scraper/internal/database"
	"github.com/macsteckler/lightspeeed-scraper/internal/httpserver"
	"github.com/macsteckler/lightspeeed-scraper/internal/logger"
	"github.com/macsteckler/lightspeeed-scraper/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API server",
		Long: `Serve runs the facade that accepts scrape requests over HTTP and
enqueues them as jobs. It does no scraping itself; run one or more
workers against the same database to execute the queue.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
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

	handler := api.NewHandler(database.NewJobRepository(db), log)
	server := httpserver.NewServer(cfg.Server, debug, log, tel, func(router *gin.Engine) {
		api.SetupRoutes(router, handler, api.RoutesConfig{
			Service:   serviceName,
			Version:   version,
			JWTSecret: cfg.Auth.JWTSecret,
			Telemetry: tel,
			HealthChecks: map[string]httpserver.HealthChecker{
				"database": httpserver.DatabaseHealthChecker(db.PingContext),
			},
		})
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("api server starting",
		logger.String("address", cfg.Server.Address()),
		logger.String("version", version),
	)
	return server.RunWithGracefulShutdown(ctx)
}
