package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/macsteckler/lightspeeed-scraper/internal/database"
	"github.com/macsteckler/lightspeeed-scraper/internal/domain"
)

const defaultListLimit = 20

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect the scrape job queue",
	}
	cmd.AddCommand(newJobsListCmd())
	cmd.AddCommand(newJobsGetCmd())
	return cmd
}

func newJobsListCmd() *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" && !domain.ValidJobStatus(status) {
				return fmt.Errorf("unknown status %q (want queued, in_progress, done, error, or cancelled)", status)
			}
			return runJobsList(cmd.Context(), status, limit)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by job status")
	cmd.Flags().IntVar(&limit, "limit", defaultListLimit, "maximum rows to print")
	return cmd
}

func newJobsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one job with its progress counters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			return runJobsGet(cmd.Context(), id)
		},
	}
}

// connectForCLI opens the database for a one-shot operator command.
func connectForCLI() (*sqlx.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return nil, err
	}
	return database.Connect(cfg.Database)
}

func runJobsList(ctx context.Context, status string, limit int) error {
	db, err := connectForCLI()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	jobs, err := database.NewJobRepository(db).List(ctx, status, limit)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("no jobs found")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Type", "Status", "Found", "Saved", "Skipped", "Errors", "Updated"})
	for _, job := range jobs {
		t.AppendRow(table.Row{
			job.ID,
			job.JobType,
			job.Status,
			job.LinksFound,
			job.ArticlesSaved,
			job.LinksSkipped,
			job.Errors,
			job.UpdatedAt.Format(time.RFC3339),
		})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
	return nil
}

func runJobsGet(ctx context.Context, id int64) error {
	db, err := connectForCLI()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	job, err := database.NewJobRepository(db).Get(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("job %d not found", id)
	}
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendRows([]table.Row{
		{"ID", job.ID},
		{"Type", job.JobType},
		{"Status", job.Status},
		{"Links found", job.LinksFound},
		{"Articles saved", job.ArticlesSaved},
		{"Links skipped", job.LinksSkipped},
		{"Errors", job.Errors},
		{"Created", job.CreatedAt.Format(time.RFC3339)},
		{"Updated", job.UpdatedAt.Format(time.RFC3339)},
	})
	if job.ErrorMessage != nil {
		t.AppendRow(table.Row{"Error message", *job.ErrorMessage})
	}
	t.SetStyle(table.StyleLight)
	t.Render()

	payload, err := json.MarshalIndent(job.Payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render payload: %w", err)
	}
	fmt.Printf("Payload:\n%s\n", payload)
	return nil
}
