package worker

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/macsteckler/lightspeeed-scraper/internal/config"
	"github.com/macsteckler/lightspeeed-scraper/internal/domain"
	"github.com/macsteckler/lightspeeed-scraper/internal/logger"
)

// Enqueuer inserts new jobs into the queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload domain.JSONBMap) (int64, error)
}

// Scheduler fires a BATCH job on a cron schedule so the source table is
// crawled without an external trigger.
type Scheduler struct {
	cron     *cron.Cron
	schedule string
	log      logger.Logger
}

// NewScheduler wires a standard five-field cron expression that
// enqueues one BATCH job per firing. An empty schedule disables the
// scheduler and returns nil without error.
func NewScheduler(cfg config.BatchConfig, queue Enqueuer, log logger.Logger) (*Scheduler, error) {
	if cfg.Schedule == "" {
		return nil, nil
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = domain.DefaultBatchSize
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))

	_, err := c.AddFunc(cfg.Schedule, func() {
		payload, err := domain.EncodePayload(domain.BatchPayload{BatchSize: batchSize})
		if err != nil {
			log.Error("failed to encode batch payload", logger.Error(err))
			return
		}
		jobID, err := queue.Enqueue(context.Background(), domain.JobTypeBatch, payload)
		if err != nil {
			log.Error("failed to enqueue scheduled batch", logger.Error(err))
			return
		}
		log.Info("enqueued scheduled batch job",
			logger.Int64("job_id", jobID),
			logger.Int("batch_size", batchSize),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid batch schedule %q: %w", cfg.Schedule, err)
	}

	return &Scheduler{cron: c, schedule: cfg.Schedule, log: log}, nil
}

// Start begins firing the schedule. Safe on a nil Scheduler.
func (s *Scheduler) Start() {
	if s == nil {
		return
	}
	s.cron.Start()
	s.log.Info("batch schedule active", logger.String("schedule", s.schedule))
}

// Stop halts the schedule and waits for an in-flight firing to finish.
// Safe on a nil Scheduler.
func (s *Scheduler) Stop() {
	if s == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.log.Info("batch schedule stopped")
}
