// Package worker runs the polling loop that drains the job queue. One
// runner claims one job at a time; horizontal scale comes from running
// more workers, which the queue's atomic claim makes safe.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/macsteckler/lightspeeed-scraper/internal/database"
	"github.com/macsteckler/lightspeeed-scraper/internal/domain"
	"github.com/macsteckler/lightspeeed-scraper/internal/logger"
	"github.com/macsteckler/lightspeeed-scraper/internal/retry"
	"github.com/macsteckler/lightspeeed-scraper/internal/telemetry"
)

const (
	// DefaultPollInterval is the queue poll cadence when the config
	// leaves it unset.
	DefaultPollInterval = 2 * time.Second

	// maxEmptyBackoff caps the sleep after an empty poll.
	maxEmptyBackoff = 60 * time.Second
	// maxErrorBackoff caps the widened sleep after connection trouble.
	maxErrorBackoff = 120 * time.Second
	// refreshStreak is the consecutive-failure count that forces a pool
	// refresh.
	refreshStreak = 5

	// statsInterval is how often the runner logs its lifetime stats.
	statsInterval = 15 * time.Minute

	// restartCancelReason is stamped on rows swept at startup.
	restartCancelReason = "cancelled due to worker restart"
)

// Queue is the slice of the job store the runner drives.
type Queue interface {
	Claim(ctx context.Context) (*domain.Job, error)
	MarkDone(ctx context.Context, id int64) error
	MarkError(ctx context.Context, id int64, message string) error
	CancelIncomplete(ctx context.Context, reason string) (int64, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// Dispatcher executes one claimed job. Satisfied by *pipeline.Pipeline.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *domain.Job) error
}

// HealthChecker supervises the database pool. Satisfied by
// *database.Health.
type HealthChecker interface {
	ProbeIfDue(ctx context.Context) (bool, error)
	Refresh(ctx context.Context) error
}

// Config holds the runner's tunables.
type Config struct {
	// PollInterval is the base queue poll cadence.
	PollInterval time.Duration
	// ResumeJobs skips the startup sweep that cancels queued and
	// in_progress rows left behind by a previous worker.
	ResumeJobs bool
}

// Runner claims and executes jobs until its context is cancelled.
type Runner struct {
	queue      Queue
	dispatcher Dispatcher
	health     HealthChecker
	tel        *telemetry.Provider
	log        logger.Logger

	pollInterval time.Duration
	resumeJobs   bool

	// Loop state. Only the Run goroutine touches these.
	failures      int
	jobsProcessed int
	jobsFailed    int
	startedAt     time.Time
}

// NewRunner builds a Runner. Health may be nil when no pool supervision
// is wanted (tests, one-shot runs).
func NewRunner(queue Queue, dispatcher Dispatcher, health HealthChecker, tel *telemetry.Provider, log logger.Logger, cfg Config) *Runner {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Runner{
		queue:        queue,
		dispatcher:   dispatcher,
		health:       health,
		tel:          tel,
		log:          log,
		pollInterval: interval,
		resumeJobs:   cfg.ResumeJobs,
	}
}

// Run polls the queue until ctx is cancelled. It returns nil on a clean
// shutdown; the only error it returns itself is a failed startup sweep.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.recoverStartup(ctx); err != nil {
		return err
	}

	r.startedAt = time.Now()
	statsTicker := time.NewTicker(statsInterval)
	defer statsTicker.Stop()

	r.log.Info("worker started",
		logger.Duration("poll_interval", r.pollInterval),
		logger.Bool("resume_jobs", r.resumeJobs),
	)

	for {
		select {
		case <-ctx.Done():
			r.logStats()
			r.log.Info("worker stopped")
			return nil
		case <-statsTicker.C:
			r.logStats()
		default:
		}

		delay := r.step(ctx)
		if delay <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
		case <-statsTicker.C:
			r.logStats()
		case <-time.After(delay):
		}
	}
}

// recoverStartup sweeps rows a dead worker left queued or in progress.
// Stale in_progress rows would otherwise sit claimed forever.
func (r *Runner) recoverStartup(ctx context.Context) error {
	if r.resumeJobs {
		r.log.Info("resuming existing jobs, skipping startup sweep")
		return nil
	}
	swept, err := r.queue.CancelIncomplete(ctx, restartCancelReason)
	if err != nil {
		return fmt.Errorf("startup job sweep failed: %w", err)
	}
	if swept > 0 {
		r.log.Info("cancelled incomplete jobs from previous run",
			logger.Int64("count", swept),
		)
	}
	return nil
}

// step performs one poll iteration and returns how long to sleep before
// the next one. Zero means poll again immediately.
func (r *Runner) step(ctx context.Context) time.Duration {
	if r.health != nil {
		if probed, err := r.health.ProbeIfDue(ctx); probed && err != nil {
			r.log.Warn("database probe failed", logger.Error(err))
		}
	}

	job, err := r.queue.Claim(ctx)
	if err != nil {
		if errors.Is(err, database.ErrNoJob) {
			return r.emptyPollDelay()
		}
		return r.claimFailureDelay(ctx, err)
	}
	r.failures = 0

	r.runJob(ctx, job)
	r.updateQueueDepth(ctx)
	return 0
}

// runJob dispatches one claimed job and moves its row to a terminal
// state. Failures to record the outcome count against the failure
// streak; the job itself stays in_progress and is swept on restart.
func (r *Runner) runJob(ctx context.Context, job *domain.Job) {
	r.log.Info("processing job",
		logger.Int64("job_id", job.ID),
		logger.String("job_type", job.JobType),
	)
	start := time.Now()

	err := r.dispatcher.Dispatch(ctx, job)
	elapsed := time.Since(start)

	if err != nil {
		r.jobsFailed++
		r.tel.RecordJob(job.JobType, domain.JobStatusError, elapsed)
		r.log.Error("job failed",
			logger.Int64("job_id", job.ID),
			logger.String("job_type", job.JobType),
			logger.Duration("duration", elapsed),
			logger.Error(err),
		)
		if markErr := r.queue.MarkError(ctx, job.ID, err.Error()); markErr != nil {
			r.failures++
			r.log.Error("failed to record job error",
				logger.Int64("job_id", job.ID),
				logger.Error(markErr),
			)
		}
		return
	}

	r.jobsProcessed++
	r.tel.RecordJob(job.JobType, domain.JobStatusDone, elapsed)
	r.log.Info("job done",
		logger.Int64("job_id", job.ID),
		logger.String("job_type", job.JobType),
		logger.Duration("duration", elapsed),
	)
	if markErr := r.queue.MarkDone(ctx, job.ID); markErr != nil {
		r.failures++
		r.log.Error("failed to finish job",
			logger.Int64("job_id", job.ID),
			logger.Error(markErr),
		)
	}
}

// emptyPollDelay widens the poll interval with the failure streak so an
// idle queue behind a flapping database is not hammered.
func (r *Runner) emptyPollDelay() time.Duration {
	delay := r.pollInterval * time.Duration(1+r.failures)
	if delay > maxEmptyBackoff {
		delay = maxEmptyBackoff
	}
	return delay
}

// claimFailureDelay classifies a claim error and returns the backoff.
// Connection-class errors widen exponentially and force a pool refresh
// once the streak reaches refreshStreak; anything else keeps the base
// interval.
func (r *Runner) claimFailureDelay(ctx context.Context, err error) time.Duration {
	r.failures++

	if !retry.IsTransient(err) {
		r.log.Error("failed to claim job",
			logger.Int("failure_streak", r.failures),
			logger.Error(err),
		)
		return r.pollInterval
	}

	delay := r.pollInterval * time.Duration(1<<r.failures)
	if delay > maxErrorBackoff || delay <= 0 {
		delay = maxErrorBackoff
	}
	r.log.Warn("database connection trouble, backing off",
		logger.Int("failure_streak", r.failures),
		logger.Duration("backoff", delay),
		logger.Error(err),
	)

	if r.failures >= refreshStreak && r.health != nil {
		if refreshErr := r.health.Refresh(ctx); refreshErr != nil {
			r.log.Error("pool refresh failed", logger.Error(refreshErr))
		} else {
			r.log.Info("database pool refreshed")
			r.failures = 0
		}
	}
	return delay
}

func (r *Runner) updateQueueDepth(ctx context.Context) {
	counts, err := r.queue.CountByStatus(ctx)
	if err != nil {
		r.log.Debug("failed to count queue depth", logger.Error(err))
		return
	}
	r.tel.SetQueueDepth(counts[domain.JobStatusQueued])
}

func (r *Runner) logStats() {
	r.log.Info("worker stats",
		logger.Duration("uptime", time.Since(r.startedAt).Round(time.Second)),
		logger.Int("jobs_processed", r.jobsProcessed),
		logger.Int("jobs_failed", r.jobsFailed),
		logger.Int("failure_streak", r.failures),
	)
}
