package worker

import (
	"context"
	"os"
	"time"

	"github.com/macsteckler/lightspeeed-scraper/internal/logger"
)

// DefaultShutdownGrace is how long a cancelled process gets to unwind
// before the watchdog forces an exit.
const DefaultShutdownGrace = 5 * time.Second

// Watchdog force-exits the process when cooperative shutdown stalls.
// A wedged database driver or a hung HTTP client would otherwise keep
// the worker alive forever after its context is cancelled.
type Watchdog struct {
	grace time.Duration
	log   logger.Logger
	exit  func(int)
}

// NewWatchdog builds a Watchdog with the given grace period. Values at
// or below zero fall back to DefaultShutdownGrace.
func NewWatchdog(grace time.Duration, log logger.Logger) *Watchdog {
	if grace <= 0 {
		grace = DefaultShutdownGrace
	}
	return &Watchdog{grace: grace, log: log, exit: os.Exit}
}

// Arm waits for ctx to be cancelled and then starts the grace timer.
// The process must finish unwinding before it fires; a clean shutdown
// exits main first and the timer dies with the process.
func (w *Watchdog) Arm(ctx context.Context) {
	go func() {
		<-ctx.Done()
		timer := time.NewTimer(w.grace)
		defer timer.Stop()
		<-timer.C
		w.log.Error("shutdown stalled, forcing exit",
			logger.Duration("grace", w.grace),
		)
		w.exit(1)
	}()
}
