// Package scheduler runs the periodic maintenance jobs of the engine,
// currently the reward-points expiry sweep.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Expirer marks overdue points grants as expired.
type Expirer interface {
	ExpireRewardPoints(ctx context.Context, asOf time.Time) (int, error)
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// New creates a scheduler with the expiry sweep registered on the given cron
// schedule. An empty schedule disables the sweep.
func New(schedule string, expirer Expirer, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := cron.New()
	if schedule != "" {
		_, err := c.AddFunc(schedule, func() {
			runSweep(expirer, logger)
		})
		if err != nil {
			return nil, err
		}
	}
	return &Scheduler{cron: c, logger: logger}, nil
}

// Start launches the cron runner in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func runSweep(expirer Expirer, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := expirer.ExpireRewardPoints(ctx, time.Now().UTC())
	if err != nil {
		logger.Error("points expiry sweep failed", "error", err)
		return
	}
	if n > 0 {
		logger.Info("points expiry sweep", "expired", n)
	}
}
