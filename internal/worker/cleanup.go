package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/waghostel/LearningSong-sub001/infrastructure/logger"
)

// DefaultCleanupSchedule sweeps once an hour.
const DefaultCleanupSchedule = "@every 1h"

// Sweeper deletes expired documents and returns how many tasks were removed.
type Sweeper interface {
	CleanupExpired(ctx context.Context) (int, error)
}

// CleanupRecorder receives cleanup metrics.
type CleanupRecorder interface {
	ObserveExpired(n int)
}

var cleanupParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Cleanup runs the sweeper on a cron schedule. Overlapping runs are skipped.
type Cleanup struct {
	sweeper  Sweeper
	recorder CleanupRecorder
	log      logger.Logger
	schedule string

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewCleanup creates a cleanup worker. recorder may be nil; an empty schedule
// takes DefaultCleanupSchedule.
func NewCleanup(sweeper Sweeper, recorder CleanupRecorder, log logger.Logger, schedule string) (*Cleanup, error) {
	if schedule == "" {
		schedule = DefaultCleanupSchedule
	}
	if _, err := cleanupParser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("parse cleanup schedule %q: %w", schedule, err)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Cleanup{sweeper: sweeper, recorder: recorder, log: log, schedule: schedule}, nil
}

// Start registers the sweep and starts the scheduler.
func (c *Cleanup) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return errors.New("cleanup is already running")
	}

	sched := cron.New(
		cron.WithParser(cleanupParser),
		cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := sched.AddFunc(c.schedule, func() { c.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule cleanup: %w", err)
	}
	sched.Start()
	c.cron = sched
	c.running = true

	c.log.Info("Cleanup scheduled", logger.String("schedule", c.schedule))
	return nil
}

// Stop halts the scheduler and waits for a running sweep.
func (c *Cleanup) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	sched := c.cron
	c.mu.Unlock()

	<-sched.Stop().Done()
}

// RunOnce performs a single sweep.
func (c *Cleanup) RunOnce(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}
	n, err := c.sweeper.CleanupExpired(ctx)
	if err != nil {
		c.log.Error("Expired task cleanup failed", logger.Int("deleted", n), logger.Error(err))
	}
	if n > 0 {
		c.log.Info("Expired tasks removed", logger.Int("count", n))
	}
	if c.recorder != nil {
		c.recorder.ObserveExpired(n)
	}
	return n
}
