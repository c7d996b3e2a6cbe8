// Package worker runs the background loops: the task status poller and the
// expired document cleanup.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/waghostel/LearningSong-sub001/infrastructure/logger"
	"github.com/waghostel/LearningSong-sub001/infrastructure/retry"
	"github.com/waghostel/LearningSong-sub001/internal/domain"
)

const (
	DefaultPollInterval = 10 * time.Second
	DefaultBatchSize    = 20
)

// PendingSource lists tasks that have not reached a terminal status.
type PendingSource interface {
	ListPending(ctx context.Context, limit int) ([]*domain.Task, error)
}

// Syncer pulls upstream status into a task.
type Syncer interface {
	Sync(ctx context.Context, t *domain.Task) (*domain.Task, bool, error)
}

// PollRecorder receives poller metrics.
type PollRecorder interface {
	ObserveSync(outcome string)
	ObservePending(n int)
}

// PollerConfig holds poller configuration.
type PollerConfig struct {
	Interval  time.Duration `yaml:"interval"`
	BatchSize int           `yaml:"batch_size"`
	Disabled  bool          `env:"POLLER_DISABLED" yaml:"disabled"`
	// Retry governs each task's sync attempts.
	Retry retry.Config `yaml:"-"`
}

// SetDefaults fills zero values.
func (c *PollerConfig) SetDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultPollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry = retry.Config{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
		}
	}
}

// Poller periodically synchronizes pending tasks with the generation service.
type Poller struct {
	source   PendingSource
	syncer   Syncer
	recorder PollRecorder
	log      logger.Logger
	cfg      PollerConfig

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

// NewPoller creates a poller. recorder may be nil.
func NewPoller(source PendingSource, syncer Syncer, recorder PollRecorder, log logger.Logger, cfg PollerConfig) *Poller {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	return &Poller{
		source:   source,
		syncer:   syncer,
		recorder: recorder,
		log:      log,
		cfg:      cfg,
	}
}

// Start launches the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("poller is already running")
	}
	p.running = true
	p.stopChan = make(chan struct{})
	p.done = make(chan struct{})

	p.log.Info("Poller starting",
		logger.Int("batch_size", p.cfg.BatchSize),
		logger.Duration("interval", p.cfg.Interval),
	)
	go p.run(ctx, p.stopChan, p.done)
	return nil
}

// Stop ends the loop and waits for the current pass to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopChan)
	done := p.done
	p.mu.Unlock()

	<-done
	p.log.Info("Poller stopped")
}

func (p *Poller) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	if _, err := p.PollOnce(ctx); err != nil {
		p.log.Error("Failed to poll pending tasks on startup", logger.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if _, err := p.PollOnce(ctx); err != nil {
				p.log.Error("Failed to poll pending tasks", logger.Error(err))
			}
		}
	}
}

// PollOnce synchronizes one batch of pending tasks, one at a time, and
// returns how many changed. A task that fails to sync does not stop the batch.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	pending, err := p.source.ListPending(ctx, p.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending tasks: %w", err)
	}
	p.observePending(len(pending))
	if len(pending) == 0 {
		return 0, nil
	}
	p.log.Debug("Polling pending tasks", logger.Int("count", len(pending)))

	changed := 0
	for _, t := range pending {
		if ctx.Err() != nil {
			return changed, ctx.Err()
		}
		if p.syncTask(ctx, t) {
			changed++
		}
	}
	return changed, nil
}

func (p *Poller) syncTask(ctx context.Context, t *domain.Task) bool {
	var changed bool
	err := retry.Retry(ctx, p.cfg.Retry, func() error {
		_, c, syncErr := p.syncer.Sync(ctx, t)
		changed = c
		return syncErr
	})
	switch {
	case err != nil:
		p.observeSync("error")
		p.log.Warn("Task sync failed",
			logger.String("task_id", t.TaskID),
			logger.Error(err),
		)
		return false
	case changed:
		p.observeSync("changed")
		return true
	default:
		p.observeSync("unchanged")
		return false
	}
}

func (p *Poller) observeSync(outcome string) {
	if p.recorder != nil {
		p.recorder.ObserveSync(outcome)
	}
}

func (p *Poller) observePending(n int) {
	if p.recorder != nil {
		p.recorder.ObservePending(n)
	}
}
