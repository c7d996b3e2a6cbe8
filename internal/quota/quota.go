// Package quota enforces the per-identity daily generation limit. Counters
// reset lazily at the first check after UTC midnight.
//
// Check and Increment are separate reads and writes, so two concurrent
// requests from one identity can both pass Check before either increments.
// The over-grant is bounded by the number of requests in flight for that
// identity.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/waghostel/LearningSong-sub001/infrastructure/logger"
	"github.com/waghostel/LearningSong-sub001/internal/docstore"
	"github.com/waghostel/LearningSong-sub001/internal/domain"
)

// Collection holds one UserQuota per identity.
const Collection = "user_quotas"

// Status is what callers are told about their quota.
type Status struct {
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	Limit     int       `json:"daily_limit"`
	ResetTime time.Time `json:"reset_time"`
}

// Recorder counts rejected checks.
type Recorder interface {
	ObserveQuotaRejected()
}

// Coordinator reads and updates quota records.
type Coordinator struct {
	store    docstore.Store
	limit    int
	log      logger.Logger
	recorder Recorder
	now      func() time.Time
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithRecorder reports rejections to r.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// New creates a Coordinator. A non-positive limit uses domain.DefaultDailyLimit.
func New(store docstore.Store, limit int, log logger.Logger, opts ...Option) *Coordinator {
	if limit <= 0 {
		limit = domain.DefaultDailyLimit
	}
	if log == nil {
		log = logger.NewNop()
	}
	c := &Coordinator{store: store, limit: limit, log: log, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Limit is the configured daily limit.
func (c *Coordinator) Limit() int { return c.limit }

// Check returns a *domain.QuotaExceededError when identity has no
// generations left today.
func (c *Coordinator) Check(ctx context.Context, identity string) error {
	now := c.now().UTC()
	q, err := c.load(ctx, identity, now)
	if err != nil {
		return err
	}
	if q.SongsGeneratedToday >= c.limit {
		if c.recorder != nil {
			c.recorder.ObserveQuotaRejected()
		}
		c.log.Info("Daily quota exhausted",
			logger.String("user_id", identity),
			logger.Int("used", q.SongsGeneratedToday),
		)
		return domain.NewQuotaExceeded(c.limit, q.DailyLimitReset, now)
	}
	return nil
}

// Increment records one generation.
func (c *Coordinator) Increment(ctx context.Context, identity string) error {
	now := c.now().UTC()
	q, err := c.load(ctx, identity, now)
	if err != nil {
		return err
	}
	q.SongsGeneratedToday++
	q.TotalSongsGenerated++
	q.UpdatedAt = now
	return c.save(ctx, q)
}

// Get reports remaining generations and the next reset.
func (c *Coordinator) Get(ctx context.Context, identity string) (Status, error) {
	q, err := c.load(ctx, identity, c.now().UTC())
	if err != nil {
		return Status{}, err
	}
	return Status{
		Used:      q.SongsGeneratedToday,
		Remaining: max(0, c.limit-q.SongsGeneratedToday),
		Limit:     c.limit,
		ResetTime: q.DailyLimitReset,
	}, nil
}

// load reads the record, creating it on first use and persisting a due reset.
func (c *Coordinator) load(ctx context.Context, identity string, now time.Time) (*domain.UserQuota, error) {
	if identity == "" {
		return nil, &domain.ValidationError{Field: "user_id", Message: "identity is required"}
	}
	ref := docstore.Ref{Collection: Collection, ID: identity}

	doc, err := c.store.Get(ctx, ref)
	if errors.Is(err, docstore.ErrNotFound) {
		q := &domain.UserQuota{
			UserID:          identity,
			DailyLimitReset: domain.NextUTCMidnight(now),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		return q, c.save(ctx, q)
	}
	if err != nil {
		return nil, fmt.Errorf("read quota: %w", err)
	}

	var q domain.UserQuota
	if err := docstore.Decode(doc, &q); err != nil {
		return nil, err
	}
	if q.ResetIfDue(now) {
		q.UpdatedAt = now
		if err := c.save(ctx, &q); err != nil {
			return nil, err
		}
	}
	return &q, nil
}

func (c *Coordinator) save(ctx context.Context, q *domain.UserQuota) error {
	doc, err := docstore.Encode(q)
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, docstore.Ref{Collection: Collection, ID: q.UserID}, doc); err != nil {
		return fmt.Errorf("write quota: %w", err)
	}
	return nil
}
