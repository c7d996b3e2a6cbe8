// Package task manages generation task records, their TTL, word alignment
// attached to their variations and the share links that expose them.
package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/waghostel/LearningSong-sub001/infrastructure/logger"
	"github.com/waghostel/LearningSong-sub001/internal/docstore"
	"github.com/waghostel/LearningSong-sub001/internal/domain"
)

const (
	CollectionTasks      = "songs"
	CollectionShares     = "shared_songs"
	CollectionAlignments = "timestamped_lyrics"

	DefaultTTL              = 48 * time.Hour
	DefaultShareTTL         = 48 * time.Hour
	DefaultCleanupBatchSize = 100
)

// Config holds lifecycle settings.
type Config struct {
	TTL              time.Duration `yaml:"ttl"`
	ShareTTL         time.Duration `yaml:"share_ttl"`
	CleanupBatchSize int           `yaml:"cleanup_batch_size"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.ShareTTL <= 0 {
		c.ShareTTL = DefaultShareTTL
	}
	if c.CleanupBatchSize <= 0 {
		c.CleanupBatchSize = DefaultCleanupBatchSize
	}
}

// NewTask describes a task to create.
type NewTask struct {
	TaskID       string
	SourceTaskID string
	UserID       string
	ContentHash  string
	Style        domain.MusicStyle
	Title        string
	Lyrics       string
}

// StatusUpdate is a partial update. Nil fields are left unchanged.
type StatusUpdate struct {
	Status                *domain.TaskStatus
	Progress              *int
	Variations            []domain.SongVariation
	PrimaryVariationIndex *int
	Error                 *string
}

// Repository stores tasks in a document store.
type Repository struct {
	store  docstore.Store
	cfg    Config
	signer TokenSigner
	log    logger.Logger
	now    func() time.Time
}

// Option customizes a Repository.
type Option func(*Repository)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// NewRepository creates a repository. signer issues share tokens.
func NewRepository(store docstore.Store, signer TokenSigner, cfg Config, log logger.Logger, opts ...Option) *Repository {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	r := &Repository{store: store, cfg: cfg, signer: signer, log: log, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TTL is the configured task lifetime.
func (r *Repository) TTL() time.Duration { return r.cfg.TTL }

func taskRef(id string) docstore.Ref {
	return docstore.Ref{Collection: CollectionTasks, ID: id}
}

// CreateTask stores a queued task expiring TTL after creation.
func (r *Repository) CreateTask(ctx context.Context, in NewTask) (*domain.Task, error) {
	if in.TaskID == "" {
		return nil, &domain.ValidationError{Field: "task_id", Message: "task id is required"}
	}
	if in.UserID == "" {
		return nil, &domain.ValidationError{Field: "user_id", Message: "user id is required"}
	}

	now := r.now().UTC()
	t := &domain.Task{
		TaskID:       in.TaskID,
		SourceTaskID: in.SourceTaskID,
		UserID:       in.UserID,
		ContentHash:  in.ContentHash,
		Style:        in.Style,
		Title:        in.Title,
		Lyrics:       in.Lyrics,
		Status:       domain.TaskStatusQueued,
		Progress:     0,
		Variations:   []domain.SongVariation{},
		CreatedAt:    now,
		UpdatedAt:    now,
		ExpiresAt:    now.Add(r.cfg.TTL),
	}
	if err := r.put(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// SaveTask writes t as-is. Used when a task is created already settled,
// such as a copy served from the song cache.
func (r *Repository) SaveTask(ctx context.Context, t *domain.Task) error {
	return r.put(ctx, t)
}

func (r *Repository) put(ctx context.Context, t *domain.Task) error {
	doc, err := docstore.Encode(t)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, taskRef(t.TaskID), doc); err != nil {
		return fmt.Errorf("save task %s: %w", t.TaskID, err)
	}
	return nil
}

// GetTask returns domain.ErrNotFound for unknown ids.
func (r *Repository) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	if id == "" {
		return nil, domain.ErrNotFound
	}
	doc, err := r.store.Get(ctx, taskRef(id))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	var t domain.Task
	if err := docstore.Decode(doc, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTaskStatus applies u and refreshes updated_at. It reports whether the
// write succeeded; failures are logged rather than returned.
func (r *Repository) UpdateTaskStatus(ctx context.Context, id string, u StatusUpdate) bool {
	fields := docstore.Document{"updated_at": r.now().UTC()}
	if u.Status != nil {
		fields["status"] = string(*u.Status)
	}
	if u.Progress != nil {
		fields["progress"] = domain.ClampProgress(*u.Progress)
	}
	if u.Variations != nil {
		fields["variations"] = u.Variations
	}
	if u.PrimaryVariationIndex != nil {
		fields["primary_variation_index"] = *u.PrimaryVariationIndex
	}
	if u.Error != nil {
		fields["error"] = *u.Error
	}

	if err := r.store.Update(ctx, taskRef(id), fields); err != nil {
		r.log.Warn("Failed to update task status",
			logger.String("task_id", id),
			logger.Error(err),
		)
		return false
	}
	return true
}

// VerifyOwnership is false for missing tasks and tasks owned by someone else.
func (r *Repository) VerifyOwnership(ctx context.Context, id, userID string) bool {
	t, err := r.GetTask(ctx, id)
	if err != nil {
		return false
	}
	return t.UserID == userID
}

// GetOwnedTask returns the task only when userID owns it.
func (r *Repository) GetOwnedTask(ctx context.Context, id, userID string) (*domain.Task, error) {
	t, err := r.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

// ExtendTTL pushes expiry to hours from now, or TTL from now when hours is
// not positive. Expiry never moves earlier.
func (r *Repository) ExtendTTL(ctx context.Context, id string, hours int) (*domain.Task, error) {
	t, err := r.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	extension := r.cfg.TTL
	if hours > 0 {
		extension = time.Duration(hours) * time.Hour
	}
	now := r.now().UTC()
	expires := now.Add(extension)
	if expires.Before(t.ExpiresAt) {
		expires = t.ExpiresAt
	}

	if err := r.store.Update(ctx, taskRef(id), docstore.Document{
		"expires_at": expires,
		"updated_at": now,
	}); err != nil {
		return nil, fmt.Errorf("extend task %s: %w", id, err)
	}
	t.ExpiresAt = expires
	t.UpdatedAt = now
	return t, nil
}

// SetPrimaryVariation marks index as the preferred variation. The index must
// name an existing variation.
func (r *Repository) SetPrimaryVariation(ctx context.Context, id string, index int) (*domain.Task, error) {
	t, err := r.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, ok := findVariation(t.Variations, index); !ok {
		return nil, &domain.ValidationError{
			Field:   "variation_index",
			Message: fmt.Sprintf("task %s has no variation %d", id, index),
		}
	}
	if !r.UpdateTaskStatus(ctx, id, StatusUpdate{PrimaryVariationIndex: &index}) {
		return nil, fmt.Errorf("set primary variation for task %s", id)
	}
	t.PrimaryVariationIndex = index
	return t, nil
}

func findVariation(vs []domain.SongVariation, index int) (domain.SongVariation, bool) {
	for _, v := range vs {
		if v.VariationIndex == index {
			return v, true
		}
	}
	return domain.SongVariation{}, false
}

// ListPending returns unexpired queued and processing tasks, oldest first.
func (r *Repository) ListPending(ctx context.Context, limit int) ([]*domain.Task, error) {
	now := r.now().UTC()
	var out []*domain.Task
	for _, status := range []domain.TaskStatus{domain.TaskStatusQueued, domain.TaskStatusProcessing} {
		tasks, err := r.query(ctx, docstore.Query{
			Collection: CollectionTasks,
			Filters: []docstore.Filter{
				{Field: "status", Op: docstore.OpEq, Value: string(status)},
				{Field: "expires_at", Op: docstore.OpGt, Value: now},
			},
			OrderBy: &docstore.Order{Field: "updated_at", Kind: docstore.KindTime},
			Limit:   limit,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, tasks...)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListByOwner returns the user's unexpired tasks, newest first.
func (r *Repository) ListByOwner(ctx context.Context, userID string, limit int) ([]*domain.Task, error) {
	return r.query(ctx, docstore.Query{
		Collection: CollectionTasks,
		Filters: []docstore.Filter{
			{Field: "user_id", Op: docstore.OpEq, Value: userID},
			{Field: "expires_at", Op: docstore.OpGt, Value: r.now().UTC()},
		},
		OrderBy: &docstore.Order{Field: "created_at", Descending: true, Kind: docstore.KindTime},
		Limit:   limit,
	})
}

func (r *Repository) query(ctx context.Context, q docstore.Query) ([]*domain.Task, error) {
	snaps, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	tasks := make([]*domain.Task, 0, len(snaps))
	for _, s := range snaps {
		var t domain.Task
		if err := docstore.Decode(s.Data, &t); err != nil {
			return nil, err
		}
		tasks = append(tasks, &t)
	}
	return tasks, nil
}

// CleanupExpired deletes expired tasks in batches and returns how many were
// removed. Expired share links and alignments are swept in the same pass.
func (r *Repository) CleanupExpired(ctx context.Context) (int, error) {
	now := r.now().UTC()
	deleted, err := r.sweep(ctx, CollectionTasks, now)
	if err != nil {
		return deleted, err
	}
	for _, collection := range []string{CollectionShares, CollectionAlignments} {
		n, sweepErr := r.sweep(ctx, collection, now)
		if sweepErr != nil {
			return deleted, sweepErr
		}
		if n > 0 {
			r.log.Info("Removed expired documents",
				logger.String("collection", collection),
				logger.Int("count", n),
			)
		}
	}
	return deleted, nil
}

func (r *Repository) sweep(ctx context.Context, collection string, now time.Time) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		snaps, err := r.store.Query(ctx, docstore.Query{
			Collection: collection,
			Filters:    []docstore.Filter{{Field: "expires_at", Op: docstore.OpLte, Value: now}},
			Limit:      r.cfg.CleanupBatchSize,
		})
		if err != nil {
			return total, fmt.Errorf("query expired %s: %w", collection, err)
		}
		if len(snaps) == 0 {
			return total, nil
		}
		refs := make([]docstore.Ref, len(snaps))
		for i, s := range snaps {
			refs[i] = s.Ref
		}
		if err := r.store.BatchDelete(ctx, refs); err != nil {
			return total, fmt.Errorf("delete expired %s: %w", collection, err)
		}
		total += len(refs)
		if len(snaps) < r.cfg.CleanupBatchSize {
			return total, nil
		}
	}
}
