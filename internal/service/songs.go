package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/waghostel/LearningSong-sub001/infrastructure/logger"
	"github.com/waghostel/LearningSong-sub001/infrastructure/sse"
	"github.com/waghostel/LearningSong-sub001/internal/domain"
	"github.com/waghostel/LearningSong-sub001/internal/musicgen"
	"github.com/waghostel/LearningSong-sub001/internal/task"
	"github.com/waghostel/LearningSong-sub001/internal/telemetry"
)

const (
	// EventTaskStatus is published whenever a task's status changes.
	EventTaskStatus = "task:status"

	DefaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// CreateSongRequest submits lyrics for generation.
type CreateSongRequest struct {
	Lyrics string
	Style  string
	Title  string
	// ContentHash links the song to the content the lyrics came from. When
	// empty the lyrics themselves are hashed.
	ContentHash string
}

// CreateSongResult is the handle returned to callers.
type CreateSongResult struct {
	TaskID        string
	Status        domain.TaskStatus
	EstimatedTime int
	Cached        bool
}

// TaskEvent is the payload of EventTaskStatus.
type TaskEvent struct {
	TaskID     string                 `json:"task_id"`
	Status     domain.TaskStatus      `json:"status"`
	Progress   int                    `json:"progress"`
	Variations []domain.SongVariation `json:"variations,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// SongService serves song generation, status tracking and sharing.
type SongService struct {
	client    MusicClient
	tasks     TaskStore
	cache     SongCache
	events    Publisher
	log       logger.Logger
	telemetry *telemetry.Provider
	now       func() time.Time
	newID     func() string
}

// SongOption customizes a SongService.
type SongOption func(*SongService)

// WithSongClock replaces time.Now.
func WithSongClock(now func() time.Time) SongOption {
	return func(s *SongService) { s.now = now }
}

// NewSongService wires the song flow. events and tel may be nil.
func NewSongService(
	client MusicClient,
	tasks TaskStore,
	cache SongCache,
	events Publisher,
	tel *telemetry.Provider,
	log logger.Logger,
	opts ...SongOption,
) *SongService {
	if log == nil {
		log = logger.NewNop()
	}
	s := &SongService{
		client:    client,
		tasks:     tasks,
		cache:     cache,
		events:    events,
		log:       log,
		telemetry: tel,
		now:       time.Now,
		newID:     func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create submits lyrics, or serves a previously completed song for the same
// content and style.
func (s *SongService) Create(ctx context.Context, userID string, req CreateSongRequest) (*CreateSongResult, error) {
	ctx, span := s.telemetry.StartSpan(ctx, "songs.create", attribute.String("style", req.Style))
	defer span.End()

	lyricsText := strings.TrimSpace(req.Lyrics)
	if lyricsText == "" {
		return nil, &domain.ValidationError{Field: "lyrics", Message: "lyrics must not be empty"}
	}
	style, err := domain.ParseMusicStyle(req.Style)
	if err != nil {
		return nil, err
	}
	hash := req.ContentHash
	if hash == "" {
		hash = domain.ContentHash(lyricsText)
	}

	if result, ok := s.fromCache(ctx, userID, hash, style, lyricsText, req.Title); ok {
		s.telemetry.ObserveGeneration("song", "cached")
		return result, nil
	}

	job, err := s.client.CreateSong(ctx, lyricsText, style, req.Title)
	if err != nil {
		s.telemetry.ObserveGeneration("song", "failed")
		return nil, err
	}

	created, err := s.tasks.CreateTask(ctx, task.NewTask{
		TaskID:      job.TaskID,
		UserID:      userID,
		ContentHash: hash,
		Style:       style,
		Title:       req.Title,
		Lyrics:      lyricsText,
	})
	if err != nil {
		return nil, err
	}

	s.telemetry.ObserveGeneration("song", "submitted")
	return &CreateSongResult{
		TaskID:        created.TaskID,
		Status:        created.Status,
		EstimatedTime: job.EstimatedTime,
	}, nil
}

// fromCache returns the caller's own live task for a cached song, or a new
// completed task copied from the cache entry.
func (s *SongService) fromCache(
	ctx context.Context,
	userID, hash string,
	style domain.MusicStyle,
	lyricsText, title string,
) (*CreateSongResult, bool) {
	entry, found, err := s.cache.GetSong(ctx, hash, style)
	if err != nil {
		s.log.Warn("Song cache lookup failed", logger.Error(err))
		return nil, false
	}
	if !found || len(entry.Variations) == 0 {
		return nil, false
	}

	now := s.now().UTC()
	if existing, err := s.tasks.GetTask(ctx, entry.TaskID); err == nil &&
		existing.UserID == userID && !existing.IsExpired(now) {
		return &CreateSongResult{TaskID: existing.TaskID, Status: existing.Status, Cached: true}, true
	}

	copied := &domain.Task{
		TaskID:                s.newID(),
		SourceTaskID:          entry.TaskID,
		UserID:                userID,
		ContentHash:           hash,
		Style:                 style,
		Title:                 title,
		Lyrics:                lyricsText,
		Status:                domain.TaskStatusCompleted,
		Progress:              100,
		Variations:            entry.Variations,
		PrimaryVariationIndex: domain.ResolvePrimaryIndex(entry.Variations, 0),
		CreatedAt:             now,
		UpdatedAt:             now,
		ExpiresAt:             now.Add(s.tasks.TTL()),
	}
	if err := s.tasks.SaveTask(ctx, copied); err != nil {
		s.log.Warn("Failed to save cached song task", logger.Error(err))
		return nil, false
	}
	return &CreateSongResult{TaskID: copied.TaskID, Status: copied.Status, Cached: true}, true
}

// Status returns the caller's task, synchronizing it with the generation
// service first when it has not reached a terminal state.
func (s *SongService) Status(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	t, err := s.ownedLive(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if t.Status.IsTerminal() {
		return t, nil
	}
	synced, _, err := s.Sync(ctx, t)
	if err != nil {
		s.log.Warn("Status sync failed, returning stored state",
			logger.String("task_id", taskID),
			logger.Error(err),
		)
		return t, nil
	}
	return synced, nil
}

// Sync pulls upstream status into t. It reports whether anything changed.
func (s *SongService) Sync(ctx context.Context, t *domain.Task) (*domain.Task, bool, error) {
	remote, err := s.client.GetTaskStatus(ctx, t.UpstreamTaskID())
	if err != nil {
		return t, false, err
	}

	variations := remote.Variations
	if variations == nil {
		variations = []domain.SongVariation{}
	}
	if err := domain.ValidateVariations(variations); err != nil {
		s.log.Warn("Discarding invalid variations", logger.String("task_id", t.TaskID), logger.Error(err))
		variations = []domain.SongVariation{}
	}
	progress := domain.ClampProgress(remote.Progress)
	if remote.Status == domain.TaskStatusCompleted {
		progress = 100
	}

	changed := remote.Status != t.Status || progress != t.Progress ||
		!slices.Equal(variations, t.Variations) || remote.Error != t.Error
	if !changed {
		return t, false, nil
	}

	primary := domain.ResolvePrimaryIndex(variations, t.PrimaryVariationIndex)
	update := task.StatusUpdate{
		Status:                &remote.Status,
		Progress:              &progress,
		Variations:            variations,
		PrimaryVariationIndex: &primary,
	}
	if remote.Status == domain.TaskStatusFailed {
		update.Error = &remote.Error
	}
	if !s.tasks.UpdateTaskStatus(ctx, t.TaskID, update) {
		return t, false, errors.New("task status update was not persisted")
	}

	updated := *t
	updated.Status = remote.Status
	updated.Progress = progress
	updated.Variations = variations
	updated.PrimaryVariationIndex = primary
	if remote.Status == domain.TaskStatusFailed {
		updated.Error = remote.Error
	}
	updated.UpdatedAt = s.now().UTC()

	if updated.Status == domain.TaskStatusCompleted && len(updated.Variations) > 0 {
		if err := s.cache.StoreSong(ctx, &updated); err != nil {
			s.log.Warn("Failed to cache completed song", logger.String("task_id", t.TaskID), logger.Error(err))
		}
	}
	s.publish(ctx, &updated)
	return &updated, true, nil
}

func (s *SongService) publish(ctx context.Context, t *domain.Task) {
	if s.events == nil {
		return
	}
	err := s.events.Publish(ctx, sse.Event{
		Type:     EventTaskStatus,
		Audience: t.UserID,
		Data: TaskEvent{
			TaskID:     t.TaskID,
			Status:     t.Status,
			Progress:   t.Progress,
			Variations: t.Variations,
			Error:      t.Error,
		},
	})
	if err != nil {
		s.log.Debug("Task event dropped", logger.String("task_id", t.TaskID), logger.Error(err))
	}
}

// Timestamps returns word alignment for one variation of the caller's task.
// ok is false while the generation service has no alignment.
func (s *SongService) Timestamps(ctx context.Context, userID, taskID, audioID string) (*domain.TimestampedLyrics, bool, error) {
	t, err := s.ownedLive(ctx, userID, taskID)
	if err != nil {
		return nil, false, err
	}
	if _, ok := t.Variation(audioID); !ok {
		return nil, false, domain.ErrNotFound
	}

	if cached, found, err := s.tasks.GetAlignment(ctx, t.TaskID, audioID); err != nil {
		s.log.Warn("Alignment lookup failed", logger.Error(err))
	} else if found {
		return cached, true, nil
	}

	alignment, ok, err := s.client.GetTimestampedLyrics(ctx, t.UpstreamTaskID(), audioID)
	if err != nil || !ok {
		return nil, false, err
	}
	alignment.TaskID = t.TaskID
	alignment.ExpiresAt = t.ExpiresAt
	if err := s.tasks.SaveAlignment(ctx, alignment); err != nil {
		s.log.Warn("Failed to cache alignment", logger.Error(err))
	}
	return alignment, true, nil
}

// SetPrimary selects the caller's preferred variation.
func (s *SongService) SetPrimary(ctx context.Context, userID, taskID string, index int) (*domain.Task, error) {
	if _, err := s.ownedLive(ctx, userID, taskID); err != nil {
		return nil, err
	}
	return s.tasks.SetPrimaryVariation(ctx, taskID, index)
}

// Extend pushes back the caller's task expiry.
func (s *SongService) Extend(ctx context.Context, userID, taskID string, hours int) (*domain.Task, error) {
	if hours < 0 {
		return nil, &domain.ValidationError{Field: "hours", Message: "hours must not be negative"}
	}
	if _, err := s.tasks.GetOwnedTask(ctx, taskID, userID); err != nil {
		return nil, err
	}
	return s.tasks.ExtendTTL(ctx, taskID, hours)
}

// Share issues a share link for the caller's completed task.
func (s *SongService) Share(ctx context.Context, userID, taskID string) (*domain.ShareLink, error) {
	return s.tasks.CreateShareLink(ctx, taskID, userID)
}

// Shared resolves a share token for anonymous readers.
func (s *SongService) Shared(ctx context.Context, token string) (*domain.SharedSong, error) {
	return s.tasks.GetSharedSong(ctx, token)
}

// History lists the caller's live tasks, newest first.
func (s *SongService) History(ctx context.Context, userID string, limit int) ([]*domain.Task, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.tasks.ListByOwner(ctx, userID, min(limit, maxHistoryLimit))
}

func (s *SongService) ownedLive(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	t, err := s.tasks.GetOwnedTask(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}
	if t.IsExpired(s.now().UTC()) {
		return nil, domain.ErrExpired
	}
	return t, nil
}

var (
	_ MusicClient = (*musicgen.Client)(nil)
	_ TaskStore   = (*task.Repository)(nil)
)
