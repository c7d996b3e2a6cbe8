package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/waghostel/LearningSong-sub001/infrastructure/logger"
	"github.com/waghostel/LearningSong-sub001/internal/docstore"
	"github.com/waghostel/LearningSong-sub001/internal/domain"
)

// TokenSigner issues share tokens and rejects forged ones before lookup.
type TokenSigner interface {
	NewToken() (string, error)
	ValidToken(token string) bool
}

// CreateShareLink issues a link to a completed, unexpired task owned by
// userID. The link never outlives the task.
func (r *Repository) CreateShareLink(ctx context.Context, taskID, userID string) (*domain.ShareLink, error) {
	t, err := r.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, domain.ErrForbidden
	}
	now := r.now().UTC()
	if t.IsExpired(now) {
		return nil, domain.ErrExpired
	}
	if t.Status != domain.TaskStatusCompleted {
		return nil, domain.ErrNotReady
	}

	token, err := r.signer.NewToken()
	if err != nil {
		return nil, err
	}
	expires := now.Add(r.cfg.ShareTTL)
	if t.ExpiresAt.Before(expires) {
		expires = t.ExpiresAt
	}

	link := &domain.ShareLink{
		ShareToken: token,
		SongID:     t.TaskID,
		CreatedBy:  userID,
		CreatedAt:  now,
		ExpiresAt:  expires,
	}
	doc, err := docstore.Encode(link)
	if err != nil {
		return nil, err
	}
	if err := r.store.Set(ctx, docstore.Ref{Collection: CollectionShares, ID: token}, doc); err != nil {
		return nil, fmt.Errorf("save share link: %w", err)
	}

	r.log.Info("Share link created",
		logger.String("task_id", t.TaskID),
		logger.Time("expires_at", expires),
	)
	return link, nil
}

// GetSharedSong resolves a token. It returns domain.ErrNotFound for unknown
// or forged tokens, domain.ErrExpired when the link or task has expired and
// domain.ErrNotReady when the task has not completed.
func (r *Repository) GetSharedSong(ctx context.Context, token string) (*domain.SharedSong, error) {
	if token == "" || (r.signer != nil && !r.signer.ValidToken(token)) {
		return nil, domain.ErrNotFound
	}

	doc, err := r.store.Get(ctx, docstore.Ref{Collection: CollectionShares, ID: token})
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get share link: %w", err)
	}
	var link domain.ShareLink
	if err := docstore.Decode(doc, &link); err != nil {
		return nil, err
	}

	now := r.now().UTC()
	if !now.Before(link.ExpiresAt) {
		return nil, domain.ErrExpired
	}

	t, err := r.GetTask(ctx, link.SongID)
	if err != nil {
		return nil, err
	}
	if t.IsExpired(now) {
		return nil, domain.ErrExpired
	}
	if t.Status != domain.TaskStatusCompleted {
		return nil, domain.ErrNotReady
	}

	return &domain.SharedSong{
		SongID:                t.TaskID,
		Title:                 t.Title,
		Style:                 t.Style,
		Lyrics:                t.Lyrics,
		Variations:            t.Variations,
		PrimaryVariationIndex: domain.ResolvePrimaryIndex(t.Variations, t.PrimaryVariationIndex),
		CreatedAt:             t.CreatedAt,
		ExpiresAt:             link.ExpiresAt,
		IsOwner:               false,
	}, nil
}
