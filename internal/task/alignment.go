package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/waghostel/LearningSong-sub001/internal/docstore"
	"github.com/waghostel/LearningSong-sub001/internal/domain"
)

func alignmentRef(taskID, audioID string) docstore.Ref {
	return docstore.Ref{Collection: CollectionAlignments, ID: domain.AlignmentKey(taskID, audioID)}
}

// GetAlignment returns a previously fetched alignment.
func (r *Repository) GetAlignment(ctx context.Context, taskID, audioID string) (*domain.TimestampedLyrics, bool, error) {
	doc, err := r.store.Get(ctx, alignmentRef(taskID, audioID))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get alignment: %w", err)
	}
	var tl domain.TimestampedLyrics
	if err := docstore.Decode(doc, &tl); err != nil {
		return nil, false, err
	}
	return &tl, true, nil
}

// SaveAlignment stores an alignment; it expires with its task.
func (r *Repository) SaveAlignment(ctx context.Context, tl *domain.TimestampedLyrics) error {
	doc, err := docstore.Encode(tl)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, alignmentRef(tl.TaskID, tl.AudioID), doc); err != nil {
		return fmt.Errorf("save alignment: %w", err)
	}
	return nil
}
