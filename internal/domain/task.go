package domain

import (
	"fmt"
	"time"
)

// TaskStatus is the internal lifecycle state of a generation task.
type TaskStatus string

const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

var validTaskStatuses = map[TaskStatus]bool{
	TaskStatusQueued:     true,
	TaskStatusProcessing: true,
	TaskStatusCompleted:  true,
	TaskStatusFailed:     true,
}

// IsValid reports whether s is one of the four task states.
func (s TaskStatus) IsValid() bool {
	return validTaskStatuses[s]
}

// IsTerminal reports whether no further upstream sync is needed.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// SongVariation is one rendition returned for a task.
type SongVariation struct {
	VariationIndex int     `json:"variation_index"`
	AudioID        string  `json:"audio_id"`
	AudioURL       string  `json:"audio_url"`
	StreamURL      string  `json:"stream_url,omitempty"`
	ImageURL       string  `json:"image_url,omitempty"`
	Title          string  `json:"title,omitempty"`
	Tags           string  `json:"tags,omitempty"`
	Duration       float64 `json:"duration,omitempty"`
}

// Task is a submitted song generation job and the store record tracking it.
type Task struct {
	TaskID string `json:"task_id"`
	// SourceTaskID is the upstream job a cache-served copy was taken from.
	SourceTaskID          string          `json:"source_task_id,omitempty"`
	UserID                string          `json:"user_id"`
	ContentHash           string          `json:"content_hash"`
	Style                 MusicStyle      `json:"style"`
	Title                 string          `json:"title,omitempty"`
	Lyrics                string          `json:"lyrics"`
	Status                TaskStatus      `json:"status"`
	Progress              int             `json:"progress"`
	Variations            []SongVariation `json:"variations"`
	PrimaryVariationIndex int             `json:"primary_variation_index"`
	Error                 string          `json:"error,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
	ExpiresAt             time.Time       `json:"expires_at"`
}

// UpstreamTaskID is the job id known to the generation service.
func (t *Task) UpstreamTaskID() string {
	if t.SourceTaskID != "" {
		return t.SourceTaskID
	}
	return t.TaskID
}

// IsExpired reports whether the task is past its TTL at now.
func (t *Task) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Variation returns the variation with audioID.
func (t *Task) Variation(audioID string) (SongVariation, bool) {
	for _, v := range t.Variations {
		if v.AudioID == audioID {
			return v, true
		}
	}
	return SongVariation{}, false
}

// ResolvePrimaryIndex returns requested when it names an existing variation,
// otherwise the index of the first variation, or 0 when there are none.
func ResolvePrimaryIndex(variations []SongVariation, requested int) int {
	for _, v := range variations {
		if v.VariationIndex == requested {
			return requested
		}
	}
	if len(variations) > 0 {
		return variations[0].VariationIndex
	}
	return 0
}

// ValidateVariations checks variation indices are unique and audio ids set.
func ValidateVariations(variations []SongVariation) error {
	seen := make(map[int]bool, len(variations))
	for _, v := range variations {
		if seen[v.VariationIndex] {
			return &ValidationError{Field: "variations", Message: fmt.Sprintf("duplicate variation index %d", v.VariationIndex)}
		}
		seen[v.VariationIndex] = true
		if v.AudioID == "" {
			return &ValidationError{Field: "variations", Message: fmt.Sprintf("variation %d has no audio id", v.VariationIndex)}
		}
	}
	return nil
}

// ClampProgress bounds p to 0..100.
func ClampProgress(p int) int {
	return max(0, min(100, p))
}
