package domain

import (
	"sort"
	"time"
)

// AlignedWord is one lyric token with its position in the audio.
type AlignedWord struct {
	Word    string  `json:"word"`
	StartS  float64 `json:"start_s"`
	EndS    float64 `json:"end_s"`
	Success bool    `json:"success"`
	PAlign  float64 `json:"p_align"`
}

// TimestampedLyrics is the word-level alignment of one variation.
type TimestampedLyrics struct {
	TaskID       string        `json:"task_id"`
	AudioID      string        `json:"audio_id"`
	AlignedWords []AlignedWord `json:"aligned_words"`
	WaveformData []float64     `json:"waveform_data"`
	HootCER      float64       `json:"hoot_cer"`
	IsStreamed   bool          `json:"is_streamed"`
	FetchedAt    time.Time     `json:"fetched_at"`
	ExpiresAt    time.Time     `json:"expires_at"`
}

// SortWords orders words by start time, keeping the upstream order for ties.
func (t *TimestampedLyrics) SortWords() {
	sort.SliceStable(t.AlignedWords, func(i, j int) bool {
		return t.AlignedWords[i].StartS < t.AlignedWords[j].StartS
	})
}

// AlignmentKey is the store id of a variation's alignment.
func AlignmentKey(taskID, audioID string) string {
	return taskID + "_" + audioID
}
