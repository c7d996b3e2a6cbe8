package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waghostel/LearningSong-sub001/internal/domain"
)

func TestContentHash_NormalizesCaseAndWhitespace(t *testing.T) {
	t.Parallel()

	a := domain.ContentHash("  Photosynthesis Converts Light  ")
	b := domain.ContentHash("photosynthesis converts light")

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, domain.ContentHash("photosynthesis converts  light"))
}

func TestTaskStatus_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status   domain.TaskStatus
		valid    bool
		terminal bool
	}{
		{domain.TaskStatusQueued, true, false},
		{domain.TaskStatusProcessing, true, false},
		{domain.TaskStatusCompleted, true, true},
		{domain.TaskStatusFailed, true, true},
		{"unknown", false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.valid, tt.status.IsValid())
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
		})
	}
}

func TestResolvePrimaryIndex(t *testing.T) {
	t.Parallel()

	vars := []domain.SongVariation{
		{VariationIndex: 0, AudioID: "a"},
		{VariationIndex: 1, AudioID: "b"},
	}

	assert.Equal(t, 1, domain.ResolvePrimaryIndex(vars, 1))
	assert.Equal(t, 0, domain.ResolvePrimaryIndex(vars, 5))
	assert.Equal(t, 0, domain.ResolvePrimaryIndex(vars, -1))
	assert.Equal(t, 0, domain.ResolvePrimaryIndex(nil, 3))
	assert.Equal(t, 7, domain.ResolvePrimaryIndex([]domain.SongVariation{{VariationIndex: 7, AudioID: "x"}}, 2))
}

func TestValidateVariations(t *testing.T) {
	t.Parallel()

	require.NoError(t, domain.ValidateVariations([]domain.SongVariation{
		{VariationIndex: 0, AudioID: "a"}, {VariationIndex: 1, AudioID: "b"},
	}))

	err := domain.ValidateVariations([]domain.SongVariation{
		{VariationIndex: 0, AudioID: "a"}, {VariationIndex: 0, AudioID: "b"},
	})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "variations", verr.Field)

	require.Error(t, domain.ValidateVariations([]domain.SongVariation{{VariationIndex: 0}}))
}

func TestTimestampedLyrics_SortWords(t *testing.T) {
	t.Parallel()

	tl := domain.TimestampedLyrics{AlignedWords: []domain.AlignedWord{
		{Word: "c", StartS: 2.0},
		{Word: "a", StartS: 0.5},
		{Word: "b", StartS: 0.5},
	}}
	tl.SortWords()

	words := make([]string, 0, len(tl.AlignedWords))
	for _, w := range tl.AlignedWords {
		words = append(words, w.Word)
	}
	assert.Equal(t, []string{"a", "b", "c"}, words)
}

func TestParseMusicStyle(t *testing.T) {
	t.Parallel()

	style, err := domain.ParseMusicStyle(" Pop ")
	require.NoError(t, err)
	assert.Equal(t, domain.StylePop, style)
	assert.Contains(t, style.Tags(), "pop")

	_, err = domain.ParseMusicStyle("polka")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestNextUTCMidnight(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+9", 9*3600)
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, loc) // 2026-02-28T23:00Z

	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), domain.NextUTCMidnight(now))

	midnight := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), domain.NextUTCMidnight(midnight))
}

func TestUserQuota_ResetIfDue(t *testing.T) {
	t.Parallel()

	reset := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	q := domain.UserQuota{SongsGeneratedToday: 3, DailyLimitReset: reset, TotalSongsGenerated: 9}

	assert.False(t, q.ResetIfDue(reset.Add(-time.Second)))
	assert.Equal(t, 3, q.SongsGeneratedToday)

	assert.True(t, q.ResetIfDue(reset))
	assert.Equal(t, 0, q.SongsGeneratedToday)
	assert.Equal(t, 9, q.TotalSongsGenerated)
	assert.Equal(t, reset.Add(24*time.Hour), q.DailyLimitReset)
}

func TestNewQuotaExceeded_FloorsRetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 1, 23, 58, 0, 500_000_000, time.UTC)
	reset := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)

	err := domain.NewQuotaExceeded(3, reset, now)
	assert.Equal(t, 119, err.RetryAfter)
	assert.Equal(t, reset, err.ResetTime)

	var qerr *domain.QuotaExceededError
	assert.True(t, errors.As(error(err), &qerr))
}

func TestTask_UpstreamTaskIDAndExpiry(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	task := domain.Task{TaskID: "local", ExpiresAt: now}
	assert.Equal(t, "local", task.UpstreamTaskID())
	assert.True(t, task.IsExpired(now))
	assert.False(t, task.IsExpired(now.Add(-time.Minute)))

	task.SourceTaskID = "upstream"
	assert.Equal(t, "upstream", task.UpstreamTaskID())
}
