package domain

import "time"

// DefaultDailyLimit is the number of lyric generations allowed per UTC day.
const DefaultDailyLimit = 3

// UserQuota is the per-identity daily generation counter.
type UserQuota struct {
	UserID              string    `json:"user_id"`
	SongsGeneratedToday int       `json:"songs_generated_today"`
	DailyLimitReset     time.Time `json:"daily_limit_reset"`
	TotalSongsGenerated int       `json:"total_songs_generated"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// NextUTCMidnight returns the first UTC midnight strictly after now.
func NextUTCMidnight(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), u.Day()+1, 0, 0, 0, 0, time.UTC)
}

// ResetIfDue zeroes the daily counter when now has reached the reset instant.
// It reports whether a reset happened.
func (q *UserQuota) ResetIfDue(now time.Time) bool {
	if now.Before(q.DailyLimitReset) {
		return false
	}
	q.SongsGeneratedToday = 0
	q.DailyLimitReset = NextUTCMidnight(now)
	return true
}
