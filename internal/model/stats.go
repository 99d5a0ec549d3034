package model

import "time"

// Read-model rows. None of these are persisted — they are computed on demand
// from heartbeat history for a given time window and result cutoff.

// StatRow is one bucket of a user's overall statistics: total seconds spent
// in (day, project, language).
type StatRow struct {
	Day          time.Time `json:"day"`
	Project      string    `json:"project"`
	Language     string    `json:"language"`
	TotalSeconds int64     `json:"totalSeconds"`
}

// ProjectStatRow is one bucket of a single project's breakdown: total
// seconds spent in (day, entity, language) within that project.
type ProjectStatRow struct {
	Day          time.Time `json:"day"`
	Entity       string    `json:"entity"`
	Language     string    `json:"language"`
	TotalSeconds int64     `json:"totalSeconds"`
}

// TimelineRow is one contiguous activity span: the user worked on Project
// (dominant Language) from RangeStart to RangeEnd without a session-timeout
// gap.
type TimelineRow struct {
	Project    string    `json:"project"`
	Language   string    `json:"language"`
	RangeStart time.Time `json:"rangeStart"`
	RangeEnd   time.Time `json:"rangeEnd"`
}

// LeaderboardRow ranks a user by total active seconds within the window.
type LeaderboardRow struct {
	Rank         int    `json:"rank"`
	Username     string `json:"username"`
	TotalSeconds int64  `json:"totalSeconds"`
}

// TimeRange is one (user, project, start, end) query range for a
// total-time-between request. Results are returned in input order, one
// duration per range.
type TimeRange struct {
	Username string    `json:"username"`
	Project  string    `json:"project"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}
