package sqlite

import (
	"context"
	"time"

	"github.com/sakif/pulse/internal/apperror"
	"github.com/sakif/pulse/internal/model"
)

// The aggregation queries all follow the same scheme: order the user's
// heartbeats by time, take the gap to the previous one with LAG(), cap each
// gap at the session timeout, and sum the capped gaps into buckets. A gap is
// attributed to the project/language of the LATER heartbeat. All of them are
// single read-only statements — no transaction needed.

const totalStatsQuery = `
WITH gaps AS (
	SELECT project, language, time_sent,
	       time_sent - LAG(time_sent) OVER (ORDER BY time_sent) AS gap
	FROM heartbeats
	WHERE sender = ? AND time_sent >= ? AND time_sent < ?
)
SELECT date(time_sent, 'unixepoch') AS day, project, language,
       CAST(SUM(MIN(COALESCE(gap, 0), ?)) AS INTEGER) AS total
FROM gaps
GROUP BY day, project, language
ORDER BY day ASC, total DESC, project ASC, language ASC
LIMIT ?`

const taggedStatsQuery = `
WITH gaps AS (
	SELECT project, language, time_sent,
	       time_sent - LAG(time_sent) OVER (ORDER BY time_sent) AS gap
	FROM heartbeats
	WHERE sender = ? AND time_sent >= ? AND time_sent < ?
	  AND project IN (
		SELECT p.name FROM projects p
		JOIN project_tags pt ON pt.project_id = p.id
		JOIN tags t ON t.id = pt.tag_id
		WHERE p.owner = ? AND t.name = ?
	  )
)
SELECT date(time_sent, 'unixepoch') AS day, project, language,
       CAST(SUM(MIN(COALESCE(gap, 0), ?)) AS INTEGER) AS total
FROM gaps
GROUP BY day, project, language
ORDER BY day ASC, total DESC, project ASC, language ASC
LIMIT ?`

// TotalStats returns per-(day, project, language) activity buckets for the
// user in [start, end). A non-empty tagFilter branches to the tag-filtered
// query variant, restricting to projects carrying that tag.
func (db *DB) TotalStats(ctx context.Context, username string, start, end time.Time, cutoff int, tagFilter string) ([]model.StatRow, error) {
	query := totalStatsQuery
	args := []any{username, start.Unix(), end.Unix(), sessionTimeoutSeconds, cutoff}
	if tagFilter != "" {
		query = taggedStatsQuery
		args = []any{username, start.Unix(), end.Unix(), username, tagFilter, sessionTimeoutSeconds, cutoff}
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperror.Persistence("total stats", err)
	}
	defer rows.Close()

	stats := []model.StatRow{}
	for rows.Next() {
		var (
			day string
			row model.StatRow
		)
		if err := rows.Scan(&day, &row.Project, &row.Language, &row.TotalSeconds); err != nil {
			return nil, apperror.Persistence("total stats: scan", err)
		}
		row.Day, err = time.Parse("2006-01-02", day)
		if err != nil {
			return nil, apperror.Persistence("total stats: day parse", err)
		}
		stats = append(stats, row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Persistence("total stats: rows", err)
	}

	return stats, nil
}

// TagStats is TotalStats restricted to projects carrying the given tag.
func (db *DB) TagStats(ctx context.Context, username, tag string, start, end time.Time, cutoff int) ([]model.StatRow, error) {
	return db.TotalStats(ctx, username, start, end, cutoff, tag)
}

const projectStatsQuery = `
WITH gaps AS (
	SELECT entity, language, time_sent,
	       time_sent - LAG(time_sent) OVER (ORDER BY time_sent) AS gap
	FROM heartbeats
	WHERE sender = ? AND project = ? AND time_sent >= ? AND time_sent < ?
)
SELECT date(time_sent, 'unixepoch') AS day, entity, language,
       CAST(SUM(MIN(COALESCE(gap, 0), ?)) AS INTEGER) AS total
FROM gaps
GROUP BY day, entity, language
ORDER BY day ASC, total DESC, entity ASC
LIMIT ?`

// ProjectStats returns per-(day, entity, language) buckets within a single
// project.
func (db *DB) ProjectStats(ctx context.Context, username, project string, start, end time.Time, cutoff int) ([]model.ProjectStatRow, error) {
	rows, err := db.conn.QueryContext(ctx, projectStatsQuery,
		username, project, start.Unix(), end.Unix(), sessionTimeoutSeconds, cutoff,
	)
	if err != nil {
		return nil, apperror.Persistence("project stats", err)
	}
	defer rows.Close()

	stats := []model.ProjectStatRow{}
	for rows.Next() {
		var (
			day string
			row model.ProjectStatRow
		)
		if err := rows.Scan(&day, &row.Entity, &row.Language, &row.TotalSeconds); err != nil {
			return nil, apperror.Persistence("project stats: scan", err)
		}
		row.Day, err = time.Parse("2006-01-02", day)
		if err != nil {
			return nil, apperror.Persistence("project stats: day parse", err)
		}
		stats = append(stats, row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Persistence("project stats: rows", err)
	}

	return stats, nil
}

// timelineQuery splits the user's heartbeats into contiguous spans: a new
// span starts whenever the project changes or the gap exceeds the session
// timeout. The span's language is taken from its first heartbeat.
const timelineQuery = `
WITH marked AS (
	SELECT project, language, time_sent,
	       CASE
	         WHEN time_sent - LAG(time_sent) OVER (ORDER BY time_sent) > ? THEN 1
	         WHEN project != LAG(project) OVER (ORDER BY time_sent) THEN 1
	         ELSE 0
	       END AS boundary
	FROM heartbeats
	WHERE sender = ? AND time_sent >= ? AND time_sent < ?
),
spans AS (
	SELECT project, language, time_sent,
	       SUM(boundary) OVER (ORDER BY time_sent ROWS UNBOUNDED PRECEDING) AS span_id
	FROM marked
),
firsts AS (
	SELECT project, time_sent, span_id,
	       FIRST_VALUE(language) OVER (
	           PARTITION BY span_id ORDER BY time_sent, language
	       ) AS span_language
	FROM spans
)
SELECT project, span_language, MIN(time_sent) AS range_start, MAX(time_sent) AS range_end
FROM firsts
GROUP BY span_id, project, span_language
ORDER BY range_start ASC
LIMIT ?`

// TimelineStats returns the user's contiguous activity spans in [start, end).
func (db *DB) TimelineStats(ctx context.Context, username string, start, end time.Time, cutoff int) ([]model.TimelineRow, error) {
	rows, err := db.conn.QueryContext(ctx, timelineQuery,
		sessionTimeoutSeconds, username, start.Unix(), end.Unix(), cutoff,
	)
	if err != nil {
		return nil, apperror.Persistence("timeline stats", err)
	}
	defer rows.Close()

	timeline := []model.TimelineRow{}
	for rows.Next() {
		var (
			row       model.TimelineRow
			startUnix int64
			endUnix   int64
		)
		if err := rows.Scan(&row.Project, &row.Language, &startUnix, &endUnix); err != nil {
			return nil, apperror.Persistence("timeline stats: scan", err)
		}
		row.RangeStart = time.Unix(startUnix, 0).UTC()
		row.RangeEnd = time.Unix(endUnix, 0).UTC()
		timeline = append(timeline, row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Persistence("timeline stats: rows", err)
	}

	return timeline, nil
}

const leaderboardQuery = `
WITH gaps AS (
	SELECT sender,
	       time_sent - LAG(time_sent) OVER (PARTITION BY sender ORDER BY time_sent) AS gap
	FROM heartbeats
	WHERE time_sent >= ? AND time_sent < ?
),
totals AS (
	SELECT sender, CAST(SUM(MIN(COALESCE(gap, 0), ?)) AS INTEGER) AS total
	FROM gaps
	GROUP BY sender
)
SELECT RANK() OVER (ORDER BY total DESC) AS rank, sender, total
FROM totals
ORDER BY total DESC, sender ASC
LIMIT ?`

// Leaderboards ranks every user by total active time in [start, end).
// Equal totals share a rank; the row ORDER falls back to username so the
// listing stays deterministic.
func (db *DB) Leaderboards(ctx context.Context, start, end time.Time, cutoff int) ([]model.LeaderboardRow, error) {
	rows, err := db.conn.QueryContext(ctx, leaderboardQuery,
		start.Unix(), end.Unix(), sessionTimeoutSeconds, cutoff,
	)
	if err != nil {
		return nil, apperror.Persistence("leaderboards", err)
	}
	defer rows.Close()

	board := []model.LeaderboardRow{}
	for rows.Next() {
		var row model.LeaderboardRow
		if err := rows.Scan(&row.Rank, &row.Username, &row.TotalSeconds); err != nil {
			return nil, apperror.Persistence("leaderboards: scan", err)
		}
		board = append(board, row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Persistence("leaderboards: rows", err)
	}

	return board, nil
}

const totalTimeQuery = `
SELECT CAST(COALESCE(SUM(MIN(COALESCE(gap, 0), ?)), 0) AS INTEGER) FROM (
	SELECT time_sent - LAG(time_sent) OVER (ORDER BY time_sent) AS gap
	FROM heartbeats
	WHERE sender = ? AND (? = '' OR project = ?) AND time_sent >= ? AND time_sent < ?
)`

// totalTime sums capped gaps for one (user, optional project, window).
func (db *DB) totalTime(ctx context.Context, username, project string, start, end time.Time) (time.Duration, error) {
	var seconds int64
	err := db.conn.QueryRowContext(ctx, totalTimeQuery,
		sessionTimeoutSeconds, username, project, project, start.Unix(), end.Unix(),
	).Scan(&seconds)
	if err != nil {
		return 0, apperror.Persistence("total time", err)
	}
	return time.Duration(seconds) * time.Second, nil
}

// TotalTimeBetween answers one duration per input range. Results accumulate
// newest-range-first, i.e. the returned slice is the REVERSE of the input
// order; the orchestration layer reverses it back before handing it to
// callers. Changing this ordering breaks range-to-value pairing upstream.
func (db *DB) TotalTimeBetween(ctx context.Context, ranges []model.TimeRange) ([]time.Duration, error) {
	results := []time.Duration{}
	for _, r := range ranges {
		d, err := db.totalTime(ctx, r.Username, r.Project, r.Start, r.End)
		if err != nil {
			return nil, err
		}
		results = append([]time.Duration{d}, results...)
	}
	return results, nil
}

// TotalTimeToday sums the user's activity since local midnight.
func (db *DB) TotalTimeToday(ctx context.Context, username string) (time.Duration, error) {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return db.totalTime(ctx, username, "", midnight, now)
}
