package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sakif/pulse/internal/apperror"
	"github.com/sakif/pulse/internal/model"
	"github.com/sakif/pulse/internal/repository"
)

// DefaultCutoff caps result rows when the caller does not ask for a limit.
const DefaultCutoff = 100

// StatsService dispatches the aggregation read paths. Each use case
// resolves the API token first and passes the resolved username — never the
// token — to storage.
type StatsService struct {
	db     repository.Db
	logger *slog.Logger
}

func NewStatsService(db repository.Db, logger *slog.Logger) *StatsService {
	return &StatsService{db: db, logger: logger}
}

// Stats returns the caller's per-(day, project, language) buckets. A
// non-empty tagFilter restricts to projects carrying that tag; the tag must
// belong to the caller.
func (s *StatsService) Stats(ctx context.Context, apiToken string, start, end time.Time, cutoff int, tagFilter string) ([]model.StatRow, error) {
	username, err := resolveApiToken(ctx, s.db, apiToken)
	if err != nil {
		return nil, err
	}

	if tagFilter != "" {
		owns, err := s.db.CheckTagOwner(ctx, username, tagFilter)
		if err != nil {
			return nil, err
		}
		if !owns {
			return nil, apperror.InvalidTagRelation(tagFilter)
		}
	}

	return s.db.TotalStats(ctx, username, start, end, normalizeCutoff(cutoff), tagFilter)
}

// Timeline returns the caller's contiguous activity spans.
func (s *StatsService) Timeline(ctx context.Context, apiToken string, start, end time.Time, cutoff int) ([]model.TimelineRow, error) {
	username, err := resolveApiToken(ctx, s.db, apiToken)
	if err != nil {
		return nil, err
	}
	return s.db.TimelineStats(ctx, username, start, end, normalizeCutoff(cutoff))
}

// ProjectStats returns per-entity buckets for one of the caller's projects.
// The ownership check runs fresh on every call.
func (s *StatsService) ProjectStats(ctx context.Context, apiToken, project string, start, end time.Time, cutoff int) ([]model.ProjectStatRow, error) {
	username, err := resolveApiToken(ctx, s.db, apiToken)
	if err != nil {
		return nil, err
	}

	owns, err := s.db.CheckProjectOwner(ctx, username, project)
	if err != nil {
		return nil, err
	}
	if !owns {
		return nil, apperror.InvalidRelation(project)
	}

	return s.db.ProjectStats(ctx, username, project, start, end, normalizeCutoff(cutoff))
}

// TagStats returns the caller's buckets restricted to one of their tags.
func (s *StatsService) TagStats(ctx context.Context, apiToken, tag string, start, end time.Time, cutoff int) ([]model.StatRow, error) {
	username, err := resolveApiToken(ctx, s.db, apiToken)
	if err != nil {
		return nil, err
	}

	owns, err := s.db.CheckTagOwner(ctx, username, tag)
	if err != nil {
		return nil, err
	}
	if !owns {
		return nil, apperror.InvalidTagRelation(tag)
	}

	return s.db.TagStats(ctx, username, tag, start, end, normalizeCutoff(cutoff))
}

// Leaderboards ranks all users by activity in the window. Gated so only
// registered clients can read it, but the board itself is site-wide.
func (s *StatsService) Leaderboards(ctx context.Context, apiToken string, start, end time.Time, cutoff int) ([]model.LeaderboardRow, error) {
	if _, err := resolveApiToken(ctx, s.db, apiToken); err != nil {
		return nil, err
	}
	return s.db.Leaderboards(ctx, start, end, normalizeCutoff(cutoff))
}

// TotalTimeBetween answers one duration per requested range, in the same
// order as the input. Storage accumulates its results newest-range-first
// (descending), so the slice is reversed here before returning — dropping
// the reversal would silently pair ranges with the wrong durations.
// Every range is forced onto the resolved caller; the usernames inside the
// request are ignored.
func (s *StatsService) TotalTimeBetween(ctx context.Context, apiToken string, ranges []model.TimeRange) ([]time.Duration, error) {
	username, err := resolveApiToken(ctx, s.db, apiToken)
	if err != nil {
		return nil, err
	}

	scoped := make([]model.TimeRange, len(ranges))
	copy(scoped, ranges)
	for i := range scoped {
		scoped[i].Username = username
	}

	descending, err := s.db.TotalTimeBetween(ctx, scoped)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(descending)-1; i < j; i, j = i+1, j-1 {
		descending[i], descending[j] = descending[j], descending[i]
	}
	return descending, nil
}

// TotalTimeToday returns the caller's activity since midnight.
func (s *StatsService) TotalTimeToday(ctx context.Context, apiToken string) (time.Duration, error) {
	username, err := resolveApiToken(ctx, s.db, apiToken)
	if err != nil {
		return 0, err
	}
	return s.db.TotalTimeToday(ctx, username)
}

func normalizeCutoff(cutoff int) int {
	if cutoff <= 0 {
		return DefaultCutoff
	}
	return cutoff
}
