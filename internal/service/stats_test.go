package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/pulse/internal/apperror"
	"github.com/sakif/pulse/internal/model"
)

func newStatsService(t *testing.T) (*StatsService, *fakeDb) {
	t.Helper()
	db := newFakeDb()
	return NewStatsService(db, testLogger(t)), db
}

func TestTotalTimeBetween_ResultsMatchInputOrder(t *testing.T) {
	svc, db := newStatsService(t)
	token := db.addUser("alice", "pw")
	db.timeByProject["first"] = 60 * time.Second
	db.timeByProject["second"] = 120 * time.Second

	now := time.Now()
	ranges := []model.TimeRange{
		{Username: "mallory", Project: "first", Start: now.Add(-2 * time.Hour), End: now.Add(-time.Hour)},
		{Username: "mallory", Project: "second", Start: now.Add(-time.Hour), End: now},
	}

	got, err := svc.TotalTimeBetween(context.Background(), token, ranges)
	require.NoError(t, err)

	// storage answers newest-range-first; the service restores input order
	require.Equal(t, []time.Duration{60 * time.Second, 120 * time.Second}, got)

	// the requested usernames are ignored, the resolved caller is forced on
	for _, r := range db.rangesSeen {
		assert.Equal(t, "alice", r.Username)
	}
	// the caller's slice is untouched
	assert.Equal(t, "mallory", ranges[0].Username)
}

func TestTotalTimeBetween_EmptyRanges(t *testing.T) {
	svc, db := newStatsService(t)
	token := db.addUser("alice", "pw")

	got, err := svc.TotalTimeBetween(context.Background(), token, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStats_UnknownToken(t *testing.T) {
	svc, _ := newStatsService(t)

	_, err := svc.Stats(context.Background(), "bogus", time.Now().Add(-time.Hour), time.Now(), 0, "")
	require.ErrorIs(t, err, apperror.ErrUnknownApiToken)
}

func TestStats_TagFilterRequiresOwnership(t *testing.T) {
	svc, db := newStatsService(t)
	token := db.addUser("alice", "pw")
	db.addProject("alice", "pulse")
	require.NoError(t, db.SetTags(context.Background(), "alice", "pulse", []string{"work"}))
	db.statRows = []model.StatRow{{Day: time.Now().Truncate(24 * time.Hour), Project: "pulse", Language: "Go", TotalSeconds: 600}}

	_, err := svc.Stats(context.Background(), token, time.Now().Add(-time.Hour), time.Now(), 0, "hobby")
	require.ErrorIs(t, err, apperror.ErrInvalidTagRelation)

	rows, err := svc.Stats(context.Background(), token, time.Now().Add(-time.Hour), time.Now(), 0, "work")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestProjectStats_RequiresOwnership(t *testing.T) {
	svc, db := newStatsService(t)
	token := db.addUser("alice", "pw")
	db.addProject("bob", "secret-project")

	_, err := svc.ProjectStats(context.Background(), token, "secret-project", time.Now().Add(-time.Hour), time.Now(), 0)
	require.ErrorIs(t, err, apperror.ErrInvalidRelation)

	db.addProject("alice", "mine")
	db.projectStatRows = []model.ProjectStatRow{{Day: time.Now().Truncate(24 * time.Hour), Entity: "main.go", Language: "Go", TotalSeconds: 300}}

	rows, err := svc.ProjectStats(context.Background(), token, "mine", time.Now().Add(-time.Hour), time.Now(), 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestLeaderboards_GatedButSiteWide(t *testing.T) {
	svc, db := newStatsService(t)
	token := db.addUser("alice", "pw")
	db.leaderboardRows = []model.LeaderboardRow{
		{Rank: 1, Username: "bob", TotalSeconds: 900},
		{Rank: 2, Username: "alice", TotalSeconds: 300},
	}

	_, err := svc.Leaderboards(context.Background(), "bogus", time.Now().Add(-time.Hour), time.Now(), 0)
	require.ErrorIs(t, err, apperror.ErrUnknownApiToken)

	rows, err := svc.Leaderboards(context.Background(), token, time.Now().Add(-time.Hour), time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "bob", rows[0].Username)
}

func TestTotalTimeToday(t *testing.T) {
	svc, db := newStatsService(t)
	token := db.addUser("alice", "pw")
	db.timeToday = 42 * time.Minute

	got, err := svc.TotalTimeToday(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, 42*time.Minute, got)
}

func TestNormalizeCutoff(t *testing.T) {
	assert.Equal(t, DefaultCutoff, normalizeCutoff(0))
	assert.Equal(t, DefaultCutoff, normalizeCutoff(-5))
	assert.Equal(t, 7, normalizeCutoff(7))
}
