// Package repository defines the storage capability contract the
// orchestration layer depends on.
//
// Every operation takes already-validated domain values, never raw transport
// payloads, and each is independent — no operation assumes another ran
// first. Storage failures surface uniformly as apperror.ErrPersistence;
// absent rows on lookups surface as apperror.ErrNotFound. Driver error types
// never cross this boundary.
//
// Two implementations exist: sqlite.DB (real, pooled) and the in-memory
// fake in the service tests.
package repository

import (
	"context"
	"time"

	"github.com/sakif/pulse/internal/model"
)

// Db is the full capability contract.
type Db interface {
	// Identity resolution.
	//
	// ResolveApiToken and ResolveRefreshToken map an opaque credential to
	// its owning username; expired refresh tokens do not resolve.
	// VerifyCredentials checks a username/password pair and returns the
	// username on success; a crypto-level verification failure is logged
	// and reported as a plain mismatch.
	ResolveApiToken(ctx context.Context, token string) (string, error)
	ResolveRefreshToken(ctx context.Context, token string) (string, error)
	VerifyCredentials(ctx context.Context, username, password string) (string, error)

	// Users.
	CreateUser(ctx context.Context, user *model.User) error
	UserExists(ctx context.Context, username string) (bool, error)

	// Heartbeat write. Referenced projects are created insert-if-absent
	// before the heartbeat rows are written, all in one transaction.
	// Returns the generated heartbeat ids.
	InsertHeartbeats(ctx context.Context, beats []model.Heartbeat) ([]string, error)

	// Aggregation reads. All take a closed-open window [start, end) and a
	// result cutoff. TotalStats branches to a tag-filtered variant when
	// tagFilter is non-empty. TotalTimeBetween accumulates its results
	// newest-range-first (descending relative to the input); callers that
	// need input order must reverse.
	TotalStats(ctx context.Context, username string, start, end time.Time, cutoff int, tagFilter string) ([]model.StatRow, error)
	TimelineStats(ctx context.Context, username string, start, end time.Time, cutoff int) ([]model.TimelineRow, error)
	ProjectStats(ctx context.Context, username, project string, start, end time.Time, cutoff int) ([]model.ProjectStatRow, error)
	TagStats(ctx context.Context, username, tag string, start, end time.Time, cutoff int) ([]model.StatRow, error)
	Leaderboards(ctx context.Context, start, end time.Time, cutoff int) ([]model.LeaderboardRow, error)
	TotalTimeBetween(ctx context.Context, ranges []model.TimeRange) ([]time.Duration, error)
	TotalTimeToday(ctx context.Context, username string) (time.Duration, error)

	// Token lifecycle. CreateTokenPair inserts both halves in one
	// transaction, then purges the user's already-expired rows in a second,
	// separately committed transaction. DeleteTokenPair deletes the access
	// and refresh rows and returns the summed delete count uninterpreted —
	// the orchestration layer decides what the sum means.
	CreateTokenPair(ctx context.Context, pair *model.TokenPair, username string) error
	DeleteTokenPair(ctx context.Context, accessToken, refreshToken string) (int64, error)
	CreateApiToken(ctx context.Context, token *model.ApiToken) error
	ListApiTokens(ctx context.Context, username string) ([]model.ApiToken, error)
	DeleteApiToken(ctx context.Context, token string) error
	TouchApiToken(ctx context.Context, token string, usedAt time.Time) error
	RenameApiToken(ctx context.Context, token, name string) error

	// Projects and tags. SetTags replaces the project's full tag set
	// (insert-or-fetch tag rows, delete old associations, insert new ones)
	// inside one transaction.
	SetTags(ctx context.Context, username, project string, tags []string) error
	GetTags(ctx context.Context, username, project string) ([]model.Tag, error)
	GetAllTags(ctx context.Context, username string) ([]model.Tag, error)
	GetAllProjects(ctx context.Context, username string) ([]model.Project, error)
	CheckProjectOwner(ctx context.Context, username, project string) (bool, error)
	CheckTagOwner(ctx context.Context, username, tag string) (bool, error)

	// Badges. CreateBadgeLink is idempotent per (username, project): a
	// second request returns the existing link id.
	CreateBadgeLink(ctx context.Context, username, project string) (string, error)
	GetBadgeLinkInfo(ctx context.Context, linkID string) (*model.BadgeLink, error)
	GetTotalActivityTime(ctx context.Context, linkID string, days int) (time.Duration, error)
}
