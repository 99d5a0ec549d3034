package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/pulse/internal/apperror"
	"github.com/sakif/pulse/internal/model"
)

// CreateBadgeLink returns a public link id for (username, project).
// Idempotent: a second request for the same pair returns the existing id
// rather than minting a new one, so READMEs embedding the badge never go
// stale. Lookup and insert run in one transaction to close the race between
// two concurrent first requests.
func (db *DB) CreateBadgeLink(ctx context.Context, username, project string) (string, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", apperror.Persistence("create badge link", err)
	}
	defer tx.Rollback()

	var linkID string
	err = tx.QueryRowContext(ctx,
		`SELECT link_id FROM badge_links WHERE username = ? AND project = ?`,
		username, project,
	).Scan(&linkID)
	if err == nil {
		return linkID, tx.Commit()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", apperror.Persistence("create badge link: lookup", err)
	}

	linkID = uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO badge_links (link_id, username, project, created_at)
		 VALUES (?, ?, ?, ?)`,
		linkID, username, project, time.Now(),
	); err != nil {
		return "", apperror.Persistence("create badge link: insert", err)
	}

	if err := tx.Commit(); err != nil {
		return "", apperror.Persistence("create badge link: commit", err)
	}

	return linkID, nil
}

// GetBadgeLinkInfo resolves a public link id to its (owner, project) pair.
func (db *DB) GetBadgeLinkInfo(ctx context.Context, linkID string) (*model.BadgeLink, error) {
	var link model.BadgeLink
	err := db.conn.QueryRowContext(ctx,
		`SELECT link_id, username, project, created_at
		 FROM badge_links WHERE link_id = ?`,
		linkID,
	).Scan(&link.LinkID, &link.Username, &link.Project, &link.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("badge link", linkID)
		}
		return nil, apperror.Persistence("get badge link info", err)
	}
	return &link, nil
}

// GetTotalActivityTime returns the linked (owner, project)'s total activity
// over the trailing N days. Unauthenticated callers reach this through the
// badge endpoint; the link id is the only capability required.
func (db *DB) GetTotalActivityTime(ctx context.Context, linkID string, days int) (time.Duration, error) {
	link, err := db.GetBadgeLinkInfo(ctx, linkID)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	start := now.AddDate(0, 0, -days)
	return db.totalTime(ctx, link.Username, link.Project, start, now)
}
