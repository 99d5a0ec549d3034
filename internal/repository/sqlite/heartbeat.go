package sqlite

import (
	"context"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/pulse/internal/apperror"
	"github.com/sakif/pulse/internal/model"
)

// InsertHeartbeats persists a batch of already-enriched heartbeats.
//
// Referenced projects are created first with INSERT OR IGNORE keyed on
// (owner, name), so concurrent ingestion of the same new project — or the
// same project twice within one batch — resolves to a no-op instead of a
// duplicate-key failure. Project creation and the heartbeat inserts commit
// together: a heartbeat row never exists without its project row.
func (db *DB) InsertHeartbeats(ctx context.Context, beats []model.Heartbeat) ([]string, error) {
	if len(beats) == 0 {
		return []string{}, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperror.Persistence("insert heartbeats", err)
	}
	defer tx.Rollback()

	seen := make(map[string]bool)
	for i := range beats {
		b := &beats[i]
		if b.Project == "" {
			continue
		}
		key := b.Sender + "\x00" + b.Project
		if seen[key] {
			continue
		}
		seen[key] = true

		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO projects (id, owner, name, created_at)
			 VALUES (?, ?, ?, ?)`,
			xid.New().String(), b.Sender, b.Project, time.Now(),
		); err != nil {
			return nil, apperror.Persistence("insert heartbeats: project", err)
		}
	}

	ids := make([]string, 0, len(beats))
	for i := range beats {
		b := &beats[i]
		b.ID = xid.New().String()

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO heartbeats
			 (id, sender, project, language, entity, branch, editor, plugin,
			  platform, time_sent, is_write, lines, cursorpos, lineno, category)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.ID, b.Sender, b.Project, b.Language, b.Entity, b.Branch,
			b.Editor, b.Plugin, b.Platform, b.TimeSent.Unix(), b.IsWrite,
			b.Lines, b.CursorPos, b.LineNumber, b.Category,
		); err != nil {
			return nil, apperror.Persistence("insert heartbeats: row", err)
		}
		ids = append(ids, b.ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperror.Persistence("insert heartbeats: commit", err)
	}

	return ids, nil
}
