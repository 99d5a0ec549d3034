package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/xid"

	"github.com/sakif/pulse/internal/apperror"
	"github.com/sakif/pulse/internal/model"
)

// SetTags replaces the project's full tag set. Three steps — insert-or-fetch
// the tag rows, delete every existing association for the project, insert
// the new associations — run inside ONE transaction, so a failure partway
// through never leaves the project half-tagged.
func (db *DB) SetTags(ctx context.Context, username, project string, tags []string) error {
	tx, err := db.conn.BeginTx(ctx, nil) // SQLite transactions are serializable
	if err != nil {
		return apperror.Persistence("set tags", err)
	}
	defer tx.Rollback()

	var projectID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM projects WHERE owner = ? AND name = ?`, username, project,
	).Scan(&projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NotFound("project", project)
		}
		return apperror.Persistence("set tags: project lookup", err)
	}

	tagIDs := make([]string, 0, len(tags))
	for _, name := range tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO tags (id, owner, name) VALUES (?, ?, ?)`,
			xid.New().String(), username, name,
		); err != nil {
			return apperror.Persistence("set tags: tag insert", err)
		}

		var tagID string
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM tags WHERE owner = ? AND name = ?`, username, name,
		).Scan(&tagID); err != nil {
			return apperror.Persistence("set tags: tag lookup", err)
		}
		tagIDs = append(tagIDs, tagID)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM project_tags WHERE project_id = ?`, projectID,
	); err != nil {
		return apperror.Persistence("set tags: clear associations", err)
	}

	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO project_tags (tag_id, project_id) VALUES (?, ?)`,
			tagID, projectID,
		); err != nil {
			return apperror.Persistence("set tags: associate", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperror.Persistence("set tags: commit", err)
	}

	return nil
}

// GetTags returns the tags currently associated with the project.
func (db *DB) GetTags(ctx context.Context, username, project string) ([]model.Tag, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT t.id, t.owner, t.name
		 FROM tags t
		 JOIN project_tags pt ON pt.tag_id = t.id
		 JOIN projects p ON p.id = pt.project_id
		 WHERE p.owner = ? AND p.name = ?
		 ORDER BY t.name ASC`,
		username, project,
	)
	if err != nil {
		return nil, apperror.Persistence("get tags", err)
	}
	defer rows.Close()

	return scanTags(rows, "get tags")
}

// GetAllTags returns every tag the user has created.
func (db *DB) GetAllTags(ctx context.Context, username string) ([]model.Tag, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, owner, name FROM tags WHERE owner = ? ORDER BY name ASC`,
		username,
	)
	if err != nil {
		return nil, apperror.Persistence("get all tags", err)
	}
	defer rows.Close()

	return scanTags(rows, "get all tags")
}

func scanTags(rows *sql.Rows, op string) ([]model.Tag, error) {
	tags := []model.Tag{}
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Owner, &t.Name); err != nil {
			return nil, apperror.Persistence(op+": scan", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Persistence(op+": rows", err)
	}
	return tags, nil
}

// GetAllProjects returns every project owned by the user, newest first.
func (db *DB) GetAllProjects(ctx context.Context, username string) ([]model.Project, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, owner, name, created_at FROM projects
		 WHERE owner = ? ORDER BY created_at DESC`,
		username,
	)
	if err != nil {
		return nil, apperror.Persistence("get all projects", err)
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.Owner, &p.Name, &p.CreatedAt); err != nil {
			return nil, apperror.Persistence("get all projects: scan", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Persistence("get all projects: rows", err)
	}

	return projects, nil
}

// CheckProjectOwner reports whether the user owns the named project. Called
// fresh on every gated operation — ownership decisions are never cached.
func (db *DB) CheckProjectOwner(ctx context.Context, username, project string) (bool, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM projects WHERE owner = ? AND name = ?`,
		username, project,
	).Scan(&count)
	if err != nil {
		return false, apperror.Persistence("check project owner", err)
	}
	return count > 0, nil
}

// CheckTagOwner reports whether the user owns the named tag.
func (db *DB) CheckTagOwner(ctx context.Context, username, tag string) (bool, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tags WHERE owner = ? AND name = ?`,
		username, tag,
	).Scan(&count)
	if err != nil {
		return false, apperror.Persistence("check tag owner", err)
	}
	return count > 0, nil
}
