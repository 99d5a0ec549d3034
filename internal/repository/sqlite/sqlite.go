// Package sqlite implements the repository.Db capability contract on top of
// SQLite via database/sql.
//
// The sql.DB handle is the shared, size-bounded connection pool; all state
// lives in the backing store and the pool is passed explicitly, never held
// as a global. SQLite transactions are serializable, which is the isolation
// level the multi-row writes in this package rely on.
package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/sakif/pulse/internal/auth"
	"github.com/sakif/pulse/internal/repository"
)

// sessionTimeoutSeconds caps the gap counted between two consecutive
// heartbeats. A gap longer than this means the user walked away; it
// contributes nothing to totals and splits timeline spans.
const sessionTimeoutSeconds = 900

// DB wraps the sql.DB pool and implements repository.Db.
type DB struct {
	conn      *sql.DB
	passwords *auth.PasswordService
	logger    *slog.Logger
}

var _ repository.Db = (*DB)(nil)

// New opens the database at dbPath (":memory:" for tests), configures it,
// and runs migrations.
func New(dbPath string, passwords *auth.PasswordService, logger *slog.Logger) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// An in-memory database exists per connection; cap the pool at one so
	// every query and transaction sees the same schema. Used by tests.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent reads while a write is in flight — ingestion
	// and stats queries run side by side.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn, passwords: passwords, logger: logger}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Defer this wherever New is called.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps this
// idempotent across restarts.
//
// time_sent and expires_at are stored as unix epoch seconds (INTEGER) so
// the aggregation queries can do arithmetic on them directly; the remaining
// timestamps are DATETIME handled by the driver.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS api_tokens (
			token        TEXT PRIMARY KEY,
			username     TEXT NOT NULL REFERENCES users(username),
			name         TEXT NOT NULL DEFAULT '',
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_used_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_api_tokens_username ON api_tokens(username);

		CREATE TABLE IF NOT EXISTS access_tokens (
			token      TEXT PRIMARY KEY,
			username   TEXT NOT NULL REFERENCES users(username),
			expires_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_access_tokens_username ON access_tokens(username);

		CREATE TABLE IF NOT EXISTS refresh_tokens (
			token      TEXT PRIMARY KEY,
			username   TEXT NOT NULL REFERENCES users(username),
			expires_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_refresh_tokens_username ON refresh_tokens(username);

		CREATE TABLE IF NOT EXISTS projects (
			id         TEXT PRIMARY KEY,
			owner      TEXT NOT NULL REFERENCES users(username),
			name       TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(owner, name)
		);

		CREATE TABLE IF NOT EXISTS tags (
			id    TEXT PRIMARY KEY,
			owner TEXT NOT NULL REFERENCES users(username),
			name  TEXT NOT NULL,
			UNIQUE(owner, name)
		);

		CREATE TABLE IF NOT EXISTS project_tags (
			tag_id     TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			PRIMARY KEY (tag_id, project_id)
		);

		CREATE TABLE IF NOT EXISTS heartbeats (
			id        TEXT PRIMARY KEY,
			sender    TEXT NOT NULL,
			project   TEXT NOT NULL,
			language  TEXT NOT NULL DEFAULT '',
			entity    TEXT NOT NULL DEFAULT '',
			branch    TEXT NOT NULL DEFAULT '',
			editor    TEXT NOT NULL DEFAULT '',
			plugin    TEXT NOT NULL DEFAULT '',
			platform  TEXT NOT NULL DEFAULT '',
			time_sent INTEGER NOT NULL,
			is_write  INTEGER NOT NULL DEFAULT 0,
			lines     INTEGER NOT NULL DEFAULT 0,
			cursorpos INTEGER NOT NULL DEFAULT 0,
			lineno    INTEGER NOT NULL DEFAULT 0,
			category  TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_heartbeats_sender_time ON heartbeats(sender, time_sent);
		CREATE INDEX IF NOT EXISTS idx_heartbeats_project ON heartbeats(sender, project, time_sent);

		CREATE TABLE IF NOT EXISTS badge_links (
			link_id    TEXT PRIMARY KEY,
			username   TEXT NOT NULL REFERENCES users(username),
			project    TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(username, project)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	return nil
}
