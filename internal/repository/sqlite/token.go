package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/sakif/pulse/internal/apperror"
	"github.com/sakif/pulse/internal/model"
)

// ResolveApiToken maps an opaque API token to its owning username.
func (db *DB) ResolveApiToken(ctx context.Context, token string) (string, error) {
	var username string
	err := db.conn.QueryRowContext(ctx,
		`SELECT username FROM api_tokens WHERE token = ?`, token,
	).Scan(&username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperror.NotFound("api token", token)
		}
		return "", apperror.Persistence("resolve api token", err)
	}
	return username, nil
}

// ResolveRefreshToken maps a refresh token to its owner. Expired tokens do
// not resolve — they look exactly like unknown tokens to the caller.
func (db *DB) ResolveRefreshToken(ctx context.Context, token string) (string, error) {
	var username string
	err := db.conn.QueryRowContext(ctx,
		`SELECT username FROM refresh_tokens WHERE token = ? AND expires_at > ?`,
		token, time.Now().Unix(),
	).Scan(&username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperror.NotFound("refresh token", token)
		}
		return "", apperror.Persistence("resolve refresh token", err)
	}
	return username, nil
}

// CreateTokenPair persists a freshly minted access+refresh pair, then purges
// the user's already-expired token rows.
//
// The two steps are two SEPARATE transactions on purpose: the insert must
// succeed atomically, while the cleanup is best-effort. A crash between them
// leaves the new pair valid and some expired rows behind — harmless until
// the next mint cleans them up. Merging the steps would make cleanup
// safety-critical, which it is not.
func (db *DB) CreateTokenPair(ctx context.Context, pair *model.TokenPair, username string) error {
	tx, err := db.conn.BeginTx(ctx, nil) // SQLite transactions are serializable
	if err != nil {
		return apperror.Persistence("create token pair", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO access_tokens (token, username, expires_at) VALUES (?, ?, ?)`,
		pair.AccessToken, username, pair.AccessExpiresAt.Unix(),
	); err != nil {
		return apperror.Persistence("create token pair: access", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO refresh_tokens (token, username, expires_at) VALUES (?, ?, ?)`,
		pair.RefreshToken, username, pair.RefreshExpiresAt.Unix(),
	); err != nil {
		return apperror.Persistence("create token pair: refresh", err)
	}

	if err := tx.Commit(); err != nil {
		return apperror.Persistence("create token pair: commit", err)
	}

	// the pair is committed and valid at this point; a failed purge only
	// leaves expired rows behind for the next mint to clean up
	if err := db.purgeExpiredTokens(ctx, username); err != nil {
		db.logger.Warn("expired token purge failed",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// purgeExpiredTokens removes the user's expired access and refresh rows in
// one transaction. Only rows already past expiry are touched, so this can
// interleave with a concurrent login without producing inconsistent state.
func (db *DB) purgeExpiredTokens(ctx context.Context, username string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperror.Persistence("purge expired tokens", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM access_tokens WHERE username = ? AND expires_at <= ?`, username, now,
	); err != nil {
		return apperror.Persistence("purge expired tokens: access", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE username = ? AND expires_at <= ?`, username, now,
	); err != nil {
		return apperror.Persistence("purge expired tokens: refresh", err)
	}

	if err := tx.Commit(); err != nil {
		return apperror.Persistence("purge expired tokens: commit", err)
	}
	return nil
}

// DeleteTokenPair deletes the presented access and refresh rows as two
// single-statement transactions and returns the SUMMED delete count. This
// layer does not interpret the sum — the orchestration layer decides that 2
// means a clean logout and anything less means a stale session.
func (db *DB) DeleteTokenPair(ctx context.Context, accessToken, refreshToken string) (int64, error) {
	var deleted int64

	res, err := db.conn.ExecContext(ctx, `DELETE FROM access_tokens WHERE token = ?`, accessToken)
	if err != nil {
		return 0, apperror.Persistence("delete token pair: access", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperror.Persistence("delete token pair: access count", err)
	}
	deleted += n

	res, err = db.conn.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = ?`, refreshToken)
	if err != nil {
		return 0, apperror.Persistence("delete token pair: refresh", err)
	}
	n, err = res.RowsAffected()
	if err != nil {
		return 0, apperror.Persistence("delete token pair: refresh count", err)
	}
	deleted += n

	return deleted, nil
}

// CreateApiToken inserts a new long-lived API token. No expiry — API tokens
// live until explicitly deleted.
func (db *DB) CreateApiToken(ctx context.Context, token *model.ApiToken) error {
	now := time.Now()
	token.CreatedAt = now
	token.LastUsedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO api_tokens (token, username, name, created_at, last_used_at)
		 VALUES (?, ?, ?, ?, ?)`,
		token.Token, token.Username, token.Name, token.CreatedAt, token.LastUsedAt,
	)
	if err != nil {
		return apperror.Persistence("create api token", err)
	}
	return nil
}

// ListApiTokens returns all of the user's API tokens, newest first.
func (db *DB) ListApiTokens(ctx context.Context, username string) ([]model.ApiToken, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT token, username, name, created_at, last_used_at
		 FROM api_tokens WHERE username = ? ORDER BY created_at DESC`,
		username,
	)
	if err != nil {
		return nil, apperror.Persistence("list api tokens", err)
	}
	defer rows.Close()

	tokens := []model.ApiToken{}
	for rows.Next() {
		var t model.ApiToken
		if err := rows.Scan(&t.Token, &t.Username, &t.Name, &t.CreatedAt, &t.LastUsedAt); err != nil {
			return nil, apperror.Persistence("list api tokens: scan", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Persistence("list api tokens: rows", err)
	}

	return tokens, nil
}

// DeleteApiToken deletes a token by value.
func (db *DB) DeleteApiToken(ctx context.Context, token string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM api_tokens WHERE token = ?`, token)
	if err != nil {
		return apperror.Persistence("delete api token", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperror.NotFound("api token", token)
	}
	return nil
}

// TouchApiToken bumps the token's last-used timestamp. Called on every
// successful ingestion.
func (db *DB) TouchApiToken(ctx context.Context, token string, usedAt time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE api_tokens SET last_used_at = ? WHERE token = ?`, usedAt, token,
	)
	if err != nil {
		return apperror.Persistence("touch api token", err)
	}
	return nil
}

// RenameApiToken updates the token's display name.
func (db *DB) RenameApiToken(ctx context.Context, token, name string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE api_tokens SET name = ? WHERE token = ?`, name, token,
	)
	if err != nil {
		return apperror.Persistence("rename api token", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperror.NotFound("api token", token)
	}
	return nil
}
