package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/pulse/internal/apperror"
	"github.com/sakif/pulse/internal/auth"
	"github.com/sakif/pulse/internal/model"
)

// CreateUser inserts a new user row. The username UNIQUE constraint is the
// source of truth for taken names; a constraint violation surfaces as a
// persistence failure, which the service layer pre-empts with UserExists.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at)
		 VALUES (?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.PasswordHash,
		user.CreatedAt,
	)
	if err != nil {
		return apperror.Persistence("create user", err)
	}

	return nil
}

// UserExists reports whether a username is taken.
func (db *DB) UserExists(ctx context.Context, username string) (bool, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE username = ?`, username,
	).Scan(&count)
	if err != nil {
		return false, apperror.Persistence("user exists", err)
	}
	return count > 0, nil
}

// VerifyCredentials checks a username/password pair and returns the
// username on success. An unknown user and a wrong password are
// indistinguishable to the caller (both ErrNotFound); a crypto-level
// verification failure is logged here and absorbed the same way, so no
// cryptographic detail leaks upward.
func (db *DB) VerifyCredentials(ctx context.Context, username, password string) (string, error) {
	var hash string
	err := db.conn.QueryRowContext(ctx,
		`SELECT password_hash FROM users WHERE username = ?`, username,
	).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperror.NotFound("user", username)
		}
		return "", apperror.Persistence("verify credentials", err)
	}

	if err := db.passwords.Verify(hash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			db.logger.Error("password verification failed at the crypto level",
				slog.String("username", username),
				slog.String("error", err.Error()),
			)
		}
		return "", apperror.NotFound("user", username)
	}

	return username, nil
}
