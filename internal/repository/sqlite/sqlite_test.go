package sqlite

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/sakif/pulse/internal/auth"
	"github.com/sakif/pulse/internal/model"
)

// newTestDB returns a DB backed by an in-memory database that is torn down
// with the test.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	// bcrypt cost 4 keeps credential tests fast
	db, err := New(":memory:", auth.NewPasswordServiceWithCost(4), logger)
	if err != nil {
		t.Fatalf("New(:memory:) error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser registers a user with the given password.
func createTestUser(t *testing.T, db *DB, username, password string) *model.User {
	t.Helper()

	hash, err := db.passwords.Hash(password)
	if err != nil {
		t.Fatalf("hashing test password: %v", err)
	}
	user := &model.User{Username: username, PasswordHash: hash}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("creating test user %s: %v", username, err)
	}
	return user
}

// createTestApiToken mints and stores an API token for the user.
func createTestApiToken(t *testing.T, db *DB, username string) *model.ApiToken {
	t.Helper()

	value, err := auth.NewApiToken()
	if err != nil {
		t.Fatalf("generating test api token: %v", err)
	}
	token := &model.ApiToken{Token: value, Username: username, Name: "test token"}
	if err := db.CreateApiToken(context.Background(), token); err != nil {
		t.Fatalf("creating test api token: %v", err)
	}
	return token
}

// insertTestHeartbeats writes heartbeats for (sender, project) at the given
// offsets from base.
func insertTestHeartbeats(t *testing.T, db *DB, sender, project string, base time.Time, offsets ...time.Duration) {
	t.Helper()

	beats := make([]model.Heartbeat, 0, len(offsets))
	for _, off := range offsets {
		beats = append(beats, model.Heartbeat{
			Sender:   sender,
			Project:  project,
			Language: "Go",
			Entity:   "main.go",
			Editor:   "vscode",
			Plugin:   "vscode-pulse/1.0.0",
			Platform: "linux",
			TimeSent: base.Add(off),
		})
	}
	if _, err := db.InsertHeartbeats(context.Background(), beats); err != nil {
		t.Fatalf("inserting test heartbeats: %v", err)
	}
}
