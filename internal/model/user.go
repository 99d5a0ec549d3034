// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// The username is the identity key for every other entity (tokens, projects,
// tags, heartbeats all hang off it). PasswordHash is a self-contained bcrypt
// string — salt and cost are embedded, so no separate salt column exists.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Username     string    `json:"username"  db:"username"`
	PasswordHash string    `json:"-"         db:"password_hash"` // never serialized
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}
