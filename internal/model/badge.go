package model

import "time"

// BadgeLink maps a public identifier to a fixed (owner, project) pair so an
// activity badge can be embedded in a README without exposing any API token.
// Lookups through the link are unauthenticated by design.
type BadgeLink struct {
	LinkID    string    `json:"linkId"    db:"link_id"` // UUID
	Username  string    `json:"username"  db:"username"`
	Project   string    `json:"project"   db:"project"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
