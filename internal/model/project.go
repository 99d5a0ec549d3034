package model

import "time"

// Project is identified by (owner, name). Projects are auto-created the
// first time a heartbeat references them and are never deleted by this
// service.
type Project struct {
	ID        string    `json:"id"        db:"id"`
	Owner     string    `json:"owner"     db:"owner"`
	Name      string    `json:"name"      db:"name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Tag is a user-defined label, identified by (owner, name), attachable to
// any number of that owner's projects. Assigning tags to a project replaces
// the full set — there is no incremental add/remove.
type Tag struct {
	ID    string `json:"id"    db:"id"`
	Owner string `json:"owner" db:"owner"`
	Name  string `json:"name"  db:"name"`
}
