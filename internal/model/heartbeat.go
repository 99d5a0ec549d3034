package model

import "time"

// Heartbeat is a single timestamped activity event reported by a client.
//
// Sender, Editor, Plugin and Platform are ALWAYS overwritten during
// ingestion — Sender from the resolved token owner, the other three from the
// request's user-agent string. Whatever the client put in those fields is
// discarded; clients cannot report activity as someone else.
type Heartbeat struct {
	ID         string    `json:"id"        db:"id"`
	Sender     string    `json:"sender"    db:"sender"`
	Project    string    `json:"project"   db:"project"`
	Language   string    `json:"language"  db:"language"`
	Entity     string    `json:"entity"    db:"entity"` // file path or domain
	Branch     string    `json:"branch"    db:"branch"`
	Editor     string    `json:"editor"    db:"editor"`
	Plugin     string    `json:"plugin"    db:"plugin"`
	Platform   string    `json:"platform"  db:"platform"`
	TimeSent   time.Time `json:"time"      db:"time_sent"`
	UserAgent  string    `json:"userAgent" db:"-"` // transport-level, not persisted
	IsWrite    bool      `json:"isWrite"   db:"is_write"`
	Lines      int       `json:"lines"     db:"lines"`
	CursorPos  int       `json:"cursorpos" db:"cursorpos"`
	LineNumber int       `json:"lineno"    db:"lineno"`
	Category   string    `json:"category"  db:"category"`
}
