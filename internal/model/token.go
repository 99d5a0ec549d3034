package model

import "time"

// ApiToken is the long-lived opaque credential used by data-sending clients.
//
// Many tokens may exist per user — one per editor/machine is typical. There
// is no expiry; tokens live until explicitly deleted. LastUsedAt is bumped on
// every successful ingestion so users can spot stale tokens.
type ApiToken struct {
	Token      string    `json:"token"      db:"token"`
	Username   string    `json:"username"   db:"username"`
	Name       string    `json:"name"       db:"name"` // display name, user-editable
	CreatedAt  time.Time `json:"createdAt"  db:"created_at"`
	LastUsedAt time.Time `json:"lastUsedAt" db:"last_used_at"`
}

// TokenPair is a browser session: a short-lived access token and a
// longer-lived refresh token, issued together and deleted together.
//
// Both halves are persisted with their expiry so that logout can delete the
// exact rows that were minted and count what it removed.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
