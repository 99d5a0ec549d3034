package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// RefreshTokenTTL is the lifetime of a refresh token. Refreshing mints a new
// pair without revoking the old one, so an unexpired refresh token stays
// usable until it ages out or the session is logged out.
const RefreshTokenTTL = 7 * 24 * time.Hour

// apiTokenBytes and refreshTokenBytes size the random secrets; hex-encoded
// they come out at twice the length.
const (
	apiTokenBytes     = 24
	refreshTokenBytes = 32
)

// NewApiToken returns a long-lived opaque API token for data-sending
// clients. Tokens carry no structure — identity comes from the DB lookup.
func NewApiToken() (string, error) {
	return randomHex(apiTokenBytes)
}

// NewRefreshToken returns an opaque refresh token.
func NewRefreshToken() (string, error) {
	return randomHex(refreshTokenBytes)
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generating random token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
