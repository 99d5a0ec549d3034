// Package service contains the orchestration layer: the request-level use
// cases sitting between the HTTP handlers and the storage contract.
//
// Every gated use case has the same two-phase shape: resolve the caller's
// identity from the presented credential, then perform the operation —
// optionally preceded by an ownership check. Identity and ownership are
// evaluated fresh on every call; nothing is cached across requests.
package service

import (
	"context"
	"errors"

	"github.com/sakif/pulse/internal/apperror"
	"github.com/sakif/pulse/internal/repository"
)

// resolveApiToken maps an API token to its owner, converting a miss into
// the UnknownApiToken kind. Persistence failures pass through unchanged.
func resolveApiToken(ctx context.Context, db repository.Db, token string) (string, error) {
	username, err := db.ResolveApiToken(ctx, token)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", apperror.UnknownApiToken()
		}
		return "", err
	}
	return username, nil
}
