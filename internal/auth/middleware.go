package auth

import (
	"context"
	"net/http"
	"strings"
)

// contextKey is an unexported type for context keys in this package, so no
// other package can read or shadow the values we store.
type contextKey string

const apiTokenKey contextKey = "apiToken"

// RequireApiToken extracts the opaque API token from the Authorization
// header and stores it in the request context. It does NOT resolve the
// token — the service layer does that fresh on every use case, so a revoked
// token stops working immediately.
//
// Accepted forms, matching what editor plugins send:
//
//	Authorization: Bearer <token>
//	Authorization: Basic <base64(token)>   (handled by the handler layer)
//
// Requests with no Authorization header are rejected with 401 before
// reaching a handler.
func RequireApiToken() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractBearer(r)
			if token == "" {
				http.Error(w, `{"error":"unauthorized","message":"api token required"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), apiTokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ExtractBearer returns the credential portion of a Bearer Authorization
// header, or "" if the header is absent or malformed.
func ExtractBearer(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	scheme, credential, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(credential)
}

// ApiTokenFromContext returns the raw API token stored by RequireApiToken.
// The second return is false if the middleware did not run.
func ApiTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(apiTokenKey).(string)
	return token, ok
}
