package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/pulse/internal/apperror"
	"github.com/sakif/pulse/internal/auth"
	"github.com/sakif/pulse/internal/model"
	"github.com/sakif/pulse/internal/service"
)

const refreshCookieName = "refresh_token"

// AuthHandler exposes registration, session and API-token management.
//
// Session shape: the access token travels as a Bearer header, the refresh
// token lives in an HttpOnly cookie the browser cannot read. Logout needs
// both halves so storage can count exactly what it deleted.
type AuthHandler struct {
	svc    *service.AuthService
	logger *slog.Logger
}

func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// sessionResponse is what the browser gets back; the refresh token goes in
// the cookie, never the body.
type sessionResponse struct {
	AccessToken     string    `json:"accessToken"`
	AccessExpiresAt time.Time `json:"accessExpiresAt"`
}

func sessionFromPair(pair *model.TokenPair) sessionResponse {
	return sessionResponse{
		AccessToken:     pair.AccessToken,
		AccessExpiresAt: pair.AccessExpiresAt,
	}
}

func setRefreshCookie(w http.ResponseWriter, pair *model.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    pair.RefreshToken,
		Path:     "/",
		MaxAge:   int(auth.RefreshTokenTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func refreshTokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// HandleRegister creates a user and logs them straight in.
//
// HTTP: POST /api/auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	pair, err := h.svc.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	setRefreshCookie(w, pair)
	writeJSON(w, http.StatusCreated, sessionFromPair(pair))
}

// HandleLogin verifies credentials and starts a session.
//
// HTTP: POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	pair, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	setRefreshCookie(w, pair)
	writeJSON(w, http.StatusOK, sessionFromPair(pair))
}

// HandleRefresh trades the refresh cookie for a fresh pair.
//
// HTTP: POST /api/auth/refresh
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	pair, err := h.svc.Refresh(r.Context(), refreshTokenFromCookie(r))
	if err != nil {
		writeError(w, err)
		return
	}

	setRefreshCookie(w, pair)
	writeJSON(w, http.StatusOK, sessionFromPair(pair))
}

// HandleLogout deletes the presented pair and clears the cookie. The cookie
// is cleared even when the service rejects the pair — the browser's session
// is over either way.
//
// HTTP: POST /api/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Logout(r.Context(), auth.ExtractBearer(r), refreshTokenFromCookie(r))
	clearRefreshCookie(w)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

type createTokenRequest struct {
	Name string `json:"name"`
}

// HandleCreateApiToken mints a new API token for the session user.
//
// HTTP: POST /api/tokens
func (h *AuthHandler) HandleCreateApiToken(w http.ResponseWriter, r *http.Request) {
	var req createTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	token, err := h.svc.CreateApiToken(r.Context(), auth.ExtractBearer(r), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, token)
}

// HandleListApiTokens lists the session user's API tokens.
//
// HTTP: GET /api/tokens
func (h *AuthHandler) HandleListApiTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.svc.ListApiTokens(r.Context(), auth.ExtractBearer(r))
	if err != nil {
		writeError(w, err)
		return
	}

	if tokens == nil {
		tokens = []model.ApiToken{}
	}
	writeJSON(w, http.StatusOK, tokens)
}

// HandleDeleteApiToken deletes an API token by value.
//
// HTTP: DELETE /api/tokens/{token}
func (h *AuthHandler) HandleDeleteApiToken(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteApiToken(r.Context(), auth.ExtractBearer(r), chi.URLParam(r, "token")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleRenameApiToken updates an API token's display name.
//
// HTTP: PUT /api/tokens/{token}
func (h *AuthHandler) HandleRenameApiToken(w http.ResponseWriter, r *http.Request) {
	var req createTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	if err := h.svc.RenameApiToken(r.Context(), auth.ExtractBearer(r), chi.URLParam(r, "token"), req.Name); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "token renamed"})
}
