package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/pulse/internal/apperror"
	"github.com/sakif/pulse/internal/auth"
	"github.com/sakif/pulse/internal/model"
	"github.com/sakif/pulse/internal/service"
)

// HeartbeatHandler exposes the ingestion write path.
type HeartbeatHandler struct {
	svc    *service.HeartbeatService
	tokens *auth.TokenService
	logger *slog.Logger
}

func NewHeartbeatHandler(svc *service.HeartbeatService, tokens *auth.TokenService, logger *slog.Logger) *HeartbeatHandler {
	return &HeartbeatHandler{svc: svc, tokens: tokens, logger: logger}
}

type heartbeatIDs struct {
	IDs []string `json:"ids"`
}

// HandleIngest accepts a batch of heartbeats from an editor plugin.
//
// HTTP: POST /api/heartbeats
// Auth: API token (Bearer)
func (h *HeartbeatHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.ApiTokenFromContext(r.Context())
	if !ok {
		writeError(w, apperror.UnknownApiToken())
		return
	}

	var beats []model.Heartbeat
	if err := json.NewDecoder(r.Body).Decode(&beats); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid heartbeat batch"))
		return
	}

	ids, err := h.svc.Ingest(r.Context(), token, beats)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, heartbeatIDs{IDs: ids})
}

// HandleImport accepts a bulk heartbeat batch for the session user, e.g. an
// export from another tracking service. Gated by the session access token
// rather than an API token; the batch is attributed to the session's user.
//
// HTTP: POST /api/heartbeats/import
// Auth: access token (Bearer)
func (h *HeartbeatHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	username, err := h.tokens.Validate(auth.ExtractBearer(r))
	if err != nil {
		writeError(w, apperror.InvalidCredentials())
		return
	}

	var beats []model.Heartbeat
	if err := json.NewDecoder(r.Body).Decode(&beats); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid heartbeat batch"))
		return
	}

	ids, err := h.svc.Import(r.Context(), username, beats)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, heartbeatIDs{IDs: ids})
}
