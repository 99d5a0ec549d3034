package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/pulse/internal/apperror"
	"github.com/sakif/pulse/internal/service"
)

// BadgeHandler exposes badge link creation (gated) and the public badge
// endpoints (the link id is the only capability required).
type BadgeHandler struct {
	svc    *service.BadgeService
	logger *slog.Logger
}

func NewBadgeHandler(svc *service.BadgeService, logger *slog.Logger) *BadgeHandler {
	return &BadgeHandler{svc: svc, logger: logger}
}

type createBadgeRequest struct {
	Project string `json:"project"`
}

type badgeLinkResponse struct {
	LinkID string `json:"linkId"`
}

// HandleCreateLink mints (or returns the existing) badge link for one of the
// caller's projects.
//
// HTTP: POST /api/badges
// Auth: API token (Bearer)
func (h *BadgeHandler) HandleCreateLink(w http.ResponseWriter, r *http.Request) {
	var req createBadgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}
	if req.Project == "" {
		writeError(w, apperror.ValidationFailed("project", "project is required"))
		return
	}

	linkID, err := h.svc.CreateLink(r.Context(), apiToken(r), req.Project)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, badgeLinkResponse{LinkID: linkID})
}

// HandleBadgeImage serves the badge image for a public link id. The bytes
// come from the external renderer and are forwarded unmodified.
//
// HTTP: GET /badge/{linkID}
// Auth: none
func (h *BadgeHandler) HandleBadgeImage(w http.ResponseWriter, r *http.Request) {
	img, contentType, err := h.svc.RenderBadge(r.Context(), chi.URLParam(r, "linkID"))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache, max-age=0")
	if _, err := w.Write(img); err != nil {
		h.logger.Error("failed to write badge image", slog.String("error", err.Error()))
	}
}

type badgeActivityResponse struct {
	Project  string `json:"project"`
	Activity string `json:"activity"`
}

// HandleBadgeActivity returns the badge's label and formatted activity as
// JSON, for clients that render their own widget.
//
// HTTP: GET /badge/{linkID}/activity
// Auth: none
func (h *BadgeHandler) HandleBadgeActivity(w http.ResponseWriter, r *http.Request) {
	label, value, err := h.svc.Activity(r.Context(), chi.URLParam(r, "linkID"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, badgeActivityResponse{Project: label, Activity: value})
}
