package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/pulse/internal/apperror"
	"github.com/sakif/pulse/internal/model"
	"github.com/sakif/pulse/internal/service"
)

// ProjectHandler exposes project listing and tag assignment.
type ProjectHandler struct {
	svc    *service.ProjectService
	logger *slog.Logger
}

func NewProjectHandler(svc *service.ProjectService, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{svc: svc, logger: logger}
}

// HandleListProjects lists the caller's projects.
//
// HTTP: GET /api/projects
func (h *ProjectHandler) HandleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.svc.ListProjects(r.Context(), apiToken(r))
	if err != nil {
		writeError(w, err)
		return
	}

	if projects == nil {
		projects = []model.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

// HandleListTags lists every distinct tag the caller has assigned.
//
// HTTP: GET /api/tags
func (h *ProjectHandler) HandleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.ListTags(r.Context(), apiToken(r))
	if err != nil {
		writeError(w, err)
		return
	}

	if tags == nil {
		tags = []model.Tag{}
	}
	writeJSON(w, http.StatusOK, tags)
}

// HandleGetTags lists the tags on one of the caller's projects.
//
// HTTP: GET /api/projects/{project}/tags
func (h *ProjectHandler) HandleGetTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.GetTags(r.Context(), apiToken(r), chi.URLParam(r, "project"))
	if err != nil {
		writeError(w, err)
		return
	}

	if tags == nil {
		tags = []model.Tag{}
	}
	writeJSON(w, http.StatusOK, tags)
}

type setTagsRequest struct {
	Tags []string `json:"tags"`
}

// HandleSetTags replaces the full tag set of one of the caller's projects.
// An empty list clears all tags.
//
// HTTP: PUT /api/projects/{project}/tags
func (h *ProjectHandler) HandleSetTags(w http.ResponseWriter, r *http.Request) {
	var req setTagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	if err := h.svc.SetTags(r.Context(), apiToken(r), chi.URLParam(r, "project"), req.Tags); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "tags replaced"})
}
