package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/pulse/internal/apperror"
	"github.com/sakif/pulse/internal/auth"
	"github.com/sakif/pulse/internal/model"
	"github.com/sakif/pulse/internal/service"
)

// defaultWindow is how far back queries reach when no start is given.
const defaultWindow = 30 * 24 * time.Hour

// StatsHandler exposes the aggregation read paths.
type StatsHandler struct {
	svc    *service.StatsService
	logger *slog.Logger
}

func NewStatsHandler(svc *service.StatsService, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{svc: svc, logger: logger}
}

// parseWindow reads the start, end and cutoff query parameters. Times are
// RFC 3339; missing values default to the trailing 30 days, cutoff 0 lets
// the service apply its default.
func parseWindow(r *http.Request) (start, end time.Time, cutoff int, err error) {
	end = time.Now()
	if v := r.URL.Query().Get("end"); v != "" {
		end, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return start, end, 0, apperror.ValidationFailed("end", "end must be RFC 3339")
		}
	}

	start = end.Add(-defaultWindow)
	if v := r.URL.Query().Get("start"); v != "" {
		start, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return start, end, 0, apperror.ValidationFailed("start", "start must be RFC 3339")
		}
	}

	if !start.Before(end) {
		return start, end, 0, apperror.ValidationFailed("start", "start must be before end")
	}

	if v := r.URL.Query().Get("cutoff"); v != "" {
		cutoff, err = strconv.Atoi(v)
		if err != nil {
			return start, end, 0, apperror.ValidationFailed("cutoff", "cutoff must be an integer")
		}
	}

	return start, end, cutoff, nil
}

func apiToken(r *http.Request) string {
	token, _ := auth.ApiTokenFromContext(r.Context())
	return token
}

// HandleStats returns per-(day, project, language) totals for the caller.
//
// HTTP: GET /api/stats?start=&end=&cutoff=&tag=
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	start, end, cutoff, err := parseWindow(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rows, err := h.svc.Stats(r.Context(), apiToken(r), start, end, cutoff, r.URL.Query().Get("tag"))
	if err != nil {
		writeError(w, err)
		return
	}

	if rows == nil {
		rows = []model.StatRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// HandleTimeline returns the caller's contiguous activity spans.
//
// HTTP: GET /api/timeline?start=&end=&cutoff=
func (h *StatsHandler) HandleTimeline(w http.ResponseWriter, r *http.Request) {
	start, end, cutoff, err := parseWindow(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rows, err := h.svc.Timeline(r.Context(), apiToken(r), start, end, cutoff)
	if err != nil {
		writeError(w, err)
		return
	}

	if rows == nil {
		rows = []model.TimelineRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// HandleProjectStats returns per-entity totals for one of the caller's
// projects.
//
// HTTP: GET /api/projects/{project}/stats?start=&end=&cutoff=
func (h *StatsHandler) HandleProjectStats(w http.ResponseWriter, r *http.Request) {
	start, end, cutoff, err := parseWindow(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rows, err := h.svc.ProjectStats(r.Context(), apiToken(r), chi.URLParam(r, "project"), start, end, cutoff)
	if err != nil {
		writeError(w, err)
		return
	}

	if rows == nil {
		rows = []model.ProjectStatRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// HandleTagStats returns the caller's totals restricted to one tag.
//
// HTTP: GET /api/tags/{tag}/stats?start=&end=&cutoff=
func (h *StatsHandler) HandleTagStats(w http.ResponseWriter, r *http.Request) {
	start, end, cutoff, err := parseWindow(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rows, err := h.svc.TagStats(r.Context(), apiToken(r), chi.URLParam(r, "tag"), start, end, cutoff)
	if err != nil {
		writeError(w, err)
		return
	}

	if rows == nil {
		rows = []model.StatRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// HandleLeaderboards returns the site-wide ranking for the window.
//
// HTTP: GET /api/leaderboards?start=&end=&cutoff=
func (h *StatsHandler) HandleLeaderboards(w http.ResponseWriter, r *http.Request) {
	start, end, cutoff, err := parseWindow(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rows, err := h.svc.Leaderboards(r.Context(), apiToken(r), start, end, cutoff)
	if err != nil {
		writeError(w, err)
		return
	}

	if rows == nil {
		rows = []model.LeaderboardRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

type durationsResponse struct {
	TotalSeconds []int64 `json:"totalSeconds"`
}

// HandleDurations answers one total per posted range, in input order.
//
// HTTP: POST /api/durations
func (h *StatsHandler) HandleDurations(w http.ResponseWriter, r *http.Request) {
	var ranges []model.TimeRange
	if err := json.NewDecoder(r.Body).Decode(&ranges); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid range list"))
		return
	}

	durations, err := h.svc.TotalTimeBetween(r.Context(), apiToken(r), ranges)
	if err != nil {
		writeError(w, err)
		return
	}

	out := durationsResponse{TotalSeconds: make([]int64, len(durations))}
	for i, d := range durations {
		out.TotalSeconds[i] = int64(d.Seconds())
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleToday returns the caller's activity since local midnight.
//
// HTTP: GET /api/today
func (h *StatsHandler) HandleToday(w http.ResponseWriter, r *http.Request) {
	total, err := h.svc.TotalTimeToday(r.Context(), apiToken(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"totalSeconds": int64(total.Seconds())})
}
