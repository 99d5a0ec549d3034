package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/pulse/internal/auth"
	"github.com/sakif/pulse/internal/handler"
	"github.com/sakif/pulse/internal/metrics"
	sqliteRepo "github.com/sakif/pulse/internal/repository/sqlite"
	"github.com/sakif/pulse/internal/service"
)

// stubRenderer stands in for the external badge image service.
type stubRenderer struct{}

func (stubRenderer) Render(_ context.Context, _, _ string) ([]byte, string, error) {
	return []byte("<svg>badge</svg>"), "image/svg+xml", nil
}

// testApp wires the real services over an in-memory database, with only the
// external badge renderer stubbed out.
type testApp struct {
	router *chi.Mux
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	passwords := auth.NewPasswordServiceWithCost(4)

	db, err := sqliteRepo.New(":memory:", passwords, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789")
	require.NoError(t, err)

	m := metrics.New()

	authService := service.NewAuthService(db, tokens, passwords, m, logger)
	heartbeatService := service.NewHeartbeatService(db, m, logger)
	statsService := service.NewStatsService(db, logger)
	projectService := service.NewProjectService(db, logger)
	badgeService := service.NewBadgeService(db, stubRenderer{}, m, logger)

	authHandler := handler.NewAuthHandler(authService, logger)
	heartbeatHandler := handler.NewHeartbeatHandler(heartbeatService, tokens, logger)
	statsHandler := handler.NewStatsHandler(statsService, logger)
	projectHandler := handler.NewProjectHandler(projectService, logger)
	badgeHandler := handler.NewBadgeHandler(badgeService, logger)

	router := chi.NewRouter()
	router.Get("/badge/{linkID}", badgeHandler.HandleBadgeImage)
	router.Get("/badge/{linkID}/activity", badgeHandler.HandleBadgeActivity)
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/refresh", authHandler.HandleRefresh)
			r.Post("/logout", authHandler.HandleLogout)
		})
		r.Route("/tokens", func(r chi.Router) {
			r.Post("/", authHandler.HandleCreateApiToken)
			r.Get("/", authHandler.HandleListApiTokens)
			r.Delete("/{token}", authHandler.HandleDeleteApiToken)
			r.Put("/{token}", authHandler.HandleRenameApiToken)
		})
		r.Post("/heartbeats/import", heartbeatHandler.HandleImport)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireApiToken())
			r.Post("/heartbeats", heartbeatHandler.HandleIngest)
			r.Get("/stats", statsHandler.HandleStats)
			r.Get("/timeline", statsHandler.HandleTimeline)
			r.Get("/leaderboards", statsHandler.HandleLeaderboards)
			r.Post("/durations", statsHandler.HandleDurations)
			r.Get("/today", statsHandler.HandleToday)
			r.Get("/projects", projectHandler.HandleListProjects)
			r.Get("/projects/{project}/stats", statsHandler.HandleProjectStats)
			r.Get("/projects/{project}/tags", projectHandler.HandleGetTags)
			r.Put("/projects/{project}/tags", projectHandler.HandleSetTags)
			r.Get("/tags", projectHandler.HandleListTags)
			r.Get("/tags/{tag}/stats", statsHandler.HandleTagStats)
			r.Post("/badges", badgeHandler.HandleCreateLink)
		})
	})

	return &testApp{router: router}
}

func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func jsonRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			panic(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// register creates a user and returns the access token and refresh cookie.
func (a *testApp) register(t *testing.T, username, password string) (string, *http.Cookie) {
	t.Helper()

	rr := a.do(jsonRequest(http.MethodPost, "/api/auth/register", map[string]string{
		"username": username,
		"password": password,
	}))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var session struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&session))

	var refreshCookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == "refresh_token" {
			refreshCookie = c
		}
	}
	require.NotNil(t, refreshCookie, "register must set the refresh cookie")

	return session.AccessToken, refreshCookie
}

// createApiToken mints an API token through the session-gated endpoint.
func (a *testApp) createApiToken(t *testing.T, accessToken, name string) string {
	t.Helper()

	req := jsonRequest(http.MethodPost, "/api/tokens", map[string]string{"name": name})
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rr := a.do(req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))
	require.NotEmpty(t, created.Token)
	return created.Token
}

func (a *testApp) sendHeartbeats(t *testing.T, apiToken, project string, times ...time.Time) {
	t.Helper()

	beats := make([]map[string]any, 0, len(times))
	for _, ts := range times {
		beats = append(beats, map[string]any{
			"project":   project,
			"language":  "Go",
			"entity":    "main.go",
			"time":      ts.Format(time.RFC3339),
			"userAgent": "wakatime/v1.73.0 (linux-5.15.0) go1.21.0 vscode/1.85.1 vscode-wakatime/24.0.2",
		})
	}

	req := jsonRequest(http.MethodPost, "/api/heartbeats", beats)
	req.Header.Set("Authorization", "Bearer "+apiToken)
	rr := a.do(req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

func TestRegisterAndLogin(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "alice", "hunter2")

	rr := app.do(jsonRequest(http.MethodPost, "/api/auth/login", map[string]string{
		"username": "alice",
		"password": "hunter2",
	}))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = app.do(jsonRequest(http.MethodPost, "/api/auth/login", map[string]string{
		"username": "alice",
		"password": "wrong",
	}))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "alice", "hunter2")

	rr := app.do(jsonRequest(http.MethodPost, "/api/auth/register", map[string]string{
		"username": "alice",
		"password": "other",
	}))
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestRefresh_CookieFlow(t *testing.T) {
	app := newTestApp(t)
	_, refreshCookie := app.register(t, "alice", "hunter2")

	req := jsonRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(refreshCookie)
	rr := app.do(req)
	assert.Equal(t, http.StatusOK, rr.Code)

	// no cookie at all
	rr = app.do(jsonRequest(http.MethodPost, "/api/auth/refresh", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogout(t *testing.T) {
	app := newTestApp(t)
	accessToken, refreshCookie := app.register(t, "alice", "hunter2")

	req := jsonRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.AddCookie(refreshCookie)
	rr := app.do(req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// the deleted refresh token no longer refreshes
	req = jsonRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(refreshCookie)
	rr = app.do(req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestIngest_RequiresApiToken(t *testing.T) {
	app := newTestApp(t)

	// no Authorization header
	rr := app.do(jsonRequest(http.MethodPost, "/api/heartbeats", []map[string]any{}))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// unknown token
	req := jsonRequest(http.MethodPost, "/api/heartbeats", []map[string]any{})
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rr = app.do(req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestIngestAndStats(t *testing.T) {
	app := newTestApp(t)
	accessToken, _ := app.register(t, "alice", "hunter2")
	apiToken := app.createApiToken(t, accessToken, "laptop")

	base := time.Now().Add(-time.Hour)
	app.sendHeartbeats(t, apiToken, "pulse", base, base.Add(time.Minute), base.Add(2*time.Minute))

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer "+apiToken)
	rr := app.do(req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var rows []struct {
		Project      string `json:"project"`
		TotalSeconds int64  `json:"totalSeconds"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "pulse", rows[0].Project)
	assert.Equal(t, int64(120), rows[0].TotalSeconds)
}

func TestToday(t *testing.T) {
	app := newTestApp(t)
	accessToken, _ := app.register(t, "alice", "hunter2")
	apiToken := app.createApiToken(t, accessToken, "laptop")

	req := httptest.NewRequest(http.MethodGet, "/api/today", nil)
	req.Header.Set("Authorization", "Bearer "+apiToken)
	rr := app.do(req)
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]int64
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, int64(0), body["totalSeconds"])
}

func TestTagAssignmentFlow(t *testing.T) {
	app := newTestApp(t)
	accessToken, _ := app.register(t, "alice", "hunter2")
	apiToken := app.createApiToken(t, accessToken, "laptop")
	app.sendHeartbeats(t, apiToken, "pulse", time.Now().Add(-time.Minute))

	req := jsonRequest(http.MethodPut, "/api/projects/pulse/tags", map[string][]string{"tags": {"work", "go"}})
	req.Header.Set("Authorization", "Bearer "+apiToken)
	rr := app.do(req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/projects/pulse/tags", nil)
	req.Header.Set("Authorization", "Bearer "+apiToken)
	rr = app.do(req)
	require.Equal(t, http.StatusOK, rr.Code)

	var tags []struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&tags))
	assert.Len(t, tags, 2)
}

func TestTagAssignment_ForeignProjectForbidden(t *testing.T) {
	app := newTestApp(t)
	aliceAccess, _ := app.register(t, "alice", "hunter2")
	aliceToken := app.createApiToken(t, aliceAccess, "laptop")
	app.sendHeartbeats(t, aliceToken, "secret", time.Now().Add(-time.Minute))

	bobAccess, _ := app.register(t, "bob", "hunter2")
	bobToken := app.createApiToken(t, bobAccess, "laptop")

	req := jsonRequest(http.MethodPut, "/api/projects/secret/tags", map[string][]string{"tags": {"mine"}})
	req.Header.Set("Authorization", "Bearer "+bobToken)
	rr := app.do(req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestBadgeFlow(t *testing.T) {
	app := newTestApp(t)
	accessToken, _ := app.register(t, "alice", "hunter2")
	apiToken := app.createApiToken(t, accessToken, "laptop")
	app.sendHeartbeats(t, apiToken, "pulse", time.Now().Add(-2*time.Minute), time.Now().Add(-time.Minute))

	req := jsonRequest(http.MethodPost, "/api/badges", map[string]string{"project": "pulse"})
	req.Header.Set("Authorization", "Bearer "+apiToken)
	rr := app.do(req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created struct {
		LinkID string `json:"linkId"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))
	require.NotEmpty(t, created.LinkID)

	// same project yields the same link
	req = jsonRequest(http.MethodPost, "/api/badges", map[string]string{"project": "pulse"})
	req.Header.Set("Authorization", "Bearer "+apiToken)
	rr = app.do(req)
	require.Equal(t, http.StatusCreated, rr.Code)
	var again struct {
		LinkID string `json:"linkId"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&again))
	assert.Equal(t, created.LinkID, again.LinkID)

	// activity is public, no credential needed
	rr = app.do(httptest.NewRequest(http.MethodGet, "/badge/"+created.LinkID+"/activity", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var activity struct {
		Project  string `json:"project"`
		Activity string `json:"activity"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&activity))
	assert.Equal(t, "pulse", activity.Project)
	assert.Equal(t, "1m", activity.Activity)

	// the image endpoint forwards the renderer's bytes
	rr = app.do(httptest.NewRequest(http.MethodGet, "/badge/"+created.LinkID, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/svg+xml", rr.Header().Get("Content-Type"))
	assert.Equal(t, "<svg>badge</svg>", rr.Body.String())

	// unknown link id
	rr = app.do(httptest.NewRequest(http.MethodGet, "/badge/nope/activity", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestApiTokenManagement(t *testing.T) {
	app := newTestApp(t)
	accessToken, _ := app.register(t, "alice", "hunter2")
	apiToken := app.createApiToken(t, accessToken, "laptop")

	// rename
	req := jsonRequest(http.MethodPut, "/api/tokens/"+apiToken, map[string]string{"name": "desktop"})
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rr := app.do(req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// list shows the renamed token
	req = httptest.NewRequest(http.MethodGet, "/api/tokens", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rr = app.do(req)
	require.Equal(t, http.StatusOK, rr.Code)
	var tokens []struct {
		Token string `json:"token"`
		Name  string `json:"name"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&tokens))
	require.Len(t, tokens, 1)
	assert.Equal(t, "desktop", tokens[0].Name)

	// delete, then the token stops resolving
	req = httptest.NewRequest(http.MethodDelete, "/api/tokens/"+apiToken, nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rr = app.do(req)
	require.Equal(t, http.StatusNoContent, rr.Code)

	req = jsonRequest(http.MethodPost, "/api/heartbeats", []map[string]any{})
	req.Header.Set("Authorization", "Bearer "+apiToken)
	rr = app.do(req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestDurations_InputOrder(t *testing.T) {
	app := newTestApp(t)
	accessToken, _ := app.register(t, "alice", "hunter2")
	apiToken := app.createApiToken(t, accessToken, "laptop")

	base := time.Now().Add(-3 * time.Hour)
	app.sendHeartbeats(t, apiToken, "first", base, base.Add(time.Minute))
	app.sendHeartbeats(t, apiToken, "second", base.Add(time.Hour), base.Add(time.Hour+2*time.Minute))

	ranges := []map[string]any{
		{"project": "first", "start": base.Add(-time.Minute).Format(time.RFC3339), "end": base.Add(30 * time.Minute).Format(time.RFC3339)},
		{"project": "second", "start": base.Add(30 * time.Minute).Format(time.RFC3339), "end": base.Add(2 * time.Hour).Format(time.RFC3339)},
	}

	req := jsonRequest(http.MethodPost, "/api/durations", ranges)
	req.Header.Set("Authorization", "Bearer "+apiToken)
	rr := app.do(req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body struct {
		TotalSeconds []int64 `json:"totalSeconds"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.Equal(t, []int64{60, 120}, body.TotalSeconds)
}

func TestStats_InvalidWindow(t *testing.T) {
	app := newTestApp(t)
	accessToken, _ := app.register(t, "alice", "hunter2")
	apiToken := app.createApiToken(t, accessToken, "laptop")

	target := fmt.Sprintf("/api/stats?start=%s&end=%s",
		time.Now().Format(time.RFC3339),
		time.Now().Add(-time.Hour).Format(time.RFC3339),
	)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Authorization", "Bearer "+apiToken)
	rr := app.do(req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
