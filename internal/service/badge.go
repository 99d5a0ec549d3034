package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/pulse/internal/metrics"
	"github.com/sakif/pulse/internal/repository"
)

// ActivityWindowDays is the trailing window a badge reports over.
const ActivityWindowDays = 30

// Renderer turns a label/message pair into badge image bytes.
type Renderer interface {
	Render(ctx context.Context, label, message string) ([]byte, string, error)
}

// BadgeService creates shareable badge links and serves their activity to
// unauthenticated callers.
type BadgeService struct {
	db       repository.Db
	renderer Renderer
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewBadgeService(db repository.Db, renderer Renderer, m *metrics.Metrics, logger *slog.Logger) *BadgeService {
	return &BadgeService{db: db, renderer: renderer, metrics: m, logger: logger}
}

// CreateLink returns a public link id for one of the caller's projects.
// Idempotent: asking twice for the same project yields the same id.
func (s *BadgeService) CreateLink(ctx context.Context, apiToken, project string) (string, error) {
	username, err := resolveApiToken(ctx, s.db, apiToken)
	if err != nil {
		return "", err
	}
	return s.db.CreateBadgeLink(ctx, username, project)
}

// Activity resolves a public link id to a display label and the formatted
// activity total over the trailing window. No credential is required — the
// link id is the capability.
func (s *BadgeService) Activity(ctx context.Context, linkID string) (label, value string, err error) {
	link, err := s.db.GetBadgeLinkInfo(ctx, linkID)
	if err != nil {
		return "", "", err
	}

	total, err := s.db.GetTotalActivityTime(ctx, linkID, ActivityWindowDays)
	if err != nil {
		return "", "", err
	}

	return link.Project, FormatDuration(total), nil
}

// RenderBadge fetches the badge image for a link id from the external
// renderer and returns the bytes unmodified, along with their content type.
func (s *BadgeService) RenderBadge(ctx context.Context, linkID string) ([]byte, string, error) {
	label, value, err := s.Activity(ctx, linkID)
	if err != nil {
		return nil, "", err
	}

	img, contentType, err := s.renderer.Render(ctx, label, value)
	if err != nil {
		return nil, "", err
	}

	s.metrics.BadgesServed.Inc()
	s.logger.Debug("badge served", slog.String("link_id", linkID))
	return img, contentType, nil
}

// FormatDuration renders a duration the way badges display it: "3h 24m",
// "45m", or "0m" for no activity. Seconds are truncated.
func FormatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}
