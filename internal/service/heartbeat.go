package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sakif/pulse/internal/metrics"
	"github.com/sakif/pulse/internal/model"
	"github.com/sakif/pulse/internal/repository"
	"github.com/sakif/pulse/internal/useragent"
)

// HeartbeatService handles the ingestion write path.
type HeartbeatService struct {
	db      repository.Db
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewHeartbeatService(db repository.Db, m *metrics.Metrics, logger *slog.Logger) *HeartbeatService {
	return &HeartbeatService{db: db, metrics: m, logger: logger}
}

// Ingest persists a batch of heartbeats on behalf of an API token.
//
// Order matters: the token is resolved first (fail closed — nothing is
// persisted for an unknown token), its last-used timestamp is bumped, and
// only then is the batch enriched and written. Sender, Editor, Plugin and
// Platform are overwritten on every heartbeat from the resolved username
// and the heartbeat's user-agent string; client-supplied values for those
// fields are never trusted.
func (s *HeartbeatService) Ingest(ctx context.Context, apiToken string, beats []model.Heartbeat) ([]string, error) {
	username, err := resolveApiToken(ctx, s.db, apiToken)
	if err != nil {
		return nil, err
	}

	if err := s.db.TouchApiToken(ctx, apiToken, time.Now()); err != nil {
		return nil, err
	}

	enrich(beats, username)

	ids, err := s.db.InsertHeartbeats(ctx, beats)
	if err != nil {
		return nil, err
	}

	s.metrics.HeartbeatsIngested.Add(float64(len(ids)))
	s.logger.Debug("heartbeats ingested",
		slog.String("username", username),
		slog.Int("count", len(ids)),
	)

	return ids, nil
}

// Import persists a bulk batch for a directly supplied username, skipping
// token resolution. Editor, Plugin and Platform are still overwritten from
// each heartbeat's user-agent; only the sender comes from the caller.
func (s *HeartbeatService) Import(ctx context.Context, username string, beats []model.Heartbeat) ([]string, error) {
	enrich(beats, username)

	ids, err := s.db.InsertHeartbeats(ctx, beats)
	if err != nil {
		return nil, err
	}

	s.metrics.HeartbeatsIngested.Add(float64(len(ids)))
	s.logger.Debug("heartbeats imported",
		slog.String("username", username),
		slog.Int("count", len(ids)),
	)

	return ids, nil
}

// enrich overwrites the trust-sensitive fields on every heartbeat in the
// batch, regardless of what the client supplied.
func enrich(beats []model.Heartbeat, username string) {
	for i := range beats {
		info := useragent.Parse(beats[i].UserAgent)
		beats[i].Sender = username
		beats[i].Editor = info.Editor
		beats[i].Plugin = info.Plugin
		beats[i].Platform = info.Platform
	}
}
