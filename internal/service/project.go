package service

import (
	"context"
	"log/slog"

	"github.com/sakif/pulse/internal/apperror"
	"github.com/sakif/pulse/internal/model"
	"github.com/sakif/pulse/internal/repository"
)

// ProjectService handles project and tag reads plus the tag-assignment
// write path.
type ProjectService struct {
	db     repository.Db
	logger *slog.Logger
}

func NewProjectService(db repository.Db, logger *slog.Logger) *ProjectService {
	return &ProjectService{db: db, logger: logger}
}

// SetTags replaces the full tag set of one of the caller's projects. The
// new set fully supersedes the old one; passing an empty slice clears all
// tags.
func (s *ProjectService) SetTags(ctx context.Context, apiToken, project string, tags []string) error {
	username, err := resolveApiToken(ctx, s.db, apiToken)
	if err != nil {
		return err
	}

	owns, err := s.db.CheckProjectOwner(ctx, username, project)
	if err != nil {
		return err
	}
	if !owns {
		return apperror.InvalidRelation(project)
	}

	if err := s.db.SetTags(ctx, username, project, tags); err != nil {
		return err
	}

	s.logger.Debug("project tags replaced",
		slog.String("username", username),
		slog.String("project", project),
		slog.Int("count", len(tags)),
	)
	return nil
}

// GetTags returns the tags of one of the caller's projects.
func (s *ProjectService) GetTags(ctx context.Context, apiToken, project string) ([]model.Tag, error) {
	username, err := resolveApiToken(ctx, s.db, apiToken)
	if err != nil {
		return nil, err
	}

	owns, err := s.db.CheckProjectOwner(ctx, username, project)
	if err != nil {
		return nil, err
	}
	if !owns {
		return nil, apperror.InvalidRelation(project)
	}

	return s.db.GetTags(ctx, username, project)
}

// ListTags returns every distinct tag the caller has assigned anywhere.
func (s *ProjectService) ListTags(ctx context.Context, apiToken string) ([]model.Tag, error) {
	username, err := resolveApiToken(ctx, s.db, apiToken)
	if err != nil {
		return nil, err
	}
	return s.db.GetAllTags(ctx, username)
}

// ListProjects returns the caller's projects.
func (s *ProjectService) ListProjects(ctx context.Context, apiToken string) ([]model.Project, error) {
	username, err := resolveApiToken(ctx, s.db, apiToken)
	if err != nil {
		return nil, err
	}
	return s.db.GetAllProjects(ctx, username)
}

// ValidateUserAndProject resolves the token and confirms the project belongs
// to its owner, returning the resolved username.
func (s *ProjectService) ValidateUserAndProject(ctx context.Context, apiToken, project string) (string, error) {
	username, err := resolveApiToken(ctx, s.db, apiToken)
	if err != nil {
		return "", err
	}

	owns, err := s.db.CheckProjectOwner(ctx, username, project)
	if err != nil {
		return "", err
	}
	if !owns {
		return "", apperror.InvalidRelation(project)
	}
	return username, nil
}

// ValidateUserAndTag resolves the token and confirms the tag belongs to its
// owner, returning the resolved username.
func (s *ProjectService) ValidateUserAndTag(ctx context.Context, apiToken, tag string) (string, error) {
	username, err := resolveApiToken(ctx, s.db, apiToken)
	if err != nil {
		return "", err
	}

	owns, err := s.db.CheckTagOwner(ctx, username, tag)
	if err != nil {
		return "", err
	}
	if !owns {
		return "", apperror.InvalidTagRelation(tag)
	}
	return username, nil
}
