package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/pulse/internal/apperror"
	"github.com/sakif/pulse/internal/auth"
	"github.com/sakif/pulse/internal/metrics"
	"github.com/sakif/pulse/internal/model"
	"github.com/sakif/pulse/internal/repository"
)

// AuthService handles registration, login, session refresh/logout and API
// token management.
type AuthService struct {
	db        repository.Db
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewAuthService(
	db repository.Db,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	m *metrics.Metrics,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		db:        db,
		tokens:    tokens,
		passwords: passwords,
		metrics:   m,
		logger:    logger,
	}
}

// Login verifies credentials and mints a fresh token pair. Unknown user,
// wrong password and crypto-level verification failures are all reported as
// the same InvalidCredentials — callers learn nothing else.
func (s *AuthService) Login(ctx context.Context, username, password string) (*model.TokenPair, error) {
	_, err := s.db.VerifyCredentials(ctx, username, password)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.metrics.LoginAttempts.WithLabelValues("failure").Inc()
			return nil, apperror.InvalidCredentials()
		}
		return nil, err
	}

	pair, err := s.mintPair(ctx, username)
	if err != nil {
		return nil, err
	}

	s.metrics.LoginAttempts.WithLabelValues("success").Inc()
	s.logger.Info("user logged in", slog.String("username", username))
	return pair, nil
}

// Register creates a new user and mints their first token pair.
func (s *AuthService) Register(ctx context.Context, username, password string) (*model.TokenPair, error) {
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}

	taken, err := s.db.UserExists(ctx, username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperror.UsernameExists(username)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.RegistrationFailed(err)
	}

	user := &model.User{Username: username, PasswordHash: hash}
	if err := s.db.CreateUser(ctx, user); err != nil {
		// concurrent registration of the same name loses the UNIQUE race
		return nil, apperror.RegistrationFailed(err)
	}

	s.logger.Info("user registered", slog.String("username", username))
	return s.mintPair(ctx, username)
}

// Refresh mints a fresh pair for the owner of a refresh token. The prior
// pair is NOT revoked: an unexpired refresh token can be used again until
// it ages out or the session is logged out. That is accepted behavior, not
// an oversight.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	if refreshToken == "" {
		return nil, apperror.MissingRefreshTokenCookie()
	}

	username, err := s.db.ResolveRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ExpiredRefreshToken()
		}
		return nil, err
	}

	return s.mintPair(ctx, username)
}

// Logout deletes the presented pair and interprets the summed delete count:
// exactly 2 is a clean logout, 0 or 1 means a stale or mismatched session,
// and anything else is an internal consistency violation.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if refreshToken == "" {
		return apperror.MissingRefreshTokenCookie()
	}

	deleted, err := s.db.DeleteTokenPair(ctx, accessToken, refreshToken)
	if err != nil {
		return err
	}

	switch {
	case deleted == 2:
		return nil
	case deleted == 0 || deleted == 1:
		return apperror.InvalidCredentials()
	default:
		return apperror.OperationFailed(fmt.Sprintf("logout deleted %d token rows", deleted))
	}
}

// mintPair issues a signed access token and an opaque refresh token and
// persists both. Storage purges the user's expired rows right after the
// insert commits.
func (s *AuthService) mintPair(ctx context.Context, username string) (*model.TokenPair, error) {
	accessToken, accessExpiry, err := s.tokens.Generate(username)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating access token for %s: %w", username, err)
	}

	refreshToken, err := auth.NewRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating refresh token for %s: %w", username, err)
	}

	pair := &model.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExpiry,
		RefreshExpiresAt: accessExpiry.Add(auth.RefreshTokenTTL - auth.AccessTokenTTL),
	}

	if err := s.db.CreateTokenPair(ctx, pair, username); err != nil {
		return nil, err
	}

	return pair, nil
}

// resolveWebUser validates a session access token and returns its subject.
// Used by the API-token management operations, which are driven from the
// browser UI rather than by editor clients.
func (s *AuthService) resolveWebUser(accessToken string) (string, error) {
	username, err := s.tokens.Validate(accessToken)
	if err != nil {
		return "", apperror.InvalidCredentials()
	}
	return username, nil
}

// CreateApiToken mints a long-lived API token for the session's user.
func (s *AuthService) CreateApiToken(ctx context.Context, accessToken, name string) (*model.ApiToken, error) {
	username, err := s.resolveWebUser(accessToken)
	if err != nil {
		return nil, err
	}

	value, err := auth.NewApiToken()
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating api token for %s: %w", username, err)
	}

	token := &model.ApiToken{Token: value, Username: username, Name: name}
	if err := s.db.CreateApiToken(ctx, token); err != nil {
		return nil, err
	}

	s.logger.Info("api token created", slog.String("username", username))
	return token, nil
}

// ListApiTokens returns the session user's API tokens.
func (s *AuthService) ListApiTokens(ctx context.Context, accessToken string) ([]model.ApiToken, error) {
	username, err := s.resolveWebUser(accessToken)
	if err != nil {
		return nil, err
	}
	return s.db.ListApiTokens(ctx, username)
}

// DeleteApiToken deletes an API token by value. The caller must present a
// valid session, but the deleted token's ownership is NOT re-verified
// against that caller — a known authorization gap kept for compatibility
// with existing clients.
func (s *AuthService) DeleteApiToken(ctx context.Context, accessToken, apiToken string) error {
	if _, err := s.resolveWebUser(accessToken); err != nil {
		return err
	}
	return s.db.DeleteApiToken(ctx, apiToken)
}

// RenameApiToken updates an API token's display name. Same ownership gap as
// DeleteApiToken.
func (s *AuthService) RenameApiToken(ctx context.Context, accessToken, apiToken, name string) error {
	if _, err := s.resolveWebUser(accessToken); err != nil {
		return err
	}
	return s.db.RenameApiToken(ctx, apiToken, name)
}
