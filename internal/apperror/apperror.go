// Package apperror defines the error taxonomy shared by all layers.
//
// Sentinel errors name the KIND of failure; AppError carries the kind plus a
// human-readable message. Handlers map kinds to HTTP statuses with
// errors.Is, never by inspecting message text.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation error")
	ErrUnknownApiToken     = errors.New("unknown api token")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrExpiredRefreshToken = errors.New("expired refresh token")
	ErrMissingRefreshToken = errors.New("missing refresh token cookie")
	ErrUsernameExists      = errors.New("username exists")
	ErrRegistrationFailed  = errors.New("registration failed")
	ErrInvalidRelation     = errors.New("invalid project relation")
	ErrInvalidTagRelation  = errors.New("invalid tag relation")
	ErrPersistence         = errors.New("persistence failure")
	ErrOperation           = errors.New("operation failure")
)

type AppError struct {
	Err     error  // sentinel kind, matched with errors.Is
	Message string // human-readable error message
	Field   string // optional: field causing the error
	Cause   error  // optional: underlying error, for logs only
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// UnknownApiToken signals that an API token did not resolve to any user.
// Every gated use case fails closed with this before touching anything else.
func UnknownApiToken() *AppError {
	return &AppError{
		Err:     ErrUnknownApiToken,
		Message: "api token does not resolve to a user",
	}
}

func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrInvalidCredentials,
		Message: "username or password is incorrect",
	}
}

func ExpiredRefreshToken() *AppError {
	return &AppError{
		Err:     ErrExpiredRefreshToken,
		Message: "refresh token is expired or unknown",
	}
}

func MissingRefreshTokenCookie() *AppError {
	return &AppError{
		Err:     ErrMissingRefreshToken,
		Message: "no refresh token cookie was presented",
	}
}

func UsernameExists(username string) *AppError {
	return &AppError{
		Err:     ErrUsernameExists,
		Message: fmt.Sprintf("username %s is already taken", username),
	}
}

func RegistrationFailed(cause error) *AppError {
	return &AppError{
		Err:     ErrRegistrationFailed,
		Message: "registration failed",
		Cause:   cause,
	}
}

// InvalidRelation signals that the resolved user does not own the referenced
// project.
func InvalidRelation(project string) *AppError {
	return &AppError{
		Err:     ErrInvalidRelation,
		Message: fmt.Sprintf("caller does not own project %s", project),
	}
}

// InvalidTagRelation signals that the resolved user does not own the
// referenced tag.
func InvalidTagRelation(tag string) *AppError {
	return &AppError{
		Err:     ErrInvalidTagRelation,
		Message: fmt.Sprintf("caller does not own tag %s", tag),
	}
}

// Persistence wraps any storage-layer error. The storage engine's own error
// type never crosses this boundary — callers above see only this kind; the
// cause is preserved for logging.
func Persistence(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrPersistence,
		Message: fmt.Sprintf("storage failure in %s", op),
		Cause:   cause,
	}
}

// OperationFailed signals an internal invariant violation, e.g. a logout
// that deleted an impossible number of rows.
func OperationFailed(message string) *AppError {
	return &AppError{
		Err:     ErrOperation,
		Message: message,
	}
}
