package service

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the transport can pick a status code.
type Kind int

const (
	KindServer Kind = iota
	KindValidation
	KindConflict
	KindAuth
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	default:
		return "server"
	}
}

// Error is the tagged error every Service method returns on failure.
// Message is safe to show to clients; Err keeps the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

const (
	msgMissingRequiredFields  = "Missing required fields"
	msgEmailAlreadyRegistered = "Email already registered"
	msgEmailAndPasswordNeeded = "Email and password required"
	msgInvalidCredentials     = "Invalid email or password"
	msgUserNotFound           = "User not found"
	msgDesignNotFound         = "Design not found"
	msgEmailAlreadyInUse      = "Email already in use"
	msgMissingFieldTemplate   = "Missing field: %s"
	msgEmptyField             = "Field must not be empty: %s"
	msgInternalServerError    = "Internal server error"
)

func newValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func newConflictError(message string, cause error) *Error {
	return &Error{Kind: KindConflict, Message: message, Err: cause}
}

func newAuthError() *Error {
	return &Error{Kind: KindAuth, Message: msgInvalidCredentials}
}

func newNotFoundError(message string, cause error) *Error {
	return &Error{Kind: KindNotFound, Message: message, Err: cause}
}

func newServerError(operation string, cause error) *Error {
	return &Error{
		Kind:    KindServer,
		Message: msgInternalServerError,
		Err:     fmt.Errorf("in internal/service/service.go/%s(): %w", operation, cause),
	}
}

// KindOf returns the Kind of err. Errors not produced by this package are KindServer.
func KindOf(err error) Kind {
	var serviceErr *Error
	if errors.As(err, &serviceErr) {
		return serviceErr.Kind
	}

	return KindServer
}

// MessageOf returns the client-safe message of err.
func MessageOf(err error) string {
	var serviceErr *Error
	if errors.As(err, &serviceErr) {
		return serviceErr.Message
	}

	return msgInternalServerError
}
