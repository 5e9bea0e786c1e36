package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Validation
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED"

	// Resource
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeAlreadyExists   ErrorCode = "ALREADY_EXISTS"
	ErrCodeDuplicate       ErrorCode = "DUPLICATE"

	// Turn-local collaborator failures
	ErrCodeTranscription ErrorCode = "TRANSCRIPTION_ERROR"
	ErrCodeGeneration    ErrorCode = "GENERATION_ERROR"
	ErrCodeSynthesis     ErrorCode = "SYNTHESIS_ERROR"

	// Connection
	ErrCodeTransport ErrorCode = "TRANSPORT_ERROR"

	// Finalization
	ErrCodeEvaluation  ErrorCode = "EVALUATION_ERROR"
	ErrCodePersistence ErrorCode = "PERSISTENCE_ERROR"

	// Internal
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabase ErrorCode = "DATABASE_ERROR"
	ErrCodeExternal ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

// AppError is a structured error that can be returned to clients
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Common error constructors

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func SessionNotFound(sessionID string) *AppError {
	return New(ErrCodeSessionNotFound, "Session not found").WithDetails(map[string]string{"sessionId": sessionID})
}

func AlreadyExists(resource string) *AppError {
	return New(ErrCodeAlreadyExists, fmt.Sprintf("%s already exists", resource))
}

func Duplicate(resource string, cause error) *AppError {
	return Wrap(ErrCodeDuplicate, fmt.Sprintf("Duplicate %s", resource), cause)
}

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func InvalidInput(field string, reason string) *AppError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("Invalid %s: %s", field, reason))
}

func MissingRequired(field string) *AppError {
	return New(ErrCodeMissingRequired, fmt.Sprintf("%s is required", field))
}

func Transcription(cause error) *AppError {
	return Wrap(ErrCodeTranscription, "Transcription failed", cause)
}

func Generation(cause error) *AppError {
	return Wrap(ErrCodeGeneration, "Question generation failed", cause)
}

func Synthesis(cause error) *AppError {
	return Wrap(ErrCodeSynthesis, "Speech synthesis failed", cause)
}

func Transport(cause error) *AppError {
	return Wrap(ErrCodeTransport, "Connection failed", cause)
}

func Evaluation(cause error) *AppError {
	return Wrap(ErrCodeEvaluation, "Interview evaluation failed", cause)
}

func Persistence(cause error) *AppError {
	return Wrap(ErrCodePersistence, "Interview persistence failed", cause)
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

func Database(cause error) *AppError {
	return Wrap(ErrCodeDatabase, "Database error", cause)
}

func External(service string, cause error) *AppError {
	return Wrap(ErrCodeExternal, fmt.Sprintf("External service error: %s", service), cause)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the error code if the error is an AppError, otherwise returns ErrCodeInternal
func GetCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsTurnLocal reports whether err aborts only the current turn.
func IsTurnLocal(err error) bool {
	switch GetCode(err) {
	case ErrCodeTranscription, ErrCodeGeneration, ErrCodeSynthesis:
		return true
	}
	return false
}
