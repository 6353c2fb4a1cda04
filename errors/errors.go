package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies a pipeline failure. It is what callers branch on and what
// the API reports to clients.
type Kind string

const (
	KindIdentifierNotFound    Kind = "identifier_not_found"
	KindTranscriptUnavailable Kind = "transcript_unavailable"
	KindGenerationFailed      Kind = "generation_failed"
	KindPayloadTooLarge       Kind = "payload_too_large"
	KindInvalidInput          Kind = "invalid_input"
	KindInternal              Kind = "internal"
)

type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type AppError struct {
	Kind    Kind   `json:"kind"`
	Code    int    `json:"-"`
	Message string `json:"error"`
	Op      string `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Severity reports how the failure should be presented. Failures caused by
// the input or by the video itself are warnings; everything else is an error.
func (e *AppError) Severity() Severity {
	switch e.Kind {
	case KindIdentifierNotFound, KindTranscriptUnavailable, KindInvalidInput:
		return SeverityWarning
	default:
		return SeverityError
	}
}

func IdentifierNotFound(op string, message string) *AppError {
	return &AppError{
		Kind:    KindIdentifierNotFound,
		Code:    http.StatusBadRequest,
		Message: message,
		Op:      op,
	}
}

func TranscriptUnavailable(op string, err error, message string) *AppError {
	return &AppError{
		Kind:    KindTranscriptUnavailable,
		Code:    http.StatusUnprocessableEntity,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func GenerationFailed(op string, err error, message string) *AppError {
	return &AppError{
		Kind:    KindGenerationFailed,
		Code:    http.StatusBadGateway,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func PayloadTooLarge(op string, err error, message string) *AppError {
	return &AppError{
		Kind:    KindPayloadTooLarge,
		Code:    http.StatusRequestEntityTooLarge,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func InvalidInput(op string, err error, message string) *AppError {
	return &AppError{
		Kind:    KindInvalidInput,
		Code:    http.StatusBadRequest,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func Internal(op string, err error, message string) *AppError {
	return &AppError{
		Kind:    KindInternal,
		Code:    http.StatusInternalServerError,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

// As returns the outermost AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for errors that carry none.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}
