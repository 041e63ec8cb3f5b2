package common

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/label-verifier/constants"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Verification error taxonomy
var (
	ErrExtraction    = errors.New("extraction failed")
	ErrTimeout       = errors.New("extraction timed out")
	ErrCancelled     = errors.New("cancelled")
	ErrConfiguration = errors.New("invalid configuration")
	ErrInvalidInput  = errors.New("invalid input")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// ExtractionError reports an unreadable, corrupt, unsupported or oversized image.
func ExtractionError(format string, args ...any) error {
	return NewAppError(string(constants.KindExtraction), fmt.Sprintf(format, args...), ErrExtraction)
}

// ConfigurationError reports a malformed rule set or engine configuration.
func ConfigurationError(format string, args ...any) error {
	return NewAppError("CONFIG_ERROR", fmt.Sprintf(format, args...), ErrConfiguration)
}

// InvalidInputError reports a malformed verification request.
func InvalidInputError(format string, args ...any) error {
	return NewAppError(string(constants.KindInvalidRequest), fmt.Sprintf(format, args...), ErrInvalidInput)
}

// TimeoutError reports that extraction of imageID exceeded its budget.
func TimeoutError(imageID string, cause error) error {
	return NewAppError(string(constants.KindTimeout), fmt.Sprintf("extraction of %q exceeded its time limit", imageID), errors.Join(ErrTimeout, cause))
}

// CancelledError reports that the caller aborted work on imageID.
func CancelledError(imageID string, cause error) error {
	return NewAppError(string(constants.KindCancelled), fmt.Sprintf("verification of %q was cancelled", imageID), errors.Join(ErrCancelled, cause))
}

// KindOf classifies err into the per-item error taxonomy.
func KindOf(err error) constants.ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCancelled):
		return constants.KindCancelled
	case errors.Is(err, ErrTimeout):
		return constants.KindTimeout
	case errors.Is(err, ErrExtraction):
		return constants.KindExtraction
	case errors.Is(err, ErrInvalidInput):
		return constants.KindInvalidRequest
	case errors.Is(err, context.Canceled):
		return constants.KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return constants.KindTimeout
	}
	return constants.KindInternal
}

// FromRPCError maps a gRPC status returned by a remote OCR service onto the
// verification taxonomy. Non-status errors are treated as extraction failures.
func FromRPCError(imageID string, err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return NewAppError(string(constants.KindExtraction), fmt.Sprintf("ocr request for %q failed", imageID), errors.Join(ErrExtraction, err))
	}
	switch st.Code() {
	case codes.DeadlineExceeded:
		return TimeoutError(imageID, err)
	case codes.Canceled:
		return CancelledError(imageID, err)
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return NewAppError(string(constants.KindExtraction), fmt.Sprintf("image %q rejected: %s", imageID, st.Message()), errors.Join(ErrExtraction, err))
	default:
		return NewAppError(string(constants.KindExtraction), fmt.Sprintf("ocr service error for %q: %s", imageID, st.Message()), errors.Join(ErrExtraction, err))
	}
}
