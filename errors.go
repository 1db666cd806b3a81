package rbac

import (
	"errors"
	"fmt"
	"strings"
)

// Custom errors
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrUnknownRole           = errors.New("unknown role")
	ErrConstraint            = errors.New("constraint violation")
	ErrPermissionDenied      = errors.New("permission denied")
	ErrPermissionCheckFailed = errors.New("permission check failed")
)

// PermissionError is returned by the permission guards. A nil Err means the
// user was identified and lacks the permission; a non-nil Err means the check
// itself could not be completed.
type PermissionError struct {
	Message string
	Err     error
}

func (e *PermissionError) Error() string {
	return e.Message
}

func (e *PermissionError) Unwrap() error {
	return e.Err
}

// Is lets callers tell a denial from a failed check with errors.Is.
func (e *PermissionError) Is(target error) bool {
	switch target {
	case ErrPermissionDenied:
		return e.Err == nil
	case ErrPermissionCheckFailed:
		return e.Err != nil
	}
	return false
}

// CheckFailed reports whether the error came from an infrastructure failure.
func (e *PermissionError) CheckFailed() bool {
	return e.Err != nil
}

// NewPermissionError builds a denial with the given message.
func NewPermissionError(message string) *PermissionError {
	return &PermissionError{Message: message}
}

// AsPermissionError unwraps err into a *PermissionError.
func AsPermissionError(err error) (*PermissionError, bool) {
	var pe *PermissionError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// FieldError describes one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports malformed input or a violated precondition. It is
// never a PermissionError.
type ValidationError struct {
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields,omitempty"`
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

// Is makes every ValidationError match ErrInvalidInput.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError builds a ValidationError without field details.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// AsValidationError unwraps err into a *ValidationError.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
