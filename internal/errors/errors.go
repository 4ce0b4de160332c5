package errors

import "fmt"

// ErrorCode represents a deskcfg error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrDecodeFailure  ErrorCode = "DECODE_FAILURE"  // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrInvalidValue   ErrorCode = "INVALID_VALUE"   // 422
	ErrInvalidSchema  ErrorCode = "INVALID_SCHEMA"  // 500, startup only
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// DeskError represents a structured error with code, status, and details.
type DeskError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *DeskError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *DeskError {
	return &DeskError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewDecodeFailure creates a 400 error for a share token that could not be read
// in any supported format. Only surfaced where the caller asked for a strict decode.
func NewDecodeFailure(token string) *DeskError {
	return &DeskError{
		Code:    ErrDecodeFailure,
		Status:  400,
		Message: "configuration token could not be decoded",
		Details: map[string]any{"token": token},
	}
}

// NewNotFound creates a 404 error.
func NewNotFound(what string) *DeskError {
	return &DeskError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", what),
		Details: map[string]any{"identifier": what},
	}
}

// NewInvalidValue creates a 422 error for a field value outside its enumeration.
func NewInvalidValue(field, value string) *DeskError {
	return &DeskError{
		Code:    ErrInvalidValue,
		Status:  422,
		Message: fmt.Sprintf("invalid value %q for field %q", value, field),
		Details: map[string]any{"field": field, "value": value},
	}
}

// NewInvalidSchema creates an error for an inconsistent product schema.
func NewInvalidSchema(msg string) *DeskError {
	return &DeskError{
		Code:    ErrInvalidSchema,
		Status:  500,
		Message: msg,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *DeskError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &DeskError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a DeskError with the given code.
func Is(err error, code ErrorCode) bool {
	if dErr, ok := err.(*DeskError); ok {
		return dErr.Code == code
	}
	return false
}
