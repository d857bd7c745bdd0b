// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Pipeline errors
	ErrStageFailed = &Error{Code: "STAGE_FAILED", Message: "pipeline stage failed"}

	// Part errors
	ErrPartIO        = &Error{Code: "PART_IO", Message: "part write failed"}
	ErrPartDiscovery = &Error{Code: "PART_DISCOVERY", Message: "part discovery failed"}

	// Sink errors
	ErrSinkTransient = &Error{Code: "SINK_TRANSIENT", Message: "sink operation failed transiently"}
	ErrSinkPermanent = &Error{Code: "SINK_PERMANENT", Message: "sink operation failed permanently"}

	// Encryption errors
	ErrDecryptionFailed = &Error{Code: "DECRYPTION_FAILED", Message: "decryption failed: wrong password or corrupted data"}
	ErrMetadataMissing  = &Error{Code: "METADATA_MISSING", Message: "encryption metadata not found and no salt/iterations supplied"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
)
