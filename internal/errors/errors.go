package errors

import (
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ConfigError indicates the policy source could not be parsed.
	// Always fail-closed: a broken policy never defaults to allow.
	ConfigError ErrorCode = "CONFIG_ERROR"
	// PermissionDenied indicates the governance gate refused the command
	PermissionDenied ErrorCode = "PERMISSION_DENIED"
	// IntegrityViolation indicates the target repository changed during a
	// run, or a stored scan graph no longer matches its own fingerprint
	IntegrityViolation ErrorCode = "INTEGRITY_VIOLATION"
	// CalibrationGate indicates confidence fell below threshold in strict mode
	CalibrationGate ErrorCode = "CALIBRATION_GATE"
	// ResourceLimit indicates the scan budget was exceeded in strict mode
	ResourceLimit ErrorCode = "RESOURCE_LIMIT"
	// ScopeBlock indicates a token covers the base command but not an
	// optional write (hint bundle or federation index)
	ScopeBlock ErrorCode = "SCOPE_BLOCK"
	// HintRejected indicates a hint bundle failed verification
	HintRejected ErrorCode = "HINT_REJECTED"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// ScoutError represents a scout error with a stable code and optional cause
type ScoutError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	cause   error
}

// New creates a new ScoutError
func New(code ErrorCode, message string, cause error) *ScoutError {
	return &ScoutError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Error implements the error interface
func (e *ScoutError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ScoutError) Unwrap() error {
	return e.cause
}

// WithDetails adds structured diagnostic detail to the error
func (e *ScoutError) WithDetails(details interface{}) *ScoutError {
	e.Details = details
	return e
}

// CodeOf extracts the stable code from an error, mapping unknown errors
// to InternalError so nothing crosses the process boundary unclassified.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if se, ok := err.(*ScoutError); ok {
		return se.Code
	}
	return InternalError
}
