// Package errors provides the structured error type used across the sweep:
// every failure carries a category, a stable code and, where it applies, the
// canonical key of the configuration and the stage that failed.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeTool       ErrorType = "tool"
	ErrorTypeSecurity   ErrorType = "security"
	ErrorTypeInternal   ErrorType = "internal"
)

// Error codes shared by the sweep packages.
const (
	ErrCodeInvalidArgs     = "ERR_INVALID_ARGS"
	ErrCodeInvalidConfig   = "ERR_INVALID_CONFIG"
	ErrCodeMissingTemplate = "ERR_MISSING_TEMPLATE"
	ErrCodeWorkspace       = "ERR_WORKSPACE"
	ErrCodeSubstitution    = "ERR_SUBSTITUTION"
	ErrCodeCopy            = "ERR_COPY"
	ErrCodeToolFailed      = "ERR_TOOL_FAILED"
	ErrCodeToolNotFound    = "ERR_TOOL_NOT_FOUND"
	ErrCodeCommandRejected = "ERR_COMMAND_REJECTED"
	ErrCodeCancelled       = "ERR_CANCELLED"
	ErrCodeResultLog       = "ERR_RESULT_LOG"
	ErrCodeInternalError   = "ERR_INTERNAL"
)

// DSEError is a structured error type with context.
type DSEError struct {
	Type    ErrorType
	Code    string
	Message string
	Cause   error
	Key     string
	Stage   string
	Path    string
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *DSEError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Key != "" {
		parts = append(parts, "config:"+e.Key)
	}
	if e.Stage != "" {
		parts = append(parts, "stage:"+e.Stage)
	}
	if e.Path != "" {
		parts = append(parts, e.Path)
	}

	parts = append(parts, e.Message)
	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *DSEError) Unwrap() error {
	return e.Cause
}

// Is matches on type and code so sentinel values can be compared with errors.Is.
func (e *DSEError) Is(target error) bool {
	var t *DSEError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *DSEError) WithContext(key string, value interface{}) *DSEError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithKey attaches the canonical key of the configuration being processed.
func (e *DSEError) WithKey(key string) *DSEError {
	e.Key = key

	return e
}

// WithStage records which step of the per-configuration pipeline failed.
func (e *DSEError) WithStage(stage string) *DSEError {
	e.Stage = stage

	return e
}

// WithPath adds file location information.
func (e *DSEError) WithPath(path string) *DSEError {
	e.Path = path

	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *DSEError {
	return &DSEError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *DSEError {
	return &DSEError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewIOError creates an I/O error. Materialization failures use this type.
func NewIOError(code, message string, cause error) *DSEError {
	return &DSEError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewToolError creates an error for a failed external tool invocation.
func NewToolError(code, message string, cause error) *DSEError {
	return &DSEError{
		Type:    ErrorTypeTool,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewSecurityError creates a security error.
func NewSecurityError(code, message string) *DSEError {
	return &DSEError{
		Type:    ErrorTypeSecurity,
		Code:    code,
		Message: message,
	}
}

// IsToolError checks if an error came from the external tool.
func IsToolError(err error) bool {
	return hasType(err, ErrorTypeTool)
}

// IsIOError checks if an error came from workspace materialization.
func IsIOError(err error) bool {
	return hasType(err, ErrorTypeIO)
}

// IsConfigError checks if an error is configuration-related.
func IsConfigError(err error) bool {
	return hasType(err, ErrorTypeConfig)
}

func hasType(err error, t ErrorType) bool {
	var de *DSEError
	if errors.As(err, &de) {
		return de.Type == t
	}

	return false
}
