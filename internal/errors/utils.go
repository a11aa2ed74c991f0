package errors

import (
	"errors"

	"go.uber.org/multierr"
)

// Wrap wraps an error with additional context, creating a DSEError if the input is not already one.
func Wrap(err error, errType ErrorType, code, message string) *DSEError {
	if err == nil {
		return nil
	}

	// Keep the key, stage and path of an inner DSEError so the outermost
	// message still names the failing configuration.
	var de *DSEError
	if errors.As(err, &de) {
		return &DSEError{
			Type:    errType,
			Code:    code,
			Message: message,
			Cause:   de,
			Key:     de.Key,
			Stage:   de.Stage,
			Path:    de.Path,
			Context: de.Context,
		}
	}

	return &DSEError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapIO wraps an error as a materialization I/O error.
func WrapIO(err error, code, message string) *DSEError {
	return Wrap(err, ErrorTypeIO, code, message)
}

// WrapTool wraps an error as an external tool error.
func WrapTool(err error, code, message string) *DSEError {
	return Wrap(err, ErrorTypeTool, code, message)
}

// WrapConfig wraps an error as a configuration error.
func WrapConfig(err error, code, message string) *DSEError {
	return Wrap(err, ErrorTypeConfig, code, message)
}

// WrapInternal wraps an error as an internal error.
func WrapInternal(err error, code, message string) *DSEError {
	return Wrap(err, ErrorTypeInternal, code, message)
}

// ExtractCause extracts the root cause from a chain of DSEErrors.
func ExtractCause(err error) error {
	for err != nil {
		var de *DSEError
		if !errors.As(err, &de) {
			return err
		}
		if de.Cause == nil {
			return de
		}
		err = de.Cause
	}
	return nil
}

// Append adds err to the aggregate. A nil err leaves the aggregate untouched.
func Append(aggregate, err error) error {
	return multierr.Append(aggregate, err)
}

// Errors flattens an aggregate produced by Append.
func Errors(err error) []error {
	return multierr.Errors(err)
}
