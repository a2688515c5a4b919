// Package errors provides structured error types for mvnresolve.
//
// Two layers live here:
//   - a generic [Error] carrying a machine-readable [Code], a message and an
//     optional cause, used for input validation and orchestration failures
//   - typed resolution errors ([VersionParseError], [RelocationCycleError],
//     [DescriptorMissingError], ...) that carry the coordinate and, where it is
//     known, the dependency path that led to the failure
//
// Every typed error reports a [Code] through a Code method, so [GetCode] and
// [Is] work uniformly across both layers.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidInput, "invalid coordinate: %s", s)
//	if errors.Is(err, errors.ErrCodeInvalidInput) {
//	    // Handle validation error
//	}
//
//	var missing *errors.DescriptorMissingError
//	if stderrors.As(err, &missing) {
//	    fmt.Println(missing.Coordinate)
//	}
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput      Code = "INVALID_INPUT"
	ErrCodeInvalidCoordinate Code = "INVALID_COORDINATE"
	ErrCodeInvalidPath       Code = "INVALID_PATH"
	ErrCodeInvalidPolicy     Code = "INVALID_POLICY"
	ErrCodeInvalidFormat     Code = "INVALID_FORMAT"
	ErrCodeInvalidSettings   Code = "INVALID_SETTINGS"

	// Version model errors
	ErrCodeVersionParse   Code = "VERSION_PARSE"
	ErrCodeUnboundedRange Code = "UNBOUNDED_RANGE"

	// Descriptor errors
	ErrCodeRelocationCycle   Code = "RELOCATION_CYCLE"
	ErrCodeDescriptorMissing Code = "DESCRIPTOR_MISSING"
	ErrCodeDescriptorInvalid Code = "DESCRIPTOR_INVALID"
	ErrCodeUnresolvableModel Code = "UNRESOLVABLE_MODEL"

	// Resolution errors
	ErrCodeVersionResolution Code = "VERSION_RESOLUTION"
	ErrCodeArtifactNotFound  Code = "ARTIFACT_NOT_FOUND"
	ErrCodeTransfer          Code = "TRANSFER_FAILED"
	ErrCodeCollection        Code = "COLLECTION_FAILED"
	ErrCodePluginResolution  Code = "PLUGIN_RESOLUTION"
	ErrCodeDeploy            Code = "DEPLOY_FAILED"

	// Resource errors
	ErrCodeNotFound Code = "NOT_FOUND"
	ErrCodeOffline  Code = "OFFLINE"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// coder is implemented by the typed resolution errors.
type coder interface {
	Code() Code
}

// Is reports whether err, or any error in its chain, carries the given code.
func Is(err error, code Code) bool {
	for err != nil {
		if c := codeOf(err); c == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// GetCode extracts the outermost error code from an error chain.
// Returns empty string if nothing in the chain carries a code.
func GetCode(err error) Code {
	for err != nil {
		if c := codeOf(err); c != "" {
			return c
		}
		err = errors.Unwrap(err)
	}
	return ""
}

func codeOf(err error) Code {
	switch e := err.(type) {
	case *Error:
		return e.Code
	case coder:
		return e.Code()
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
