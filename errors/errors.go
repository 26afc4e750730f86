// Package errors provides error classification and wrapping helpers shared by
// every controller component.
//
// Errors fall into three classes: transient (retry may succeed), invalid (bad
// input, never retried) and fatal (stop processing). The northbound API maps
// classes and the domain sentinels below onto HTTP status codes; the southbound
// turns any error raised while handling a frame into a connection close.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or configuration
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop processing
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Lifecycle
	ErrAlreadyStarted = errors.New("component already started")
	ErrNotStarted     = errors.New("component not started")
	ErrShuttingDown   = errors.New("component is shutting down")

	// Connections
	ErrNoConnection   = errors.New("no connection available")
	ErrConnectionLost = errors.New("connection lost")
	ErrQueueFull      = errors.New("outbound queue full")

	// Wire and data
	ErrInvalidData   = errors.New("invalid data format")
	ErrParsingFailed = errors.New("parsing failed")
	ErrShortFrame    = errors.New("frame shorter than declared length")

	// Registry
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrConflict        = errors.New("registry changed concurrently")
	ErrInvalidAddress  = errors.New("invalid address")
	ErrInvalidDSCP     = errors.New("invalid dscp")
	ErrDefaultSlice    = errors.New("default slice cannot be removed")
	ErrDuplicateBSSID  = errors.New("duplicate bssid")
	ErrInvalidState    = errors.New("invalid state transition")
	ErrMissingParam    = errors.New("missing required parameter")
	ErrUnknownModule   = errors.New("unknown module type")
	ErrUnknownApp      = errors.New("unknown app")
	ErrDeviceOffline   = errors.New("device not connected")
	ErrTenantNotMember = errors.New("device is not a member of the tenant")

	// Access
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Configuration and storage
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrMissingConfig      = errors.New("missing required configuration")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsTransient checks if an error is transient and should be retried
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	if errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, ErrNoConnection) ||
		errors.Is(err, ErrQueueFull) ||
		errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "connection", "temporary", "unavailable", "busy"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	return errors.Is(err, ErrInvalidConfig) || errors.Is(err, ErrMissingConfig)
}

// IsInvalid checks if an error is due to invalid input
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) && ce.Class == ErrorInvalid {
		return true
	}

	for _, target := range []error{
		ErrInvalidData, ErrParsingFailed, ErrShortFrame, ErrInvalidAddress,
		ErrInvalidDSCP, ErrDefaultSlice, ErrDuplicateBSSID, ErrInvalidState,
		ErrMissingParam, ErrUnknownModule, ErrUnknownApp, ErrAlreadyExists, ErrTenantNotMember,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Classify returns the error class for an error
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ErrorTransient
	case IsInvalid(err):
		return ErrorInvalid
	case IsFatal(err):
		return ErrorFatal
	default:
		return ErrorTransient
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	return wrapClassified(ErrorTransient, err, component, method, action)
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	return wrapClassified(ErrorFatal, err, component, method, action)
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	return wrapClassified(ErrorInvalid, err, component, method, action)
}

func wrapClassified(class ErrorClass, err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return &ClassifiedError{
		Class:     class,
		Err:       wrapped,
		Message:   wrapped.Error(),
		Component: component,
		Operation: method,
	}
}

// Invalidf builds an invalid-class error wrapping target with a formatted reason.
// The reason is what the northbound API reports to clients.
func Invalidf(target error, format string, args ...any) error {
	reason := fmt.Sprintf(format, args...)
	return &ClassifiedError{
		Class:   ErrorInvalid,
		Err:     fmt.Errorf("%s: %w", reason, target),
		Message: reason,
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

// New returns an error that formats as the given text.
func New(text string) error { return errors.New(text) }

// Join returns an error wrapping errs, or nil when every err is nil.
func Join(errs ...error) error { return errors.Join(errs...) }
