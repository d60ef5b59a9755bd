// Package reservoirerrors provides structured error handling for reservoir with rich
// context, stack traces, and error categorization. Every failure a pool can report
// is one of the ErrorType values below, so callers can tell resource exhaustion
// apart from factory malfunction or caller bugs.
//
// # Overview
//
// The reservoirerrors package extends Go's standard error handling with:
//   - Error categorization through ErrorType
//   - Structured context with key-value details
//   - Automatic stack trace capture
//   - Error wrapping with cause preservation
//   - Sentinel values usable with errors.Is
//
// # Basic Usage
//
//	item, err := p.Acquire()
//	if reservoirerrors.IsType(err, reservoirerrors.ErrorTypeCapacityExceeded) {
//	    // shed load, retry after a release
//	}
//
//	// or, equivalently
//	if errors.Is(err, reservoirerrors.ErrCapacityExceeded) {
//	    ...
//	}
//
// # Thread Safety
//
// Error instances are not thread-safe for modification. Use WithDetail before
// sharing an error across goroutines.
package reservoirerrors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error, used for error handling strategies,
// monitoring labels, and retry decisions.
type ErrorType string

const (
	// ErrorTypeCreationFailed means the item factory could not produce an item
	ErrorTypeCreationFailed ErrorType = "creation_failed"
	// ErrorTypeCapacityExceeded means creation was refused by the configured maximum size
	ErrorTypeCapacityExceeded ErrorType = "capacity_exceeded"
	// ErrorTypeNotOwned means an item was released that is not checked out from the pool
	ErrorTypeNotOwned ErrorType = "not_owned"
	// ErrorTypeDuplicateRelease means collection checks caught a double release
	ErrorTypeDuplicateRelease ErrorType = "duplicate_release"
	// ErrorTypeEmptyRegistry means a random release was requested with nothing checked out
	ErrorTypeEmptyRegistry ErrorType = "empty_registry"
	// ErrorTypeDisposed means the pool was used after Dispose
	ErrorTypeDisposed ErrorType = "disposed"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
)

// Sentinels for errors.Is. Matching is by ErrorType only.
var (
	ErrCreationFailed   = &Error{Type: ErrorTypeCreationFailed, Message: "item creation failed"}
	ErrCapacityExceeded = &Error{Type: ErrorTypeCapacityExceeded, Message: "pool capacity exceeded"}
	ErrNotOwned         = &Error{Type: ErrorTypeNotOwned, Message: "item not owned by pool"}
	ErrDuplicateRelease = &Error{Type: ErrorTypeDuplicateRelease, Message: "item released twice"}
	ErrEmptyRegistry    = &Error{Type: ErrorTypeEmptyRegistry, Message: "no checked-out items"}
	ErrDisposed         = &Error{Type: ErrorTypeDisposed, Message: "pool disposed"}
)

// Error represents a structured error with context, providing rich debugging
// information and enabling error handling by category.
//
// Fields:
//   - Type: Categorizes the error for handling strategies
//   - Message: Human-readable error description
//   - Cause: The underlying error that caused this error
//   - Details: Key-value pairs providing additional context
//   - Stack: Call stack at the point of error creation
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack, capturing
// the function name, file path, and line number for debugging.
type StackFrame struct {
	Function string // Fully qualified function name
	File     string // Source file path
	Line     int    // Line number in source file
}

// Error implements the error interface, returning a formatted error message
// that includes the error type, message, and cause (if present).
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error, enabling compatibility with errors.Is
// and errors.As for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same type.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// WithDetail adds a key-value detail to the error. This method can be chained
// for adding multiple details.
//
// Example:
//
//	err := reservoirerrors.New(reservoirerrors.ErrorTypeCapacityExceeded, "pool is full").
//	    WithDetail("pool", "bullets").
//	    WithDetail("max_size", 64)
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message, automatically
// capturing the call stack at the point of creation.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf is New with a format string.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context, preserving the original
// error as the cause. If the error is already a structured Error, its stack
// trace is preserved. Returns nil if the input error is nil.
//
// Example:
//
//	item, err := factory.Create(template, parent)
//	if err != nil {
//	    return reservoirerrors.Wrap(err, reservoirerrors.ErrorTypeCreationFailed, "factory failed").
//	        WithDetail("template", template)
//	}
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsRetryable returns true if the error is retryable based on its type.
// Capacity errors are retryable because a later release frees a slot; every
// other kind either indicates a caller bug or a broken factory.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	switch e.Type {
	case ErrorTypeCapacityExceeded:
		return true
	default:
		return false
	}
}

// IsType checks if the error is of the given type.
//
// Example:
//
//	if reservoirerrors.IsType(err, reservoirerrors.ErrorTypeNotOwned) {
//	    log.Warn("released a foreign item")
//	}
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// TypeOf returns the ErrorType of err, or ErrorTypeInternal when err is not
// a structured error.
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ErrorTypeInternal
	}
	return e.Type
}

// captureStack captures the current call stack up to maxFrames deep,
// skipping the specified number of frames from the top.
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
