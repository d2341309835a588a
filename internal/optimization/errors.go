package optimization

import (
	"errors"
	"fmt"
)

// Error is the error type used across the optimization packages. It carries
// the component and operation that produced the failure so callers can log
// one wrapped error instead of rebuilding context at every level.
type Error struct {
	// Component is the package or subsystem where the error occurred.
	Component string
	// Op is the operation that failed, e.g. "Fit" or "Sample".
	Op string
	// Message describes the failure.
	Message string
	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	prefix := e.Component
	if e.Op != "" {
		if prefix != "" {
			prefix += "." + e.Op
		} else {
			prefix = e.Op
		}
	}
	switch {
	case prefix != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	case prefix != "":
		return fmt.Sprintf("%s: %s", prefix, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Errorf creates a new error scoped to a component and operation.
func Errorf(component, op, format string, args ...interface{}) *Error {
	return &Error{
		Component: component,
		Op:        op,
		Message:   fmt.Sprintf(format, args...),
	}
}

// Wrap annotates an underlying error with component and operation context.
// Wrap returns nil when err is nil.
func Wrap(err error, component, op, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Component: component,
		Op:        op,
		Message:   message,
		Err:       err,
	}
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
