package event

import (
	"errors"

	"github.com/dshills/levelbus/internal/event/path"
)

// Sentinel errors for the event space.
var (
	// ErrInvalidPathType is returned when a path argument is neither a string
	// nor an ordered sequence of strings.
	ErrInvalidPathType = path.ErrInvalidPathType

	// ErrInvalidListenerType is returned when a registration is given
	// something that cannot be invoked.
	ErrInvalidListenerType = errors.New("invalid listener type")

	// ErrListenerPanic is matched by PanicError.
	ErrListenerPanic = errors.New("listener panicked")
)

// ListenerError wraps an error returned by a listener with delivery context.
type ListenerError struct {
	// HandleID identifies the listener handle that failed.
	HandleID string

	// Level is the dotted path of the level the listener fired at.
	Level string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ListenerError) Error() string {
	return "listener " + e.HandleID + " at level " + quoteLevel(e.Level) + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ListenerError) Unwrap() error {
	return e.Err
}

// PanicError wraps a recovered listener panic as an error.
type PanicError struct {
	// HandleID identifies the listener handle that panicked.
	HandleID string

	// Level is the dotted path of the level the listener fired at.
	Level string

	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return "listener " + e.HandleID + " panicked at level " + quoteLevel(e.Level)
}

// Is allows errors.Is to match PanicError with ErrListenerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrListenerPanic
}

func quoteLevel(level string) string {
	if level == "" {
		return "<root>"
	}
	return level
}
