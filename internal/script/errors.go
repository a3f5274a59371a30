package script

import "errors"

var (
	// ErrClosed is returned when using a closed Runtime.
	ErrClosed = errors.New("script runtime is closed")

	// ErrUnknownHandle is returned when a Lua handle ID is not tracked.
	ErrUnknownHandle = errors.New("unknown listener handle")
)
