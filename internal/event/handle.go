package event

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/levelbus/internal/event/path"
)

// Message is what a listener receives for each delivery.
type Message struct {
	// Path is the target path of the send.
	Path path.Key

	// Level is the path of the level the listener is registered at. It
	// differs from Path for descendant and ancestor sends.
	Level path.Key

	// Data is the value passed to the send.
	Data any

	// Space is the space that delivered the message.
	Space *Space
}

// Listener is the interface for message receivers.
type Listener interface {
	Receive(ctx context.Context, msg Message) error
}

// ListenerFunc is a function adapter for Listener.
type ListenerFunc func(ctx context.Context, msg Message) error

// Receive implements the Listener interface.
func (f ListenerFunc) Receive(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Handle is the identity under which a listener is registered.
//
// Listener values are not comparable in general, so every registration of a
// plain Listener mints a new Handle. Passing the Handle back to Register
// registers the same identity again: a no-op at a level that already holds
// it, an independent registration anywhere else.
//
// A Handle returned by RegisterOnce is a one-shot adapter around the
// original listener. Cancelling a once registration explicitly requires
// this adapter, not the original listener. Register rejects once adapters;
// wrap the original listener again with RegisterOnce instead.
type Handle struct {
	id       string
	listener Listener
	once     bool
	fired    atomic.Bool
}

func newHandle(l Listener, once bool) *Handle {
	return &Handle{
		id:       uuid.NewString(),
		listener: l,
		once:     once,
	}
}

// ID returns the unique handle identifier.
func (h *Handle) ID() string {
	return h.id
}

// Listener returns the wrapped listener.
func (h *Handle) Listener() Listener {
	return h.listener
}

// IsOnce returns true if the handle removes itself after its first delivery.
func (h *Handle) IsOnce() bool {
	return h.once
}

// Fired returns true if a once handle has already been delivered to.
// It is always false for ordinary handles.
func (h *Handle) Fired() bool {
	return h.fired.Load()
}

// Receive implements Listener by delegating to the wrapped listener.
func (h *Handle) Receive(ctx context.Context, msg Message) error {
	return h.listener.Receive(ctx, msg)
}

// claim reports whether this delivery may proceed. Once handles grant
// exactly one claim over their lifetime.
func (h *Handle) claim() bool {
	if !h.once {
		return true
	}
	return h.fired.CompareAndSwap(false, true)
}

// asHandle validates l and returns the handle to register.
func asHandle(l Listener, once bool) (*Handle, error) {
	switch v := l.(type) {
	case nil:
		return nil, ErrInvalidListenerType
	case ListenerFunc:
		if v == nil {
			return nil, ErrInvalidListenerType
		}
	case *Handle:
		if v == nil || v.listener == nil {
			return nil, ErrInvalidListenerType
		}
		// A once adapter carries a single claim and cannot be shared
		// between levels.
		if v.once && !once {
			return nil, ErrInvalidListenerType
		}
		if !once {
			return v, nil
		}
	}
	return newHandle(l, once), nil
}
