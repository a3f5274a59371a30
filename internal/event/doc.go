// Package event provides a hierarchical publish/subscribe space keyed by
// dotted paths.
//
// Paths name levels of a tree. Listeners attach to individual levels, and a
// send addresses a level; where the message goes depends on which of three
// traversal shapes the caller picks:
//
//	                 (root)
//	                   │
//	                  app ─────────────┐
//	                   │               │
//	                 window          editor
//	                   │
//	                resized
//
//	Send("app.window")            -> app.window only
//	SendDescendants("app")        -> app, app.window, app.window.resized, app.editor
//	SendAncestors("app.window")   -> root, app, app.window
//
// # Levels
//
// A level is created the first time a registration resolves a path through
// it. Sends and queries never create levels. Levels are discarded only by
// CancelDescendants, or by pruning when the space is built with
// WithPruneEmpty(true).
//
// # Listener Identity
//
// Registering a plain Listener returns a *Handle. The handle is the
// identity used for deduplication and removal:
//
//	h, _ := space.Register("app.window", event.ListenerFunc(onWindow))
//	space.Register("app.window", h) // no-op, already present
//	space.Register("app.editor", h) // same listener, second level
//	space.Cancel("app.window", h)   // app.editor keeps it
//
// RegisterOnce returns a one-shot adapter handle that removes itself after
// its first delivery.
//
// # Delivery Modes
//
// By default listeners run before Send returns, in registration order within
// each level. With the Deferred option the captured invocations are handed to
// a dispatch.Scheduler as a single task that runs them in the same order. A
// dispatch.Loop runs that task on its own goroutine; a dispatch.Queue runs it
// when its owner ticks. The listener set is captured
// when the send starts, in both modes, so a listener may register, cancel or
// send from inside its own invocation.
//
// # Failures
//
// Listener errors and panics never reach the sender. They are counted in
// Stats, logged, and passed to the WithErrorHandler callback as
// *ListenerError or *PanicError. An invalid path argument fails with
// ErrInvalidPathType and an unusable listener with ErrInvalidListenerType,
// in both cases before the tree is touched. A path with no level behind it
// is not an error.
//
// # Thread Safety
//
// Space is safe for concurrent use. Listeners must manage their own thread
// safety when deferred delivery is used with a multi-goroutine scheduler.
//
// # Subpackages
//
//   - path: path normalization
//   - dispatch: listener execution and deferred schedulers
//   - mirror: send decorator that copies traffic into a cache namespace
package event
