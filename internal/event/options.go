package event

import (
	"io"
	"log/slog"
	"time"

	"github.com/dshills/levelbus/internal/event/dispatch"
)

// Option configures a Space.
type Option func(*spaceConfig)

// spaceConfig contains configuration for a space.
type spaceConfig struct {
	// logger receives structured records about registrations and failures.
	logger *slog.Logger

	// scheduler runs deferred deliveries. Nil selects a dispatch.Loop.
	scheduler dispatch.Scheduler

	// pruneEmpty removes empty leaf levels after Cancel and once removal.
	pruneEmpty bool

	// listenerTimeout bounds every listener invocation. Zero means none.
	listenerTimeout time.Duration

	// errorHandler observes listener errors and recovered panics.
	errorHandler ErrorHandler
}

// ErrorHandler is called with a *ListenerError or *PanicError whenever a
// listener fails. Failures never propagate to the sender.
type ErrorHandler func(err error)

func defaultSpaceConfig() spaceConfig {
	return spaceConfig{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *spaceConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithScheduler sets the scheduler used for deferred deliveries.
func WithScheduler(s dispatch.Scheduler) Option {
	return func(c *spaceConfig) {
		if s != nil {
			c.scheduler = s
		}
	}
}

// WithPruneEmpty enables removal of empty leaf levels after Cancel and after
// a once listener removes itself. Pruning walks upward and stops at the
// first level that still holds listeners, children or a payload.
//
// It is off by default: only CancelDescendants discards levels.
func WithPruneEmpty(enabled bool) Option {
	return func(c *spaceConfig) {
		c.pruneEmpty = enabled
	}
}

// WithListenerTimeout sets a deadline applied to each listener invocation.
func WithListenerTimeout(timeout time.Duration) Option {
	return func(c *spaceConfig) {
		if timeout >= 0 {
			c.listenerTimeout = timeout
		}
	}
}

// WithErrorHandler sets the callback for listener failures.
func WithErrorHandler(h ErrorHandler) Option {
	return func(c *spaceConfig) {
		c.errorHandler = h
	}
}

// SendOption configures a single send.
type SendOption func(*sendConfig)

type sendConfig struct {
	includeSelf bool
	deferred    bool
}

func defaultSendConfig() sendConfig {
	return sendConfig{includeSelf: true}
}

// Deferred schedules every invocation on a later tick instead of running it
// before the send returns. The listener set is captured at send time: a
// listener removed afterwards still receives the deferred message.
//
// The whole delivery is submitted to the scheduler as one task once the send
// has captured it. With the default dispatch.Loop that task runs on another
// goroutine and may overlap the rest of the caller's work. A dispatch.Queue
// runs it only when its owner ticks, strictly after the send has returned.
func Deferred() SendOption {
	return func(c *sendConfig) {
		c.deferred = true
	}
}

// IncludeSelf controls whether descendant and ancestor sends deliver to the
// target level itself. The default is true. Exact sends ignore it.
func IncludeSelf(include bool) SendOption {
	return func(c *sendConfig) {
		c.includeSelf = include
	}
}
