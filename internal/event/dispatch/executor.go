package dispatch

import (
	"context"
	"runtime/debug"
	"time"
)

// Executor runs calls inline with panic recovery, an optional deadline and
// timing.
type Executor struct {
	panicHandler PanicHandler
	timeout      time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorPanicHandler sets the observer for recovered panics.
func WithExecutorPanicHandler(h PanicHandler) ExecutorOption {
	return func(e *Executor) {
		if h != nil {
			e.panicHandler = h
		}
	}
}

// WithExecutorTimeout bounds every call with a context deadline.
// Zero disables the deadline.
func WithExecutorTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		if timeout >= 0 {
			e.timeout = timeout
		}
	}
}

// NewExecutor creates an executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{panicHandler: discardPanic}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run invokes call on the current goroutine. A done ctx skips the call. The
// deadline only reaches calls that watch their context.
func (e *Executor) Run(ctx context.Context, call Call) (result Result) {
	if err := ctx.Err(); err != nil {
		return Result{Err: err, Skipped: true}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)

		r := recover()
		if r == nil {
			return
		}
		result.Panicked = true
		result.PanicValue = r
		result.PanicStack = debug.Stack()
		e.observe(r, result.PanicStack)
	}()

	result.Err = call(ctx)
	return result
}

// observe reports a panic; a panicking observer is swallowed.
func (e *Executor) observe(value any, stack []byte) {
	defer func() { _ = recover() }()
	e.panicHandler(value, stack)
}
