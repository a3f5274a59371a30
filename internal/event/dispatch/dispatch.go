package dispatch

import (
	"context"
	"time"
)

// Call is one guarded listener invocation.
type Call func(ctx context.Context) error

// Task is a unit of deferred work.
type Task func()

// Scheduler accepts tasks for execution on a later tick.
//
// Tasks submitted from one goroutine run in submission order. Submit never
// blocks on task execution and never drops a task.
type Scheduler interface {
	Submit(task Task)
}

// PanicHandler observes a recovered panic and its stack trace.
type PanicHandler func(value any, stack []byte)

func discardPanic(any, []byte) {}

// Result is the outcome of one Call.
type Result struct {
	// Err is the error returned by the call, or the context error when the
	// call was skipped.
	Err error

	// Panicked is set when the call panicked; PanicValue and PanicStack
	// describe the panic.
	Panicked   bool
	PanicValue any
	PanicStack []byte

	// Skipped is set when the context was already done and the call never ran.
	Skipped bool

	// Duration is how long the call ran.
	Duration time.Duration
}

// OK reports whether the call ran and returned nil.
func (r Result) OK() bool {
	return !r.Skipped && !r.Panicked && r.Err == nil
}
