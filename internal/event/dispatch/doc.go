// Package dispatch provides listener execution and deferred scheduling for
// the event space.
//
// # Execution
//
// Executor runs a single call inline with panic recovery, timing and an
// optional deadline. A misbehaving listener never unwinds into the code
// that sent the message; panics are reported via a configurable
// PanicHandler callback and recorded in the returned Result.
//
// # Deferred Delivery
//
// A Scheduler accepts tasks for a later tick. Two implementations are
// provided:
//
//   - Loop: a single background goroutine that drains tasks in FIFO order.
//     It starts when work arrives and exits when the queue empties.
//
//   - Queue: a passive FIFO drained by its owner via Tick or Drain. Used when
//     the host already runs its own loop and listeners must execute there.
//
// # Usage
//
//	loop := dispatch.NewLoop()
//	loop.Submit(func() { fmt.Println("later") })
//	_ = loop.Wait(ctx)
//
//	exec := dispatch.NewExecutor(dispatch.WithExecutorTimeout(time.Second))
//	result := exec.Run(ctx, func(ctx context.Context) error {
//	    return listener.Receive(ctx, msg)
//	})
//	if !result.OK() {
//	    // Handle error or panic
//	}
package dispatch
