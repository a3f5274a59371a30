package dispatch

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Loop runs submitted tasks one at a time, in FIFO order, on a single
// background goroutine.
//
// The goroutine is started on demand and exits as soon as the queue is
// empty, so an idle Loop holds no resources and needs no shutdown.
type Loop struct {
	mu      sync.Mutex
	queue   []Task
	running bool
	idle    chan struct{} // closed when the current drain goroutine exits

	panicHandler PanicHandler

	submitted atomic.Uint64
	executed  atomic.Uint64
	panicked  atomic.Uint64
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithLoopPanicHandler sets the handler for panics escaping a task.
func WithLoopPanicHandler(h PanicHandler) LoopOption {
	return func(l *Loop) {
		if h != nil {
			l.panicHandler = h
		}
	}
}

// NewLoop creates an idle loop.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{panicHandler: discardPanic}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Submit queues a task. It never blocks on task execution.
func (l *Loop) Submit(task Task) {
	if task == nil {
		return
	}
	l.submitted.Add(1)

	l.mu.Lock()
	l.queue = append(l.queue, task)
	if !l.running {
		l.running = true
		l.idle = make(chan struct{})
		go l.drain(l.idle)
	}
	l.mu.Unlock()
}

func (l *Loop) drain(idle chan struct{}) {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.running = false
			l.queue = nil
			close(idle)
			l.mu.Unlock()
			return
		}
		task := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.run(task)
	}
}

func (l *Loop) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			l.panicked.Add(1)
			stack := debug.Stack()
			func() {
				defer func() { _ = recover() }()
				l.panicHandler(r, stack)
			}()
		}
	}()
	l.executed.Add(1)
	task()
}

// Wait blocks until the loop has no queued or running tasks, or ctx is done.
// Tasks submitted by running tasks are waited for as well.
func (l *Loop) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		if !l.running {
			l.mu.Unlock()
			return nil
		}
		idle := l.idle
		l.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Pending returns the number of queued tasks not yet started.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Stats returns loop statistics.
func (l *Loop) Stats() LoopStats {
	return LoopStats{
		Submitted: l.submitted.Load(),
		Executed:  l.executed.Load(),
		Panicked:  l.panicked.Load(),
		Pending:   l.Pending(),
	}
}

// LoopStats contains statistics for a Loop.
type LoopStats struct {
	// Submitted is the total number of tasks accepted.
	Submitted uint64

	// Executed is the number of tasks started.
	Executed uint64

	// Panicked is the number of tasks that panicked.
	Panicked uint64

	// Pending is the current number of queued tasks.
	Pending int
}

// Queue is a Scheduler drained explicitly by its owner.
//
// It suits hosts that already own an event loop, such as an embedded
// interpreter whose state must only be touched from one goroutine.
type Queue struct {
	mu    sync.Mutex
	tasks []Task
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Submit queues a task for the next tick.
func (q *Queue) Submit(task Task) {
	if task == nil {
		return
	}
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Tick runs the tasks queued before the call, in FIFO order.
// Tasks submitted while ticking are left for the next tick.
// It returns the number of tasks run.
func (q *Queue) Tick() int {
	q.mu.Lock()
	batch := q.tasks
	q.tasks = nil
	q.mu.Unlock()

	for _, task := range batch {
		task()
	}
	return len(batch)
}

// Drain ticks until the queue is empty or maxTicks ticks have run.
// A maxTicks of zero or less means no limit.
func (q *Queue) Drain(maxTicks int) (int, error) {
	total := 0
	for ticks := 0; maxTicks <= 0 || ticks < maxTicks; ticks++ {
		n := q.Tick()
		if n == 0 {
			return total, nil
		}
		total += n
	}
	if q.Len() > 0 {
		return total, ErrQueueStalled
	}
	return total, nil
}
