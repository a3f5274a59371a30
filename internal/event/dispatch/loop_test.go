package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func waitLoop(t *testing.T, l *Loop) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("Wait() failed: %v", err)
	}
}

func TestLoop_FIFO(t *testing.T) {
	l := NewLoop()

	var mu sync.Mutex
	var order []int
	for i := 0; i < 100; i++ {
		i := i
		l.Submit(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	waitLoop(t, l)

	if len(order) != 100 {
		t.Fatalf("ran %d tasks, want 100", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("order[%d] = %d, tasks ran out of order", i, v)
		}
	}
}

func TestLoop_SubmitDoesNotBlock(t *testing.T) {
	l := NewLoop()
	release := make(chan struct{})
	ran := make(chan struct{})

	l.Submit(func() { <-release })
	l.Submit(func() { close(ran) })

	select {
	case <-ran:
		t.Fatal("second task ran before the first finished")
	default:
	}

	close(release)
	waitLoop(t, l)

	select {
	case <-ran:
	default:
		t.Fatal("second task never ran")
	}
}

func TestLoop_NestedSubmit(t *testing.T) {
	l := NewLoop()
	done := make(chan struct{})

	l.Submit(func() {
		l.Submit(func() { close(done) })
	})
	waitLoop(t, l)

	select {
	case <-done:
	default:
		t.Fatal("nested task was not waited for")
	}
}

func TestLoop_PanicRecovered(t *testing.T) {
	var mu sync.Mutex
	var recovered any
	l := NewLoop(WithLoopPanicHandler(func(value any, stack []byte) {
		mu.Lock()
		recovered = value
		mu.Unlock()
	}))

	after := false
	l.Submit(func() { panic("boom") })
	l.Submit(func() { after = true })
	waitLoop(t, l)

	mu.Lock()
	defer mu.Unlock()
	if recovered != "boom" {
		t.Errorf("panic handler got %v, want boom", recovered)
	}
	if !after {
		t.Error("loop stopped after a panicking task")
	}
	stats := l.Stats()
	if stats.Panicked != 1 || stats.Executed != 2 || stats.Submitted != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestLoop_WaitContext(t *testing.T) {
	l := NewLoop()
	release := make(chan struct{})
	defer close(release)
	l.Submit(func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() = %v, want DeadlineExceeded", err)
	}
}

func TestLoop_WaitIdle(t *testing.T) {
	if err := NewLoop().Wait(context.Background()); err != nil {
		t.Errorf("Wait() on idle loop = %v", err)
	}
}

func TestQueue_Tick(t *testing.T) {
	q := NewQueue()
	var order []string

	q.Submit(func() {
		order = append(order, "a")
		q.Submit(func() { order = append(order, "c") })
	})
	q.Submit(func() { order = append(order, "b") })

	if n := q.Tick(); n != 2 {
		t.Errorf("first Tick() ran %d, want 2", n)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("order after first tick = %v", order)
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1 task left for next tick", q.Len())
	}
	if n := q.Tick(); n != 1 || order[2] != "c" {
		t.Errorf("second Tick() ran %d, order %v", n, order)
	}
}

func TestQueue_Drain(t *testing.T) {
	q := NewQueue()
	count := 0
	var again func()
	again = func() {
		count++
		if count < 5 {
			q.Submit(again)
		}
	}
	q.Submit(again)

	n, err := q.Drain(0)
	if err != nil || n != 5 {
		t.Errorf("Drain(0) = %d, %v; want 5, nil", n, err)
	}
}

func TestQueue_DrainStalled(t *testing.T) {
	q := NewQueue()
	var forever func()
	forever = func() { q.Submit(forever) }
	q.Submit(forever)

	_, err := q.Drain(3)
	if !errors.Is(err, ErrQueueStalled) {
		t.Errorf("Drain(3) error = %v, want ErrQueueStalled", err)
	}
}
