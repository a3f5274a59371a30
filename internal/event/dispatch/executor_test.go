package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestResult_OK(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   bool
	}{
		{"success", Result{}, true},
		{"error", Result{Err: errors.New("error")}, false},
		{"panic", Result{Panicked: true}, false},
		{"skipped", Result{Skipped: true, Err: context.Canceled}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.OK(); got != tt.want {
				t.Errorf("OK() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExecutor_Run_Success(t *testing.T) {
	e := NewExecutor()

	called := false
	result := e.Run(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})

	if !result.OK() || !called {
		t.Errorf("expected a successful call, got %+v", result)
	}
}

func TestExecutor_Run_Error(t *testing.T) {
	e := NewExecutor()
	want := errors.New("listener failed")

	result := e.Run(context.Background(), func(ctx context.Context) error {
		return want
	})

	if !errors.Is(result.Err, want) {
		t.Errorf("Err = %v, want %v", result.Err, want)
	}
	if result.Panicked || result.Skipped {
		t.Errorf("unexpected result flags: %+v", result)
	}
}

func TestExecutor_Run_Panic(t *testing.T) {
	var reported any
	e := NewExecutor(WithExecutorPanicHandler(func(value any, stack []byte) {
		reported = value
		if len(stack) == 0 {
			t.Error("expected a stack trace")
		}
	}))

	result := e.Run(context.Background(), func(ctx context.Context) error {
		panic("boom")
	})

	if !result.Panicked {
		t.Fatal("expected Panicked to be true")
	}
	if result.PanicValue != "boom" {
		t.Errorf("PanicValue = %v, want boom", result.PanicValue)
	}
	if reported != "boom" {
		t.Errorf("panic handler got %v, want boom", reported)
	}
}

func TestExecutor_Run_PanicHandlerPanics(t *testing.T) {
	e := NewExecutor(WithExecutorPanicHandler(func(value any, stack []byte) {
		panic("handler exploded")
	}))

	result := e.Run(context.Background(), func(ctx context.Context) error {
		panic("boom")
	})

	if !result.Panicked {
		t.Error("expected Panicked to be true")
	}
}

func TestExecutor_Run_ContextDone(t *testing.T) {
	e := NewExecutor()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	result := e.Run(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})

	if called {
		t.Error("call should not run with a cancelled context")
	}
	if !result.Skipped {
		t.Error("expected Skipped to be true")
	}
	if !errors.Is(result.Err, context.Canceled) {
		t.Errorf("Err = %v, want context.Canceled", result.Err)
	}
}

func TestExecutor_Timeout(t *testing.T) {
	e := NewExecutor(WithExecutorTimeout(10 * time.Millisecond))

	result := e.Run(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	if !errors.Is(result.Err, context.DeadlineExceeded) {
		t.Errorf("Err = %v, want DeadlineExceeded", result.Err)
	}
	if result.Duration <= 0 {
		t.Error("expected Duration to be recorded")
	}
}
