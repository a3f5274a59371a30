package event

import (
	"context"
	"sync"
	"testing"
	"time"
)

// call records one listener invocation.
type call struct {
	name  string
	level string
	path  string
	data  any
}

// recorder collects invocations from several named listeners.
type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) listener(name string) ListenerFunc {
	return func(ctx context.Context, msg Message) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, call{
			name:  name,
			level: msg.Level.String(),
			path:  msg.Path.String(),
			data:  msg.Data,
		})
		return nil
	}
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.name
	}
	return out
}

func (r *recorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.name == name {
			n++
		}
	}
	return n
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

func equalNames(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func mustRegister(t *testing.T, s *Space, p any, l Listener) *Handle {
	t.Helper()
	h, err := s.Register(p, l)
	if err != nil {
		t.Fatalf("Register(%v) failed: %v", p, err)
	}
	return h
}

func mustRegisterOnce(t *testing.T, s *Space, p any, l Listener) *Handle {
	t.Helper()
	h, err := s.RegisterOnce(p, l)
	if err != nil {
		t.Fatalf("RegisterOnce(%v) failed: %v", p, err)
	}
	return h
}

// mustOK fails the test when a space operation returns an error.
func mustOK(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func waitSpace(t *testing.T, s *Space) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait() failed: %v", err)
	}
}
