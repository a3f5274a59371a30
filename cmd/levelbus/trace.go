package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/tidwall/sjson"

	"github.com/dshills/levelbus/internal/event"
)

// tracer is a listener that writes each delivery as one JSON line.
type tracer struct {
	mu  sync.Mutex
	out io.Writer
}

func newTracer(out io.Writer) *tracer {
	return &tracer{out: out}
}

// Receive implements event.Listener.
func (t *tracer) Receive(ctx context.Context, msg event.Message) error {
	line, err := traceJSON(msg)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	_, err = fmt.Fprintln(t.out, string(line))
	return err
}

func traceJSON(msg event.Message) ([]byte, error) {
	fields := []struct {
		path  string
		value any
	}{
		{"path", msg.Path.String()},
		{"level", msg.Level.String()},
		{"data", msg.Data},
	}

	out := []byte("{}")
	for _, f := range fields {
		var err error
		if out, err = sjson.SetBytes(out, f.path, f.value); err != nil {
			return nil, fmt.Errorf("encode trace %s: %w", f.path, err)
		}
	}
	return out, nil
}

func statsJSON(s event.Stats) ([]byte, error) {
	fields := []struct {
		path  string
		value uint64
	}{
		{"stats.sends", s.Sends},
		{"stats.deliveries", s.Deliveries},
		{"stats.deferred", s.Deferred},
		{"stats.listener_errors", s.ListenerErrors},
		{"stats.listener_panics", s.ListenerPanics},
		{"stats.levels_created", s.LevelsCreated},
		{"stats.levels_pruned", s.LevelsPruned},
	}

	out := []byte("{}")
	for _, f := range fields {
		var err error
		if out, err = sjson.SetBytes(out, f.path, f.value); err != nil {
			return nil, fmt.Errorf("encode stats: %w", err)
		}
	}
	return out, nil
}
