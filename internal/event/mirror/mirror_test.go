package mirror

import (
	"context"
	"errors"
	"testing"

	"github.com/dshills/levelbus/internal/event"
	"github.com/dshills/levelbus/internal/event/path"
)

type seen struct {
	level string
	path  string
	data  any
}

func collect(into *[]seen) event.ListenerFunc {
	return func(ctx context.Context, msg event.Message) error {
		*into = append(*into, seen{level: msg.Level.String(), path: msg.Path.String(), data: msg.Data})
		return nil
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func TestMirror_Send(t *testing.T) {
	space := event.NewSpace()
	m := New(space)

	var direct, cached []seen
	_, err := space.Register("user.updated", collect(&direct))
	must(t, err)
	if _, err := m.Receive("user.updated", collect(&cached)); err != nil {
		t.Fatal(err)
	}

	if err := m.Send(context.Background(), "user.updated", 42); err != nil {
		t.Fatal(err)
	}

	if len(direct) != 1 || direct[0].data != 42 {
		t.Errorf("direct listener calls = %+v", direct)
	}
	if len(cached) != 1 || cached[0].data != 42 {
		t.Fatalf("cache listener calls = %+v", cached)
	}
	if cached[0].path != "__cache__receive.user.updated" {
		t.Errorf("mirrored path = %q", cached[0].path)
	}
}

func TestMirror_OriginalPath(t *testing.T) {
	space := event.NewSpace()
	m := New(space)

	var got path.Key
	var ok bool
	_, err := m.Receive([]string{"a", "b.c"}, event.ListenerFunc(func(ctx context.Context, msg event.Message) error {
		got, ok = m.OriginalPath(msg)
		return nil
	}))
	must(t, err)

	must(t, m.Send(context.Background(), []string{"a", "b.c"}, nil))
	if !ok || !got.Equal(path.Key{"a", "b.c"}) {
		t.Errorf("OriginalPath = %v, %v", got, ok)
	}

	if _, ok := m.OriginalPath(event.Message{Path: path.Parse("a.b")}); ok {
		t.Error("unmirrored message should report false")
	}
}

func TestMirror_NoDoubleMirror(t *testing.T) {
	space := event.NewSpace()
	m := New(space)

	var calls []seen
	_, err := space.Register("__cache__receive.x", collect(&calls))
	must(t, err)

	must(t, m.Send(context.Background(), "__cache__receive.x", nil))
	if len(calls) != 1 {
		t.Errorf("cache-addressed send delivered %d times, want 1", len(calls))
	}
	if ok, _ := space.Exists("__cache__receive.__cache__receive"); ok {
		t.Error("mirror must not nest the namespace")
	}
}

func TestMirror_PassThrough(t *testing.T) {
	space := event.NewSpace()
	m := New(space, WithMarker("shadow"))

	var calls, cached []seen
	_, err := space.Register("", collect(&calls))
	must(t, err)
	_, err = space.Register("a", collect(&calls))
	must(t, err)
	_, err = m.Receive("a", collect(&cached))
	must(t, err)

	must(t, m.SendAncestors(context.Background(), "a", nil))
	must(t, m.SendDescendants(context.Background(), "a", nil))

	if len(calls) != 3 {
		t.Errorf("pass-through sends delivered %d times, want 3", len(calls))
	}
	if len(cached) != 0 {
		t.Error("only exact sends are mirrored")
	}
	if m.Marker() != "shadow" || m.Space() != space {
		t.Error("accessors should reflect configuration")
	}
}

func TestMirror_InvalidPath(t *testing.T) {
	m := New(event.NewSpace())
	if err := m.Send(context.Background(), 3, nil); !errors.Is(err, event.ErrInvalidPathType) {
		t.Errorf("Send error = %v", err)
	}
	if _, err := m.Receive(3, collect(new([]seen))); !errors.Is(err, event.ErrInvalidPathType) {
		t.Errorf("Receive error = %v", err)
	}
}
