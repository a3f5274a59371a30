package script

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dshills/levelbus/internal/event"
)

func newTestRuntime(t *testing.T, opts ...Option) (*Runtime, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	r := New(append([]Option{WithOutput(&out)}, opts...)...)
	t.Cleanup(r.Close)
	return r, &out
}

func mustRun(t *testing.T, r *Runtime, src string) {
	t.Helper()
	if err := r.DoString(context.Background(), src); err != nil {
		t.Fatalf("DoString: %v", err)
	}
}

func lines(out *bytes.Buffer) []string {
	s := strings.TrimSpace(out.String())
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func equalLines(got, want []string) bool {
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

func TestRuntime_OnAndSend(t *testing.T) {
	r, out := newTestRuntime(t)

	mustRun(t, r, `
		space.on("app.window", function(data, msg)
			print(msg.path, msg.level, data.title)
		end)
		space.send("app.window", {title = "main"})
		space.send({"app", "window"}, {title = "array"})
	`)

	want := []string{
		"app.window\tapp.window\tmain",
		"app.window\tapp.window\tarray",
	}
	if got := lines(out); !equalLines(got, want) {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestRuntime_Traversals(t *testing.T) {
	r, out := newTestRuntime(t)

	mustRun(t, r, `
		local function say(name)
			return function(data) print(name, data) end
		end
		space.on("", say("root"))
		space.on("a", say("a"))
		space.on("a.b", say("ab"))
		space.send_ancestors("a.b", 1)
		space.send_descendants("a", 2, {include_self = false})
	`)

	want := []string{"root\t1", "a\t1", "ab\t1", "ab\t2"}
	if got := lines(out); !equalLines(got, want) {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestRuntime_OffAndHas(t *testing.T) {
	r, out := newTestRuntime(t)

	mustRun(t, r, `
		local a = space.on("x", function() end)
		local b = space.on("x", function() end)
		print(space.has("x", a, b))
		space.off("x", a)
		print(space.has("x", a), space.has("x", b))
		space.off("x")
		print(space.has("x"), space.exists("x"))
		print(space.has("x", "nope"))
	`)

	want := []string{"true", "false\ttrue", "false\ttrue", "false"}
	if got := lines(out); !equalLines(got, want) {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestRuntime_Once(t *testing.T) {
	r, out := newTestRuntime(t)

	mustRun(t, r, `
		id = space.once("ready", function(data) print("ready", data) end)
		space.send("ready", "first")
		space.send("ready", "second")
		print(space.has("ready", id))
	`)

	want := []string{"ready\tfirst", "false"}
	if got := lines(out); !equalLines(got, want) {
		t.Errorf("output = %q, want %q", got, want)
	}
	if len(r.handles) != 0 {
		t.Errorf("fired once handle still tracked: %v", r.handles)
	}
}

func TestRuntime_DeferredRunsOnDrain(t *testing.T) {
	r, out := newTestRuntime(t)

	mustRun(t, r, `
		space.on("tick", function(n) print("tick", n) end)
		space.send("tick", 1, {deferred = true})
		print("sent")
	`)

	if got := lines(out); !equalLines(got, []string{"sent"}) {
		t.Fatalf("deferred send ran inline: %q", got)
	}
	if r.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", r.Pending())
	}

	n, err := r.Drain(0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Drain ran %d tasks, want 1", n)
	}
	if got := lines(out); !equalLines(got, []string{"sent", "tick\t1"}) {
		t.Errorf("output = %q", got)
	}
}

func TestRuntime_CancelDescendantsAndAncestors(t *testing.T) {
	r, out := newTestRuntime(t)

	mustRun(t, r, `
		space.on("", function() end)
		space.on("a", function() end)
		space.on("a.b", function() end)
		space.on("a.b.c", function() end)

		space.cancel_ancestors("a.b")
		print(space.has(""), space.has("a"), space.has("a.b"))

		space.cancel_descendants("a.b", true)
		print(space.exists("a.b"), space.exists("a.b.c"), space.has("a.b"))
		print(space.has_descendants("", true), space.has_ancestors("a.b.c"))
	`)

	want := []string{
		"false\tfalse\ttrue",
		"true\tfalse\tfalse",
		"false\tfalse",
	}
	if got := lines(out); !equalLines(got, want) {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestRuntime_ChildrenAndPayload(t *testing.T) {
	r, out := newTestRuntime(t)

	mustRun(t, r, `
		space.on("p.z", function() end)
		space.on("p.y", function() end)
		print(table.concat(space.children("p"), ","))
		space.set_payload("p", {n = 3})
		print(space.payload("p").n, space.payload("q"))
	`)

	want := []string{"z,y", "3\tnil"}
	if got := lines(out); !equalLines(got, want) {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestRuntime_ArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"bad path", `space.on(42, function() end)`, event.ErrInvalidPathType.Error()},
		{"bad listener", `space.on("a", "not a function")`, event.ErrInvalidListenerType.Error()},
		{"bad segment", `space.send({"a", 1})`, "path segments must be strings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRuntime(t)
			err := r.DoString(context.Background(), tt.src)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want mention of %q", err, tt.want)
			}
			if !IsScriptError(err) {
				t.Errorf("IsScriptError(%v) = false", err)
			}
		})
	}
}

func TestRuntime_ListenerErrorReachesHandler(t *testing.T) {
	var got []error
	r, _ := newTestRuntime(t, WithSpaceOptions(event.WithErrorHandler(func(err error) {
		got = append(got, err)
	})))

	mustRun(t, r, `
		space.on("boom", function() error("kaboom") end)
		space.send("boom")
	`)

	if len(got) != 1 {
		t.Fatalf("error handler calls = %d, want 1", len(got))
	}
	var le *event.ListenerError
	if !errors.As(got[0], &le) {
		t.Fatalf("error = %T, want *event.ListenerError", got[0])
	}
	if !strings.Contains(le.Error(), "kaboom") {
		t.Errorf("error = %v", le)
	}
}

func TestRuntime_HostSendReachesScript(t *testing.T) {
	r, out := newTestRuntime(t)

	mustRun(t, r, `space.on("host", function(data) print(data.k, data.list[2]) end)`)

	err := r.Space().Send(context.Background(), "host", map[string]any{
		"k":    "v",
		"list": []any{"a", "b"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := lines(out); !equalLines(got, []string{"v\tb"}) {
		t.Errorf("output = %q", got)
	}
}

func TestRuntime_Mirror(t *testing.T) {
	r, out := newTestRuntime(t, WithMirror())

	mustRun(t, r, `
		space.on("__cache__receive.user", function(data, msg) print("cache", msg.path, data) end)
		space.on("user", function(data) print("user", data) end)
		space.send("user", 7)
	`)

	want := []string{"user\t7", "cache\t__cache__receive.user\t7"}
	if got := lines(out); !equalLines(got, want) {
		t.Errorf("output = %q, want %q", got, want)
	}
	if r.Mirror() == nil {
		t.Error("Mirror() = nil with WithMirror")
	}
}

func TestRuntime_Closed(t *testing.T) {
	r := New(WithOutput(&bytes.Buffer{}))
	r.Close()
	r.Close()

	if err := r.DoString(context.Background(), "print(1)"); !errors.Is(err, ErrClosed) {
		t.Errorf("DoString after Close = %v", err)
	}
	if _, err := r.Drain(0); !errors.Is(err, ErrClosed) {
		t.Errorf("Drain after Close = %v", err)
	}
}

func TestRuntime_SandboxHidesLoaders(t *testing.T) {
	r, out := newTestRuntime(t)
	mustRun(t, r, `print(type(dofile), type(load), type(io), type(os))`)

	if got := lines(out); !equalLines(got, []string{"nil\tnil\tnil\tnil"}) {
		t.Errorf("output = %q", got)
	}
}
