package script

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/levelbus/internal/event"
	"github.com/dshills/levelbus/internal/event/dispatch"
	"github.com/dshills/levelbus/internal/event/mirror"
)

// DefaultMaxTicks bounds Drain when no limit is given to Runtime.Drain.
const DefaultMaxTicks = 1000

// GlobalName is the name of the table scripts use to reach the space.
const GlobalName = "space"

// sender is the send surface shared by *event.Space and *mirror.Mirror.
type sender interface {
	Send(ctx context.Context, p any, data any, opts ...event.SendOption) error
	SendDescendants(ctx context.Context, p any, data any, opts ...event.SendOption) error
	SendAncestors(ctx context.Context, p any, data any, opts ...event.SendOption) error
}

// Runtime binds a Lua state to an event space.
//
// A Runtime must only be used from the goroutine that created it.
type Runtime struct {
	L *lua.LState

	space  *event.Space
	queue  *dispatch.Queue
	mirror *mirror.Mirror
	sender sender

	logger *slog.Logger
	out    io.Writer

	handles map[string]*event.Handle
	closed  bool
}

// Option configures a Runtime.
type Option func(*runtimeConfig)

type runtimeConfig struct {
	logger     *slog.Logger
	out        io.Writer
	spaceOpts  []event.Option
	mirror     bool
	mirrorOpts []mirror.Option
}

// WithLogger sets the structured logger for the runtime and its space.
func WithLogger(logger *slog.Logger) Option {
	return func(c *runtimeConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithOutput redirects the Lua print function.
func WithOutput(w io.Writer) Option {
	return func(c *runtimeConfig) {
		if w != nil {
			c.out = w
		}
	}
}

// WithSpaceOptions passes options to the underlying space. A scheduler
// option is overridden: deferred work always goes through the runtime queue.
func WithSpaceOptions(opts ...event.Option) Option {
	return func(c *runtimeConfig) {
		c.spaceOpts = append(c.spaceOpts, opts...)
	}
}

// WithMirror routes exact sends made by scripts through a cache mirror.
func WithMirror(opts ...mirror.Option) Option {
	return func(c *runtimeConfig) {
		c.mirror = true
		c.mirrorOpts = append(c.mirrorOpts, opts...)
	}
}

// New creates a Runtime with a fresh space and a sandboxed Lua state.
func New(opts ...Option) *Runtime {
	cfg := runtimeConfig{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		out:    os.Stdout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	queue := dispatch.NewQueue()
	spaceOpts := append([]event.Option{event.WithLogger(cfg.logger)}, cfg.spaceOpts...)
	spaceOpts = append(spaceOpts, event.WithScheduler(queue))

	r := &Runtime{
		space:   event.NewSpace(spaceOpts...),
		queue:   queue,
		logger:  cfg.logger.With("component", "script"),
		out:     cfg.out,
		handles: make(map[string]*event.Handle),
	}
	r.sender = r.space
	if cfg.mirror {
		r.mirror = mirror.New(r.space, append([]mirror.Option{mirror.WithLogger(cfg.logger)}, cfg.mirrorOpts...)...)
		r.sender = r.mirror
	}

	r.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(r.L)
	r.L.SetGlobal("print", r.L.NewFunction(r.print))
	r.L.SetGlobal(GlobalName, r.module(r.L))

	return r
}

// openSafeLibraries opens the Lua libraries that cannot reach the host.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// Space returns the space scripts operate on.
func (r *Runtime) Space() *event.Space {
	return r.space
}

// Mirror returns the cache mirror, or nil when mirroring is off.
func (r *Runtime) Mirror() *mirror.Mirror {
	return r.mirror
}

// Handle returns the listener handle behind a Lua handle ID.
func (r *Runtime) Handle(id string) (*event.Handle, bool) {
	h, ok := r.handles[id]
	return h, ok
}

// DoString runs a chunk of Lua. ctx bounds the chunk's execution, not the
// deferred work it queues.
func (r *Runtime) DoString(ctx context.Context, src string) error {
	if r.closed {
		return ErrClosed
	}
	r.L.SetContext(ctx)
	defer r.L.RemoveContext()

	if err := r.L.DoString(src); err != nil {
		return fmt.Errorf("run script: %w", err)
	}
	return nil
}

// DoFile runs the Lua file at path.
func (r *Runtime) DoFile(ctx context.Context, path string) error {
	if r.closed {
		return ErrClosed
	}
	r.L.SetContext(ctx)
	defer r.L.RemoveContext()

	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("run script %s: %w", path, err)
	}
	return nil
}

// Drain runs deferred deliveries until none remain or maxTicks ticks have
// run. A maxTicks of zero uses DefaultMaxTicks.
func (r *Runtime) Drain(maxTicks int) (int, error) {
	if r.closed {
		return 0, ErrClosed
	}
	if maxTicks <= 0 {
		maxTicks = DefaultMaxTicks
	}
	return r.queue.Drain(maxTicks)
}

// Pending returns the number of queued deferred sends.
func (r *Runtime) Pending() int {
	return r.queue.Len()
}

// Close releases the Lua state. Listeners registered by scripts stay in the
// space but fail with ErrClosed when invoked.
func (r *Runtime) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.L.Close()
	r.handles = make(map[string]*event.Handle)
}

// print writes its arguments tab-separated to the runtime output.
func (r *Runtime) print(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	fmt.Fprintln(r.out, strings.Join(parts, "\t"))
	return 0
}
