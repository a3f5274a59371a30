package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/tidwall/gjson"

	"github.com/dshills/levelbus/internal/config"
	"github.com/dshills/levelbus/internal/event"
	"github.com/dshills/levelbus/internal/event/dispatch"
	"github.com/dshills/levelbus/internal/event/mirror"
	"github.com/dshills/levelbus/internal/script"
)

// sender is the send surface shared by *event.Space and *mirror.Mirror.
type sender interface {
	Send(ctx context.Context, p any, data any, opts ...event.SendOption) error
	SendDescendants(ctx context.Context, p any, data any, opts ...event.SendOption) error
	SendAncestors(ctx context.Context, p any, data any, opts ...event.SendOption) error
}

// bus is one space plus the means to send into it and settle deferred work.
type bus struct {
	space   *event.Space
	sender  sender
	runtime *script.Runtime
	settle  func(ctx context.Context) error
	close   func()
}

func mirrorOptions(cfg config.Config, logger *slog.Logger) []mirror.Option {
	opts := []mirror.Option{mirror.WithLogger(logger)}
	if cfg.MirrorMarker != "" {
		opts = append(opts, mirror.WithMarker(cfg.MirrorMarker))
	}
	return opts
}

// newBus builds a plain space whose scheduler follows cfg.DeferredMode.
func newBus(cfg config.Config, logger *slog.Logger, spaceOpts []event.Option) *bus {
	b := &bus{close: func() {}}

	var scheduler dispatch.Scheduler
	if cfg.DeferredMode == config.DeferredQueue {
		q := dispatch.NewQueue()
		scheduler = q
		b.settle = func(context.Context) error {
			_, err := q.Drain(script.DefaultMaxTicks)
			return err
		}
	} else {
		loop := dispatch.NewLoop(dispatch.WithLoopPanicHandler(func(v any, _ []byte) {
			logger.Error("deferred task panicked", "panic", v)
		}))
		scheduler = loop
		b.settle = loop.Wait
	}

	opts := append(cfg.SpaceOptions(logger), spaceOpts...)
	b.space = event.NewSpace(append(opts, event.WithScheduler(scheduler))...)
	b.sender = b.space
	if cfg.CacheMirror {
		b.sender = mirror.New(b.space, mirrorOptions(cfg, logger)...)
	}
	return b
}

// newScriptBus builds a Lua runtime. Its deferred work always goes through
// the runtime queue, whatever cfg.DeferredMode says.
func newScriptBus(cfg config.Config, logger *slog.Logger, spaceOpts []event.Option, out io.Writer) *bus {
	if cfg.DeferredMode != config.DeferredQueue {
		logger.Debug("scripts drain deferred sends on the interpreter goroutine", "deferred_mode", cfg.DeferredMode)
	}

	opts := []script.Option{
		script.WithLogger(logger),
		script.WithOutput(out),
		script.WithSpaceOptions(append(cfg.SpaceOptions(nil), spaceOpts...)...),
	}
	if cfg.CacheMirror {
		opts = append(opts, script.WithMirror(mirrorOptions(cfg, logger)...))
	}
	rt := script.New(opts...)

	b := &bus{
		space:   rt.Space(),
		sender:  rt.Space(),
		runtime: rt,
		close:   rt.Close,
	}
	if m := rt.Mirror(); m != nil {
		b.sender = m
	}
	b.settle = func(context.Context) error {
		_, err := rt.Drain(script.DefaultMaxTicks)
		return err
	}
	return b
}

// execute runs one session: script, send, settle and report.
func execute(ctx context.Context, cfg config.Config, opts options, logger *slog.Logger, out io.Writer) int {
	var failures atomic.Int64
	spaceOpts := []event.Option{
		event.WithErrorHandler(func(err error) {
			failures.Add(1)
		}),
	}

	var b *bus
	if opts.script != "" {
		b = newScriptBus(cfg, logger, spaceOpts, out)
	} else {
		b = newBus(cfg, logger, spaceOpts)
	}
	defer b.close()

	tr := newTracer(out)
	for _, p := range opts.traces {
		if _, err := b.space.Register(p, tr); err != nil {
			logger.Error("trace registration failed", "path", p, "error", err)
			return 1
		}
	}

	if b.runtime != nil {
		if err := b.runtime.DoFile(ctx, opts.script); err != nil {
			logger.Error("script failed", "script", opts.script, "error", err)
			return 1
		}
	}

	if opts.send != "" {
		data, err := parseData(opts.data)
		if err != nil {
			logger.Error("invalid -data", "error", err)
			return 2
		}
		if err := sendOnce(ctx, b.sender, opts, data); err != nil {
			logger.Error("send failed", "path", opts.send, "error", err)
			return 1
		}
	}

	if err := b.settle(ctx); err != nil {
		logger.Error("deferred deliveries did not settle", "error", err)
		return 1
	}

	if opts.stats {
		line, err := statsJSON(b.space.Stats())
		if err != nil {
			logger.Error("encoding stats", "error", err)
			return 1
		}
		fmt.Fprintln(out, string(line))
	}

	if n := failures.Load(); n > 0 {
		logger.Warn("listeners failed", "count", n)
		return 1
	}
	return 0
}

func sendOnce(ctx context.Context, s sender, opts options, data any) error {
	var sendOpts []event.SendOption
	if opts.deferred {
		sendOpts = append(sendOpts, event.Deferred())
	}
	if opts.noSelf {
		sendOpts = append(sendOpts, event.IncludeSelf(false))
	}

	switch opts.mode {
	case modeDescendants:
		return s.SendDescendants(ctx, opts.send, data, sendOpts...)
	case modeAncestors:
		return s.SendAncestors(ctx, opts.send, data, sendOpts...)
	default:
		return s.Send(ctx, opts.send, data, sendOpts...)
	}
}

// parseData decodes a JSON payload into plain Go values. An empty string
// means no data.
func parseData(raw string) (any, error) {
	if raw == "" {
		return nil, nil
	}
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("not valid JSON: %q", raw)
	}
	return gjson.Parse(raw).Value(), nil
}
