package script

import (
	"context"
	"errors"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/levelbus/internal/event"
)

// module builds the global space table.
func (r *Runtime) module(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	L.SetFuncs(mod, map[string]lua.LGFunction{
		"on":                 r.on,
		"once":               r.once,
		"off":                r.off,
		"send":               r.send,
		"send_descendants":   r.sendDescendants,
		"send_ancestors":     r.sendAncestors,
		"cancel_descendants": r.cancelDescendants,
		"cancel_ancestors":   r.cancelAncestors,
		"has":                r.has,
		"has_descendants":    r.hasDescendants,
		"has_ancestors":      r.hasAncestors,
		"exists":             r.exists,
		"children":           r.children,
		"set_payload":        r.setPayload,
		"payload":            r.payload,
	})
	return mod
}

// checkPath reads a dotted string or an array of segments.
func checkPath(L *lua.LState, n int) any {
	switch v := L.Get(n).(type) {
	case lua.LString:
		return string(v)
	case *lua.LTable:
		segments := make([]string, 0, v.Len())
		for i := 1; i <= v.Len(); i++ {
			s, ok := v.RawGetInt(i).(lua.LString)
			if !ok {
				L.ArgError(n, "path segments must be strings")
				return nil
			}
			segments = append(segments, string(s))
		}
		return segments
	default:
		L.ArgError(n, event.ErrInvalidPathType.Error())
		return nil
	}
}

func checkListener(L *lua.LState, n int) *lua.LFunction {
	fn, ok := L.Get(n).(*lua.LFunction)
	if !ok {
		L.ArgError(n, event.ErrInvalidListenerType.Error())
		return nil
	}
	return fn
}

// raise turns a Go error into a Lua error.
func raise(L *lua.LState, op string, err error) int {
	L.RaiseError("%s: %s", op, err.Error())
	return 0
}

// luaContext returns the context bound to the running chunk. Callbacks run
// from Drain have none.
func luaContext(L *lua.LState) context.Context {
	if ctx := L.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// sendOptions reads {deferred = bool, include_self = bool}.
func sendOptions(L *lua.LState, n int) []event.SendOption {
	t := L.OptTable(n, nil)
	if t == nil {
		return nil
	}
	var opts []event.SendOption
	if v, ok := t.RawGetString("deferred").(lua.LBool); ok && bool(v) {
		opts = append(opts, event.Deferred())
	}
	if v, ok := t.RawGetString("include_self").(lua.LBool); ok {
		opts = append(opts, event.IncludeSelf(bool(v)))
	}
	return opts
}

// listener adapts a Lua function. The function is called as fn(data, msg)
// where msg carries path, level and segments. A Lua error becomes the
// listener's error.
func (r *Runtime) listener(fn *lua.LFunction, onDone func()) event.Listener {
	return event.ListenerFunc(func(ctx context.Context, msg event.Message) error {
		if r.closed {
			return ErrClosed
		}
		if onDone != nil {
			defer onDone()
		}

		L := r.L
		info := L.NewTable()
		info.RawSetString("path", lua.LString(msg.Path.String()))
		info.RawSetString("level", lua.LString(msg.Level.String()))
		info.RawSetString("segments", toLua(L, []string(msg.Path)))

		return L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, toLua(L, msg.Data), info)
	})
}

// on(path, fn) -> id
func (r *Runtime) on(L *lua.LState) int {
	p := checkPath(L, 1)
	fn := checkListener(L, 2)

	h, err := r.space.Register(p, r.listener(fn, nil))
	if err != nil {
		return raise(L, "on", err)
	}
	r.handles[h.ID()] = h
	r.logger.Debug("script listener registered", "handle", h.ID())

	L.Push(lua.LString(h.ID()))
	return 1
}

// once(path, fn) -> id
func (r *Runtime) once(L *lua.LState) int {
	p := checkPath(L, 1)
	fn := checkListener(L, 2)

	var id string
	h, err := r.space.RegisterOnce(p, r.listener(fn, func() {
		delete(r.handles, id)
	}))
	if err != nil {
		return raise(L, "once", err)
	}
	id = h.ID()
	r.handles[id] = h

	L.Push(lua.LString(id))
	return 1
}

// handleArgs resolves the handle IDs from argument n onward. Unknown IDs
// are reported through ok.
func (r *Runtime) handleArgs(L *lua.LState, n int) (handles []*event.Handle, ok bool) {
	ok = true
	for i := n; i <= L.GetTop(); i++ {
		h, found := r.handles[L.CheckString(i)]
		if !found {
			ok = false
			continue
		}
		handles = append(handles, h)
	}
	return handles, ok
}

// off(path, id...) -> nil
// With no IDs the level's whole listener set is cleared.
func (r *Runtime) off(L *lua.LState) int {
	p := checkPath(L, 1)
	handles, _ := r.handleArgs(L, 2)
	if L.GetTop() >= 2 && len(handles) == 0 {
		return 0
	}

	if err := r.space.Cancel(p, handles...); err != nil {
		return raise(L, "off", err)
	}
	for _, h := range handles {
		delete(r.handles, h.ID())
	}
	return 0
}

// send(path, data?, opts?) -> nil
func (r *Runtime) send(L *lua.LState) int {
	p := checkPath(L, 1)
	if err := r.sender.Send(luaContext(L), p, toGo(L.Get(2)), sendOptions(L, 3)...); err != nil {
		return raise(L, "send", err)
	}
	return 0
}

// send_descendants(path, data?, opts?) -> nil
func (r *Runtime) sendDescendants(L *lua.LState) int {
	p := checkPath(L, 1)
	if err := r.sender.SendDescendants(luaContext(L), p, toGo(L.Get(2)), sendOptions(L, 3)...); err != nil {
		return raise(L, "send_descendants", err)
	}
	return 0
}

// send_ancestors(path, data?, opts?) -> nil
func (r *Runtime) sendAncestors(L *lua.LState) int {
	p := checkPath(L, 1)
	if err := r.sender.SendAncestors(luaContext(L), p, toGo(L.Get(2)), sendOptions(L, 3)...); err != nil {
		return raise(L, "send_ancestors", err)
	}
	return 0
}

// cancel_descendants(path, include_self?) -> nil
func (r *Runtime) cancelDescendants(L *lua.LState) int {
	p := checkPath(L, 1)
	if err := r.space.CancelDescendants(p, L.OptBool(2, false)); err != nil {
		return raise(L, "cancel_descendants", err)
	}
	return 0
}

// cancel_ancestors(path, include_self?) -> nil
func (r *Runtime) cancelAncestors(L *lua.LState) int {
	p := checkPath(L, 1)
	if err := r.space.CancelAncestors(p, L.OptBool(2, false)); err != nil {
		return raise(L, "cancel_ancestors", err)
	}
	return 0
}

// has(path, id...) -> bool
func (r *Runtime) has(L *lua.LState) int {
	p := checkPath(L, 1)
	handles, known := r.handleArgs(L, 2)
	if !known {
		L.Push(lua.LFalse)
		return 1
	}
	ok, err := r.space.Has(p, handles...)
	if err != nil {
		return raise(L, "has", err)
	}
	L.Push(lua.LBool(ok))
	return 1
}

// has_descendants(path, include_self?) -> bool
func (r *Runtime) hasDescendants(L *lua.LState) int {
	p := checkPath(L, 1)
	ok, err := r.space.HasDescendants(p, L.OptBool(2, true))
	if err != nil {
		return raise(L, "has_descendants", err)
	}
	L.Push(lua.LBool(ok))
	return 1
}

// has_ancestors(path, include_self?) -> bool
func (r *Runtime) hasAncestors(L *lua.LState) int {
	p := checkPath(L, 1)
	ok, err := r.space.HasAncestors(p, L.OptBool(2, true))
	if err != nil {
		return raise(L, "has_ancestors", err)
	}
	L.Push(lua.LBool(ok))
	return 1
}

// exists(path) -> bool
func (r *Runtime) exists(L *lua.LState) int {
	ok, err := r.space.Exists(checkPath(L, 1))
	if err != nil {
		return raise(L, "exists", err)
	}
	L.Push(lua.LBool(ok))
	return 1
}

// children(path) -> {name...}
func (r *Runtime) children(L *lua.LState) int {
	names, err := r.space.Children(checkPath(L, 1))
	if err != nil {
		return raise(L, "children", err)
	}
	L.Push(toLua(L, names))
	return 1
}

// set_payload(path, value) -> nil
func (r *Runtime) setPayload(L *lua.LState) int {
	p := checkPath(L, 1)
	if err := r.space.SetPayload(p, toGo(L.Get(2))); err != nil {
		return raise(L, "set_payload", err)
	}
	return 0
}

// payload(path) -> value | nil
func (r *Runtime) payload(L *lua.LState) int {
	v, ok, err := r.space.Payload(checkPath(L, 1))
	if err != nil {
		return raise(L, "payload", err)
	}
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(toLua(L, v))
	return 1
}

// IsScriptError reports whether err came from Lua code rather than the host.
func IsScriptError(err error) bool {
	var apiErr *lua.ApiError
	return errors.As(err, &apiErr)
}
