package event

import (
	"context"

	"github.com/dshills/levelbus/internal/event/dispatch"
	"github.com/dshills/levelbus/internal/event/path"
)

// delivery is one level's listener snapshot, captured under the lock.
type delivery struct {
	level    *level
	name     path.Key
	handlers []*Handle
}

func capture(l *level) delivery {
	return delivery{level: l, name: l.fullName(), handlers: l.snapshot()}
}

// Send delivers data to the listeners registered at exactly p, in
// registration order. Listeners at other levels never fire. A missing level
// is a no-op.
func (s *Space) Send(ctx context.Context, p any, data any, opts ...SendOption) error {
	key, config, err := prepareSend(p, opts)
	if err != nil {
		return err
	}

	s.mu.Lock()
	var batch []delivery
	if l := s.resolve(key, false); l != nil {
		batch = append(batch, capture(l))
	}
	s.mu.Unlock()

	s.deliver(ctx, key, data, batch, config.deferred)
	return nil
}

// SendDescendants delivers data to the level at p (unless IncludeSelf(false)
// is given) and then to every level below it in pre-order, parents before
// children and children in creation order.
func (s *Space) SendDescendants(ctx context.Context, p any, data any, opts ...SendOption) error {
	key, config, err := prepareSend(p, opts)
	if err != nil {
		return err
	}

	s.mu.Lock()
	var batch []delivery
	if l := s.resolve(key, false); l != nil {
		var collect func(*level)
		collect = func(n *level) {
			batch = append(batch, capture(n))
			for _, c := range n.orderedChildren() {
				collect(c)
			}
		}
		if config.includeSelf {
			batch = append(batch, capture(l))
		}
		for _, c := range l.orderedChildren() {
			collect(c)
		}
	}
	s.mu.Unlock()

	s.deliver(ctx, key, data, batch, config.deferred)
	return nil
}

// SendAncestors delivers data along the walk from the root toward p: the
// root first, then each level on the way, then p itself unless
// IncludeSelf(false) is given. If a segment is missing the walk stops there;
// the levels already visited still receive the message.
func (s *Space) SendAncestors(ctx context.Context, p any, data any, opts ...SendOption) error {
	key, config, err := prepareSend(p, opts)
	if err != nil {
		return err
	}

	s.mu.Lock()
	levels, complete := s.chain(key)
	targets := chainTargets(levels, complete, config.includeSelf)
	batch := make([]delivery, 0, len(targets))
	for _, l := range targets {
		batch = append(batch, capture(l))
	}
	s.mu.Unlock()

	s.deliver(ctx, key, data, batch, config.deferred)
	return nil
}

func prepareSend(p any, opts []SendOption) (path.Key, sendConfig, error) {
	config := defaultSendConfig()
	for _, opt := range opts {
		opt(&config)
	}
	key, err := path.Normalize(p)
	return key, config, err
}

// deliver invokes every captured handler in order, inline or through the
// scheduler. A deferred send is handed to the scheduler as one task holding
// the whole batch, so no listener starts before scheduling is complete.
func (s *Space) deliver(ctx context.Context, target path.Key, data any, batch []delivery, deferred bool) {
	if len(batch) == 0 {
		return
	}
	s.sends.Add(1)

	if deferred {
		// Scheduled work outlives the send call and cannot be cancelled.
		ctx = context.WithoutCancel(ctx)
	}

	var pending []func()
	for _, d := range batch {
		msg := Message{
			Path:  target,
			Level: d.name,
			Data:  data,
			Space: s,
		}
		for _, h := range d.handlers {
			if !deferred {
				s.invoke(ctx, d.level, h, msg)
				continue
			}
			l := d.level
			h := h
			pending = append(pending, func() {
				s.invoke(ctx, l, h, msg)
			})
		}
	}

	if len(pending) == 0 {
		return
	}
	s.deferred.Add(uint64(len(pending)))
	s.scheduler.Submit(func() {
		for _, run := range pending {
			run()
		}
	})
}

// invoke runs one handler, records the outcome and performs once removal.
func (s *Space) invoke(ctx context.Context, l *level, h *Handle, msg Message) {
	if !h.claim() {
		return
	}
	s.deliveries.Add(1)

	result := s.executor.Run(ctx, func(ctx context.Context) error {
		return h.Receive(ctx, msg)
	})
	if result.Skipped {
		// The context ended before the listener ran; a once handle keeps
		// its single delivery for a later send.
		if h.once {
			h.fired.Store(false)
		}
		s.logger.Debug("listener skipped", "handle", h.ID(), "level", msg.Level.String(), "error", result.Err)
		return
	}
	s.report(h, msg, result)

	if h.once {
		s.mu.Lock()
		if l.remove(h) && s.config.pruneEmpty {
			s.prune(l)
		}
		s.mu.Unlock()
	}
}

func (s *Space) report(h *Handle, msg Message, result dispatch.Result) {
	var err error
	switch {
	case result.Panicked:
		s.listenerPanics.Add(1)
		err = &PanicError{
			HandleID: h.ID(),
			Level:    msg.Level.String(),
			Value:    result.PanicValue,
			Stack:    string(result.PanicStack),
		}
		s.logger.Warn("listener panicked", "handle", h.ID(), "level", msg.Level.String(), "panic", result.PanicValue)
	case result.Err != nil:
		s.listenerErrors.Add(1)
		err = &ListenerError{
			HandleID: h.ID(),
			Level:    msg.Level.String(),
			Err:      result.Err,
		}
		s.logger.Warn("listener failed", "handle", h.ID(), "level", msg.Level.String(), "error", result.Err)
	default:
		return
	}

	if s.config.errorHandler != nil {
		s.config.errorHandler(err)
	}
}
