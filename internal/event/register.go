package event

import "github.com/dshills/levelbus/internal/event/path"

// Register adds l to the listener set of the level at p, creating levels as
// needed, and returns the handle it is registered under.
//
// If l is a *Handle it is registered as-is, so registering the same handle
// twice at one level is a no-op. Any other listener gets a fresh handle.
// Once adapters from RegisterOnce fail with ErrInvalidListenerType.
func (s *Space) Register(p any, l Listener) (*Handle, error) {
	return s.register(p, l, false)
}

// RegisterOnce registers a one-shot adapter around l. On its first delivery
// the adapter invokes l and then removes itself from the level it fired at.
// The returned adapter handle, not l, is what Cancel must be given.
func (s *Space) RegisterOnce(p any, l Listener) (*Handle, error) {
	return s.register(p, l, true)
}

func (s *Space) register(p any, l Listener, once bool) (*Handle, error) {
	h, err := asHandle(l, once)
	if err != nil {
		return nil, err
	}
	key, err := path.Normalize(p)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	added := s.resolve(key, true).add(h)
	s.mu.Unlock()

	if added {
		s.logger.Debug("registered listener", "level", key.String(), "handle", h.ID(), "once", once)
	}
	return h, nil
}

// Cancel removes listeners from the level at exactly p. With no handles the
// whole listener set is cleared; children are never touched. A missing level
// is a no-op.
func (s *Space) Cancel(p any, handles ...*Handle) error {
	key, err := path.Normalize(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.resolve(key, false)
	if l == nil {
		return nil
	}

	removed := 0
	if len(handles) == 0 {
		removed = l.clear()
	} else {
		for _, h := range handles {
			if h != nil && l.remove(h) {
				removed++
			}
		}
	}

	s.logger.Debug("cancelled listeners", "level", key.String(), "removed", removed)

	if s.config.pruneEmpty {
		s.prune(l)
	}
	return nil
}

// CancelDescendants discards every level below p together with their
// listeners, and clears p's own listener set when includeSelf is set.
// Later registrations under p build fresh levels. A missing level is a no-op.
func (s *Space) CancelDescendants(p any, includeSelf bool) error {
	key, err := path.Normalize(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.resolve(key, false)
	if l == nil {
		return nil
	}

	if includeSelf {
		l.clear()
	}
	dropped := l.dropChildren()
	s.levelsPruned.Add(uint64(dropped))

	s.logger.Debug("cancelled descendants", "level", key.String(), "include_self", includeSelf, "levels_dropped", dropped)

	if s.config.pruneEmpty {
		s.prune(l)
	}
	return nil
}

// CancelAncestors clears the listener sets along the walk from the root
// toward p: every strict ancestor, root included, plus p itself when
// includeSelf is set. Levels are never discarded. If a segment is missing
// the walk stops there and the levels already visited stay cleared.
func (s *Space) CancelAncestors(p any, includeSelf bool) error {
	key, err := path.Normalize(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	levels, complete := s.chain(key)
	removed := 0
	for _, l := range chainTargets(levels, complete, includeSelf) {
		removed += l.clear()
	}

	s.logger.Debug("cancelled ancestors", "level", key.String(), "include_self", includeSelf,
		"reached", complete, "removed", removed)
	return nil
}
