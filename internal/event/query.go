package event

import "github.com/dshills/levelbus/internal/event/path"

// Has reports whether the level at exactly p has listeners. With handles it
// reports whether every given handle is registered there.
// It never creates levels.
func (s *Space) Has(p any, handles ...*Handle) (bool, error) {
	key, err := path.Normalize(p)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.resolve(key, false)
	if l == nil {
		return false, nil
	}
	if len(handles) == 0 {
		return len(l.listeners) > 0, nil
	}
	for _, h := range handles {
		if h == nil || !l.has(h) {
			return false, nil
		}
	}
	return true, nil
}

// HasDescendants reports whether SendDescendants on p would reach any
// listener: p's own set when includeSelf is set, or any level below p.
func (s *Space) HasDescendants(p any, includeSelf bool) (bool, error) {
	key, err := path.Normalize(p)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.resolve(key, false)
	if l == nil {
		return false, nil
	}
	if includeSelf && len(l.listeners) > 0 {
		return true, nil
	}

	var search func(*level) bool
	search = func(n *level) bool {
		if len(n.listeners) > 0 {
			return true
		}
		for _, c := range n.children {
			if search(c) {
				return true
			}
		}
		return false
	}
	for _, c := range l.children {
		if search(c) {
			return true, nil
		}
	}
	return false, nil
}

// HasAncestors reports whether SendAncestors on p would reach any listener,
// following the same walk and short-circuit.
func (s *Space) HasAncestors(p any, includeSelf bool) (bool, error) {
	key, err := path.Normalize(p)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	levels, complete := s.chain(key)
	for _, l := range chainTargets(levels, complete, includeSelf) {
		if len(l.listeners) > 0 {
			return true, nil
		}
	}
	return false, nil
}
