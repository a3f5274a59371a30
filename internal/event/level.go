package event

import "github.com/dshills/levelbus/internal/event/path"

// level is one node of the space. The space owns the root and every level
// reachable from it through children; parent is only used for upward walks.
type level struct {
	name      string
	listeners []*Handle // ordered set, unique by identity
	children  map[string]*level
	order     []string // child names in creation order
	parent    *level
	payload   any
}

func newLevel(name string, parent *level) *level {
	return &level{
		name:   name,
		parent: parent,
	}
}

// child returns the named child, creating it when create is set.
// The bool result reports whether a level was created.
func (l *level) child(name string, create bool) (*level, bool) {
	if c, ok := l.children[name]; ok {
		return c, false
	}
	if !create {
		return nil, false
	}
	if l.children == nil {
		l.children = make(map[string]*level)
	}
	c := newLevel(name, l)
	l.children[name] = c
	l.order = append(l.order, name)
	return c, true
}

// orderedChildren returns children in creation order.
func (l *level) orderedChildren() []*level {
	out := make([]*level, 0, len(l.order))
	for _, name := range l.order {
		out = append(out, l.children[name])
	}
	return out
}

// removeChild detaches the named child.
func (l *level) removeChild(name string) {
	c, ok := l.children[name]
	if !ok {
		return
	}
	c.parent = nil
	delete(l.children, name)
	for i, n := range l.order {
		if n == name {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

// dropChildren discards the whole subtree below l and returns the number of
// levels detached.
func (l *level) dropChildren() int {
	n := 0
	for _, c := range l.children {
		n += 1 + c.dropChildren()
		c.parent = nil
	}
	l.children = nil
	l.order = nil
	return n
}

func (l *level) indexOf(h *Handle) int {
	for i, existing := range l.listeners {
		if existing == h {
			return i
		}
	}
	return -1
}

func (l *level) has(h *Handle) bool {
	return l.indexOf(h) >= 0
}

// add appends h unless already present.
func (l *level) add(h *Handle) bool {
	if l.has(h) {
		return false
	}
	l.listeners = append(l.listeners, h)
	return true
}

// remove deletes h and reports whether it was present.
func (l *level) remove(h *Handle) bool {
	i := l.indexOf(h)
	if i < 0 {
		return false
	}
	l.listeners = append(l.listeners[:i], l.listeners[i+1:]...)
	if len(l.listeners) == 0 {
		l.payload = nil
	}
	return true
}

// clear empties the listener set and returns how many handles it held.
func (l *level) clear() int {
	n := len(l.listeners)
	l.listeners = nil
	if n > 0 {
		l.payload = nil
	}
	return n
}

// snapshot returns a copy of the listener set for iteration.
func (l *level) snapshot() []*Handle {
	if len(l.listeners) == 0 {
		return nil
	}
	out := make([]*Handle, len(l.listeners))
	copy(out, l.listeners)
	return out
}

// isEmpty returns true if the level carries nothing worth keeping.
func (l *level) isEmpty() bool {
	return len(l.listeners) == 0 && len(l.children) == 0 && l.payload == nil
}

// fullName reconstructs the path from the root by walking parents.
func (l *level) fullName() path.Key {
	depth := 0
	for n := l; n.parent != nil; n = n.parent {
		depth++
	}
	key := make(path.Key, depth)
	for n := l; n.parent != nil; n = n.parent {
		depth--
		key[depth] = n.name
	}
	return key
}
