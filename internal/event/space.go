package event

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dshills/levelbus/internal/event/dispatch"
	"github.com/dshills/levelbus/internal/event/path"
)

// Space is a tree of levels addressed by path, with listeners attached to
// individual levels.
//
// All tree mutation and traversal happens under one lock that is never held
// while a listener runs, so listeners may call back into the space. Every
// dispatch iterates over a snapshot of the listener sets taken when the send
// started.
type Space struct {
	mu   sync.Mutex
	root *level

	config    spaceConfig
	scheduler dispatch.Scheduler
	executor  *dispatch.Executor
	logger    *slog.Logger

	sends          atomic.Uint64
	deliveries     atomic.Uint64
	deferred       atomic.Uint64
	listenerErrors atomic.Uint64
	listenerPanics atomic.Uint64
	levelsCreated  atomic.Uint64
	levelsPruned   atomic.Uint64
}

// NewSpace creates an empty space holding only the root level.
func NewSpace(opts ...Option) *Space {
	config := defaultSpaceConfig()
	for _, opt := range opts {
		opt(&config)
	}

	s := &Space{
		root:   newLevel("", nil),
		config: config,
		logger: config.logger.With("component", "event"),
	}

	s.executor = dispatch.NewExecutor(dispatch.WithExecutorTimeout(config.listenerTimeout))

	s.scheduler = config.scheduler
	if s.scheduler == nil {
		s.scheduler = dispatch.NewLoop(dispatch.WithLoopPanicHandler(func(v any, _ []byte) {
			s.logger.Error("deferred task panicked", "panic", v)
		}))
	}

	return s
}

// resolve walks from the root consuming one segment per step. With create
// set, missing levels are created on the way down; without it the walk
// aborts with nil and leaves the tree untouched. Caller holds s.mu.
func (s *Space) resolve(key path.Key, create bool) *level {
	node := s.root
	for _, seg := range key {
		child, created := node.child(seg, create)
		if child == nil {
			return nil
		}
		if created {
			s.levelsCreated.Add(1)
		}
		node = child
	}
	return node
}

// chain returns the levels visited walking from the root toward key: the
// root first, then one level per segment found. The walk stops at the first
// missing segment; complete reports whether the target itself was reached.
// Caller holds s.mu.
func (s *Space) chain(key path.Key) (levels []*level, complete bool) {
	levels = make([]*level, 0, len(key)+1)
	node := s.root
	levels = append(levels, node)
	for _, seg := range key {
		child, _ := node.child(seg, false)
		if child == nil {
			return levels, false
		}
		node = child
		levels = append(levels, node)
	}
	return levels, true
}

// chainTargets trims a chain to the levels an ancestor operation acts on:
// every strict ancestor, plus the target when includeSelf is set.
func chainTargets(levels []*level, complete, includeSelf bool) []*level {
	if complete && !includeSelf {
		return levels[:len(levels)-1]
	}
	return levels
}

// prune removes l and then each emptied ancestor, stopping at the root or
// at the first level that still carries something. Caller holds s.mu.
func (s *Space) prune(l *level) {
	for l != nil && l != s.root && l.isEmpty() {
		parent := l.parent
		if parent == nil {
			// Already detached by CancelDescendants.
			return
		}
		name := l.name
		parent.removeChild(name)
		s.levelsPruned.Add(1)
		s.logger.Debug("pruned empty level", "level", parent.fullName().Child(name).String())
		l = parent
	}
}

// Exists returns true if a level exists at p.
func (s *Space) Exists(p any) (bool, error) {
	key, err := path.Normalize(p)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolve(key, false) != nil, nil
}

// Children returns the child segment names of the level at p, in creation
// order. A missing level has no children.
func (s *Space) Children(p any) ([]string, error) {
	key, err := path.Normalize(p)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.resolve(key, false)
	if l == nil || len(l.order) == 0 {
		return nil, nil
	}
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out, nil
}

// ListenerCount returns the size of the listener set at exactly p.
func (s *Space) ListenerCount(p any) (int, error) {
	key, err := path.Normalize(p)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.resolve(key, false)
	if l == nil {
		return 0, nil
	}
	return len(l.listeners), nil
}

// NodeCount returns the number of levels in the tree, root included.
func (s *Space) NodeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	var walk func(*level)
	walk = func(l *level) {
		count++
		for _, c := range l.children {
			walk(c)
		}
	}
	walk(s.root)
	return count
}

// LevelInfo describes one level during Walk.
type LevelInfo struct {
	// Path is the full name of the level.
	Path path.Key

	// Listeners is the size of the level's own listener set.
	Listeners int

	// Children is the number of direct children.
	Children int

	// HasPayload is true if a payload is attached.
	HasPayload bool
}

// Walk visits every level in pre-order, children in creation order.
// Returning false from fn stops the walk. The tree is snapshotted before fn
// is first called, so fn may mutate the space.
func (s *Space) Walk(fn func(LevelInfo) bool) {
	s.mu.Lock()
	var infos []LevelInfo
	var collect func(*level)
	collect = func(l *level) {
		infos = append(infos, LevelInfo{
			Path:       l.fullName(),
			Listeners:  len(l.listeners),
			Children:   len(l.children),
			HasPayload: l.payload != nil,
		})
		for _, c := range l.orderedChildren() {
			collect(c)
		}
	}
	collect(s.root)
	s.mu.Unlock()

	for _, info := range infos {
		if !fn(info) {
			return
		}
	}
}

// SetPayload attaches auxiliary data to the level at p, creating levels as
// needed. The payload is cleared when the level's listener set next becomes
// empty. It plays no part in dispatch.
func (s *Space) SetPayload(p any, v any) error {
	key, err := path.Normalize(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolve(key, true).payload = v
	return nil
}

// Payload returns the payload attached at p.
func (s *Space) Payload(p any) (any, bool, error) {
	key, err := path.Normalize(p)
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.resolve(key, false)
	if l == nil || l.payload == nil {
		return nil, false, nil
	}
	return l.payload, true, nil
}

// Wait blocks until deferred deliveries have drained, when the scheduler
// supports waiting (dispatch.Loop does). Otherwise it returns immediately.
func (s *Space) Wait(ctx context.Context) error {
	if w, ok := s.scheduler.(interface{ Wait(context.Context) error }); ok {
		return w.Wait(ctx)
	}
	return nil
}

// Stats contains event space statistics.
type Stats struct {
	// Sends is the number of send calls that found at least one level.
	Sends uint64

	// Deliveries is the number of listener invocations started.
	Deliveries uint64

	// Deferred is the number of invocations handed to the scheduler.
	Deferred uint64

	// ListenerErrors is the number of listeners that returned an error.
	ListenerErrors uint64

	// ListenerPanics is the number of listeners that panicked.
	ListenerPanics uint64

	// LevelsCreated is the number of levels created since the space was made.
	LevelsCreated uint64

	// LevelsPruned is the number of levels discarded by cancel operations.
	LevelsPruned uint64
}

// Stats returns current statistics.
func (s *Space) Stats() Stats {
	return Stats{
		Sends:          s.sends.Load(),
		Deliveries:     s.deliveries.Load(),
		Deferred:       s.deferred.Load(),
		ListenerErrors: s.listenerErrors.Load(),
		ListenerPanics: s.listenerPanics.Load(),
		LevelsCreated:  s.levelsCreated.Load(),
		LevelsPruned:   s.levelsPruned.Load(),
	}
}
