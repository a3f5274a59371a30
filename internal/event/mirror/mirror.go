// Package mirror copies exact sends into a parallel cache namespace so a
// caching subsystem can observe all traffic without registering at every
// level.
//
// A send to "user.updated" through a Mirror is followed by a send to
// "__cache__receive.user.updated" carrying the same data. Listeners in the
// cache namespace recover the original path with OriginalPath.
package mirror

import (
	"context"
	"io"
	"log/slog"

	"github.com/dshills/levelbus/internal/event"
	"github.com/dshills/levelbus/internal/event/path"
)

// Marker is the default first segment of the cache namespace.
const Marker = "__cache__receive"

// Mirror decorates a Space's exact Send. Descendant and ancestor sends pass
// through unmirrored: a mirrored ancestor walk would reach the root twice.
type Mirror struct {
	space  *event.Space
	marker string
	logger *slog.Logger
}

// Option configures a Mirror.
type Option func(*Mirror)

// WithMarker replaces the cache namespace segment.
func WithMarker(marker string) Option {
	return func(m *Mirror) {
		if marker != "" {
			m.marker = marker
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mirror) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New wraps space.
func New(space *event.Space, opts ...Option) *Mirror {
	m := &Mirror{
		space:  space,
		marker: Marker,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "mirror")
	return m
}

// Space returns the wrapped space.
func (m *Mirror) Space() *event.Space {
	return m.space
}

// Marker returns the cache namespace segment.
func (m *Mirror) Marker() string {
	return m.marker
}

// Send delivers to p, then to p inside the cache namespace. Sends already
// addressed to the cache namespace are not mirrored again.
func (m *Mirror) Send(ctx context.Context, p any, data any, opts ...event.SendOption) error {
	key, err := path.Normalize(p)
	if err != nil {
		return err
	}
	if err := m.space.Send(ctx, key, data, opts...); err != nil {
		return err
	}
	if m.isCacheKey(key) {
		return nil
	}

	m.logger.Debug("mirroring send", "level", key.String())
	return m.space.Send(ctx, m.CacheKey(key), data, opts...)
}

// SendDescendants passes through to the wrapped space.
func (m *Mirror) SendDescendants(ctx context.Context, p any, data any, opts ...event.SendOption) error {
	return m.space.SendDescendants(ctx, p, data, opts...)
}

// SendAncestors passes through to the wrapped space.
func (m *Mirror) SendAncestors(ctx context.Context, p any, data any, opts ...event.SendOption) error {
	return m.space.SendAncestors(ctx, p, data, opts...)
}

// CacheKey returns key inside the cache namespace.
func (m *Mirror) CacheKey(key path.Key) path.Key {
	out := make(path.Key, 0, len(key)+1)
	out = append(out, m.marker)
	return append(out, key...)
}

// Receive registers l in the cache namespace at p, so it observes sends to
// exactly p made through any Mirror sharing the marker.
func (m *Mirror) Receive(p any, l event.Listener) (*event.Handle, error) {
	key, err := path.Normalize(p)
	if err != nil {
		return nil, err
	}
	return m.space.Register(m.CacheKey(key), l)
}

// OriginalPath strips the cache namespace from a mirrored message's path.
// It reports false for messages that were not mirrored.
func (m *Mirror) OriginalPath(msg event.Message) (path.Key, bool) {
	return msg.Path.TrimPrefix(path.Key{m.marker})
}

func (m *Mirror) isCacheKey(key path.Key) bool {
	return len(key) > 0 && key[0] == m.marker
}
