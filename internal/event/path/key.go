package path

import (
	"errors"
	"fmt"
	"strings"
)

// Separator is the character used to separate segments in the string form.
// It cannot be escaped; a segment never contains a literal separator.
const Separator = "."

// ErrInvalidPathType is returned when a path argument is neither a string nor
// an ordered sequence of strings.
var ErrInvalidPathType = errors.New("invalid path type")

// TypeError reports the offending type of a rejected path argument.
type TypeError struct {
	Value any
}

// Error implements the error interface.
func (e *TypeError) Error() string {
	return fmt.Sprintf("invalid path type %T: want string or []string", e.Value)
}

// Is allows errors.Is to match TypeError with ErrInvalidPathType.
func (e *TypeError) Is(target error) bool {
	return target == ErrInvalidPathType
}

// Key is an ordered sequence of segments addressing one level of the tree.
// The empty key addresses the root.
//
// Segments are opaque and compared by exact equality. No wildcard syntax
// exists, and empty segments (as produced by "a..b") are kept as literal
// empty-string segments.
type Key []string

// Normalize converts a path argument into a Key.
//
// A string is split on Separator, with the empty string yielding the root key.
// A []string or Key is copied. Any other type fails with a *TypeError.
func Normalize(p any) (Key, error) {
	switch v := p.(type) {
	case string:
		return Parse(v), nil
	case Key:
		return v.Clone(), nil
	case []string:
		return Key(v).Clone(), nil
	default:
		return nil, &TypeError{Value: p}
	}
}

// Parse splits s on Separator.
//
// Example: "buffer.content.inserted" -> ["buffer" "content" "inserted"]
func Parse(s string) Key {
	if s == "" {
		return Key{}
	}
	return Key(strings.Split(s, Separator))
}

// Join builds a key from individual segments.
func Join(segments ...string) Key {
	return Key(segments).Clone()
}

// String returns the dotted form of the key. The root renders as "".
func (k Key) String() string {
	return strings.Join(k, Separator)
}

// Len returns the number of segments.
func (k Key) Len() int {
	return len(k)
}

// IsRoot returns true if the key addresses the root level.
func (k Key) IsRoot() bool {
	return len(k) == 0
}

// Clone returns a copy that shares no storage with k.
func (k Key) Clone() Key {
	out := make(Key, len(k))
	copy(out, k)
	return out
}

// Equal returns true if both keys hold the same segments in the same order.
func (k Key) Equal(other Key) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

// Parent returns the key with the last segment removed.
// The root is its own parent.
//
// Example: "buffer.content.inserted" -> "buffer.content"
func (k Key) Parent() Key {
	if len(k) == 0 {
		return Key{}
	}
	return k[:len(k)-1].Clone()
}

// Child returns a new key with segment appended.
//
// Example: "buffer".Child("content") -> "buffer.content"
func (k Key) Child(segment string) Key {
	out := make(Key, len(k), len(k)+1)
	copy(out, k)
	return append(out, segment)
}

// Base returns the last segment, or "" for the root.
func (k Key) Base() string {
	if len(k) == 0 {
		return ""
	}
	return k[len(k)-1]
}

// HasPrefix returns true if prefix is a leading run of complete segments of k.
// Every key has the root as a prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// TrimPrefix returns k without prefix, and whether prefix was present.
func (k Key) TrimPrefix(prefix Key) (Key, bool) {
	if !k.HasPrefix(prefix) {
		return k, false
	}
	return k[len(prefix):].Clone(), true
}
