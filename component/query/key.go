package query

import "strings"

// Key identifies a cached query. Invalidation matches by prefix,
// so Key{"/rules"} covers Key{"/rules", <controller>}.
type Key []string

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

// String is the storage key, parts are joined with a NUL separator
func (k Key) String() string {
	return strings.Join(k, "\x00")
}

// Copy returns a key that shares no memory with k
func (k Key) Copy() Key {
	return append(Key(nil), k...)
}
