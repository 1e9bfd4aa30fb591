// Package keystore defines the opaque key/value persistence contract the
// identity custodian depends on, plus the invariants any implementation
// must uphold: binary values round-trip losslessly, Set is atomic per key,
// and anything written to disk uses owner-only permissions via
// write-temp-and-rename.
package keystore

import "errors"

// ErrClearUnsupported is returned by Clear on implementations that cannot
// support a bulk wipe cheaply.
var ErrClearUnsupported = errors.New("keystore: clear is not supported by this implementation")

// Store is the contract the custodian persists sealed identity material
// through. It never interprets the values it stores; every key is just an
// opaque byte string to it.
type Store interface {
	// Get returns the value for key, and whether it was present.
	Get(key string) ([]byte, bool, error)

	// Set durably persists value under key. By the time Set returns, the
	// value is safe against a crash: a concurrent reader never observes a
	// partially written value.
	Set(key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error

	// Keys lists every key currently present.
	Keys() ([]string, error)

	// Clear removes every key. Implementations that cannot support this
	// cheaply may return ErrClearUnsupported.
	Clear() error
}

// BatchSetter is an optional capability: implementations that can flush
// several keys in a single durable operation implement it, and the
// custodian uses it when available instead of calling Set once per key.
type BatchSetter interface {
	SetMany(entries map[string][]byte) error
}

// SetMany writes entries through s, using s's BatchSetter optimization when
// available and falling back to one Set call per entry otherwise.
func SetMany(s Store, entries map[string][]byte) error {
	if bs, ok := s.(BatchSetter); ok {
		return bs.SetMany(entries)
	}
	for k, v := range entries {
		if err := s.Set(k, v); err != nil {
			return err
		}
	}
	return nil
}
