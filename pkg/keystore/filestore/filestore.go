// Package filestore implements keystore.Store as a single JSON document on
// disk, written via write-temp-and-rename with owner-only (0600)
// permissions.
//
// Grounded on hyperledger/fabric's bccsp/sw.fileBasedKeyStore: a
// mutex-guarded, path-rooted key store that writes every key's material
// with ioutil.WriteFile(..., 0600). This module generalizes that to a
// single-document store (this module's custodian persists only a handful
// of small fields, not one file per key) and adds the temp-file-then-rename
// step the bccsp store's direct WriteFile didn't need, to make every Set
// atomic even under a crash mid-write.
package filestore

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/nalapon/hf-web-client/pkg/keystore"
)

// Store is a keystore.Store backed by one JSON file. All operations are
// serialized by mu, matching the concurrency model's "KeyStore operations
// are serialized per key" (this implementation serializes across all keys,
// which is a stricter, still-compliant, superset).
type Store struct {
	mu   sync.Mutex
	path string
}

// New opens (or creates) a file store at path. The containing directory is
// created with 0700 permissions if it does not already exist.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.Wrapf(err, "failed to create directory for %s", path)
	}

	s := &Store{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.writeAll(map[string]string{}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) readAll() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed reading %s", s.path)
	}

	var doc map[string]string
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrapf(err, "failed parsing %s", s.path)
	}
	return doc, nil
}

// writeAll serializes doc and persists it via write-temp-and-rename with
// 0600 permissions, so a crash mid-write never leaves a half-written file
// in place of the previous, still-valid one.
func (s *Store) writeAll(doc map[string]string) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed marshaling keystore document")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0600); err != nil {
		return errors.Wrapf(err, "failed writing temp file %s", tmp)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrapf(err, "failed renaming %s to %s", tmp, s.path)
	}
	return nil
}

// Get implements keystore.Store.
func (s *Store) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readAll()
	if err != nil {
		return nil, false, err
	}

	encoded, ok := doc[key]
	if !ok {
		return nil, false, nil
	}

	value, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false, errors.Wrapf(err, "corrupt base64 value for key %q", key)
	}
	return value, true, nil
}

// Set implements keystore.Store.
func (s *Store) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readAll()
	if err != nil {
		return err
	}
	doc[key] = base64.StdEncoding.EncodeToString(value)
	return s.writeAll(doc)
}

// SetMany implements keystore.BatchSetter: every entry is folded into a
// single read-modify-write-rename cycle instead of one per key.
func (s *Store) SetMany(entries map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readAll()
	if err != nil {
		return err
	}
	for k, v := range entries {
		doc[k] = base64.StdEncoding.EncodeToString(v)
	}
	return s.writeAll(doc)
}

// Delete implements keystore.Store.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readAll()
	if err != nil {
		return err
	}
	delete(doc, key)
	return s.writeAll(doc)
}

// Keys implements keystore.Store.
func (s *Store) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readAll()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	return keys, nil
}

// Clear implements keystore.Store.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writeAll(map[string]string{})
}
