// Package badgerstore implements keystore.Store over an embedded
// github.com/dgraph-io/badger/v3 database: the Go-native analog of a
// browser's IndexedDB-backed local database, offering the same per-key
// durability guarantee through badger's own write-ahead log.
//
// Grounded on hyperledger-labs/fabric-smart-client's
// platform/.../vault/db.OpenBadger, which wraps badger behind the same kind
// of small, interface-shaped persistence layer this package provides to
// the identity custodian.
package badgerstore

import (
	"github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"

	"github.com/nalapon/hf-web-client/pkg/keystore"
)

// Store is a keystore.Store backed by an embedded badger database.
type Store struct {
	db *badger.DB
}

// New opens (creating if necessary) a badger database rooted at dir.
func New(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed opening badger database at %s", dir)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get implements keystore.Store.
func (s *Store) Get(key string) ([]byte, bool, error) {
	var value []byte
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed reading key %q", key)
	}
	return value, found, nil
}

// Set implements keystore.Store. badger's Update commits in a single
// transaction, which is atomic with respect to a crash: either the whole
// transaction lands on disk, or none of it does.
func (s *Store) Set(key string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	return errors.Wrapf(err, "failed writing key %q", key)
}

// SetMany implements keystore.BatchSetter: every entry commits in one
// transaction.
func (s *Store) SetMany(entries map[string][]byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		for k, v := range entries {
			if err := txn.Set([]byte(k), v); err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Wrap(err, "failed writing batch")
}

// Delete implements keystore.Store.
func (s *Store) Delete(key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	return errors.Wrapf(err, "failed deleting key %q", key)
}

// Keys implements keystore.Store.
func (s *Store) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().Key()))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed listing keys")
	}
	return keys, nil
}

// Clear implements keystore.Store.
func (s *Store) Clear() error {
	return errors.Wrap(s.db.DropAll(), "failed clearing database")
}
