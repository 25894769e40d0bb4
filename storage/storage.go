// Package storage persists the artifacts of the confidential poll system in
// a prefixed key-value store, and doubles as the queue the computation
// gateway drains. The following prefixes are used:
//   - 'p/' for poll records (fixed binary layout)
//   - 'cq/' for queued computation requests
//   - 'cz/' for computation request reservations
//
// Poll records are replaced whole on every write, so the ciphertext counters
// and their nonce always move together: no reader can observe a torn
// generation.
package storage

import (
	"errors"
	"sync"

	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

var (
	pollPrefix            = []byte("p/")
	computationPrefix     = []byte("cq/")
	computationResvPrefix = []byte("cz/")
)

var (
	// ErrNotFound is returned when the requested artifact does not exist.
	ErrNotFound = errors.New("artifact not found")
	// ErrNoMoreElements is returned by queue getters when the queue is empty.
	ErrNoMoreElements = errors.New("no more elements")
	// ErrAlreadyExists is returned when creating an artifact that exists.
	ErrAlreadyExists = errors.New("artifact already exists")
)

// Storage wraps the database with poll-record and computation-queue
// operations.
type Storage struct {
	db         db.Database
	globalLock sync.Mutex
}

// New creates a new Storage instance on top of the given database.
func New(database db.Database) *Storage {
	return &Storage{db: database}
}

// Close closes the underlying database.
func (s *Storage) Close() {
	s.db.Close()
}

// isReserved returns true if the key is reserved under the given prefix.
func (s *Storage) isReserved(prefix, key []byte) bool {
	rd := prefixeddb.NewPrefixedReader(s.db, prefix)
	_, err := rd.Get(key)
	return err == nil
}

// setReservation marks the key as reserved under the given prefix.
func (s *Storage) setReservation(prefix, key []byte) error {
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	if err := wTx.Set(key, []byte{1}); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

// deleteArtifact removes the value stored under prefix/key.
func (s *Storage) deleteArtifact(prefix, key []byte) error {
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	if err := wTx.Delete(key); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}
