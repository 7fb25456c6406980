// Package kvstore implements the ordered byte-key/byte-value database that
// backs the rest of the wallet: named sub-databases, a single active writer
// across the whole environment, concurrent readers, and forward iterators
// bounded by a key prefix.
//
// It is a thin wrapper around go.etcd.io/bbolt, whose bucket model already
// provides the "named sub-database" concept and whose Update/View
// transactions already provide the single-writer/multi-reader discipline
// this package's callers depend on.
package kvstore

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"go.etcd.io/bbolt"
)

var (
	// ErrNotFound is returned by Get when the key has no value.
	ErrNotFound = errors.New("kvstore: key not found")
	// ErrSubDBNotFound is returned when a named sub-database has not been
	// created with CreateSubDB.
	ErrSubDBNotFound = errors.New("kvstore: sub-database not found")
	// ErrTxClosed is returned when Commit/Rollback is called twice, or a
	// read/write is attempted after the transaction closed.
	ErrTxClosed = errors.New("kvstore: transaction already closed")
)

// Store is the ordered KV environment. One Store owns one underlying file
// on disk and zero or more named sub-databases within it.
type Store struct {
	db *bbolt.DB

	mu      sync.Mutex
	writeMu sync.Mutex // held for the lifetime of the outermost write tx
}

// Open opens or creates the environment file at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open %s: %w", path, err)
	}
	log.Debugf("opened environment %s", path)
	return &Store{db: db}, nil
}

// Close flushes and releases the environment. No cleartext is held by this
// package, so Close is purely an I/O teardown.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSubDB allocates a named sub-database if it does not already exist.
func (s *Store) CreateSubDB(name []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(name)
		return err
	})
}

// SubDBExists reports whether name has been allocated.
func (s *Store) SubDBExists(name []byte) bool {
	exists := false
	_ = s.db.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket(name) != nil
		return nil
	})
	return exists
}

// ReadTx is a read-only, scoped view onto one sub-database.
type ReadTx struct {
	tx      *bbolt.Tx
	bucket  *bbolt.Bucket
	owned   bool // true if this ReadTx owns tx and must Rollback it on Close
	closed  bool
	subName []byte
}

// BeginRead opens a read-only transaction scoped to the named sub-database.
// Multiple read transactions, across the same or different sub-databases,
// may run concurrently with each other and with a live writer.
func (s *Store) BeginRead(name []byte) (*ReadTx, error) {
	tx, err := s.db.Begin(false)
	if err != nil {
		return nil, fmt.Errorf("kvstore: begin read: %w", err)
	}
	b := tx.Bucket(name)
	if b == nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("%w: %s", ErrSubDBNotFound, name)
	}
	return &ReadTx{tx: tx, bucket: b, owned: true, subName: name}, nil
}

// Get returns the value stored at key, or ErrNotFound.
func (r *ReadTx) Get(key []byte) ([]byte, error) {
	if r.closed {
		return nil, ErrTxClosed
	}
	v := r.bucket.Get(key)
	if v == nil {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// IteratorFrom returns a forward iterator over every key with the given
// prefix, in byte-lexicographic order.
func (r *ReadTx) IteratorFrom(prefix []byte) *Iterator {
	c := r.bucket.Cursor()
	return &Iterator{cursor: c, prefix: prefix, started: false}
}

// Discard releases the read transaction. Safe to call multiple times.
func (r *ReadTx) Discard() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.owned {
		return r.tx.Rollback()
	}
	return nil
}

// Iterator walks keys sharing a common prefix in ascending byte order.
type Iterator struct {
	cursor  *bbolt.Cursor
	prefix  []byte
	started bool
	k, v    []byte
}

// Next advances the iterator and reports whether a matching entry was found.
func (it *Iterator) Next() bool {
	var k, v []byte
	if !it.started {
		it.started = true
		k, v = it.cursor.Seek(it.prefix)
	} else {
		k, v = it.cursor.Next()
	}
	if k == nil || !bytes.HasPrefix(k, it.prefix) {
		it.k, it.v = nil, nil
		return false
	}
	it.k, it.v = k, v
	return true
}

// Key returns the current entry's key. Valid only after Next returns true.
func (it *Iterator) Key() []byte { return it.k }

// Value returns the current entry's value. Valid only after Next returns true.
func (it *Iterator) Value() []byte { return it.v }

// WriteTx is a read-write transaction scoped to one sub-database. Nested
// write transactions opened from the same logical caller (via Begin) share
// the outermost transaction's staging area; only the outermost Commit
// actually flushes to disk, and any nested Rollback poisons the whole
// chain so the eventual outermost Commit aborts instead.
type WriteTx struct {
	tx      *bbolt.Tx
	bucket  *bbolt.Bucket
	subName []byte
	store   *Store

	depth    *int
	aborted  *bool
	closed   bool
	isOuter  bool
}

// BeginWrite opens a write transaction scoped to the named sub-database.
// At most one outermost write transaction may be live per Store at a time;
// callers needing to nest must pass the returned *WriteTx to Begin.
func (s *Store) BeginWrite(name []byte) (*WriteTx, error) {
	s.writeMu.Lock()
	tx, err := s.db.Begin(true)
	if err != nil {
		s.writeMu.Unlock()
		return nil, fmt.Errorf("kvstore: begin write: %w", err)
	}
	b, err := tx.CreateBucketIfNotExists(name)
	if err != nil {
		_ = tx.Rollback()
		s.writeMu.Unlock()
		return nil, err
	}
	depth := 1
	aborted := false
	return &WriteTx{
		tx: tx, bucket: b, subName: name, store: s,
		depth: &depth, aborted: &aborted, isOuter: true,
	}, nil
}

// Begin opens a nested write transaction sharing this transaction's staging
// area. The nested handle must itself be Committed or Rolled back; the
// underlying bbolt transaction is only flushed when the outermost handle
// commits.
func (w *WriteTx) Begin() (*WriteTx, error) {
	if w.closed {
		return nil, ErrTxClosed
	}
	*w.depth++
	return &WriteTx{
		tx: w.tx, bucket: w.bucket, subName: w.subName, store: w.store,
		depth: w.depth, aborted: w.aborted, isOuter: false,
	}, nil
}

// Put writes key/value into the scoped sub-database.
func (w *WriteTx) Put(key, value []byte) error {
	if w.closed {
		return ErrTxClosed
	}
	return w.bucket.Put(key, value)
}

// Erase removes key from the scoped sub-database.
func (w *WriteTx) Erase(key []byte) error {
	if w.closed {
		return ErrTxClosed
	}
	return w.bucket.Delete(key)
}

// Get reads key, observing this transaction's own uncommitted writes.
func (w *WriteTx) Get(key []byte) ([]byte, error) {
	if w.closed {
		return nil, ErrTxClosed
	}
	v := w.bucket.Get(key)
	if v == nil {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// IteratorFrom returns a forward iterator bounded by prefix, observing this
// transaction's own uncommitted writes.
func (w *WriteTx) IteratorFrom(prefix []byte) *Iterator {
	c := w.bucket.Cursor()
	return &Iterator{cursor: c, prefix: prefix}
}

// AsReadTx returns a read-only view of this write transaction's current
// staged state, satisfying the rule that a read transaction on a
// sub-database with a live same-thread write transaction sees that
// transaction's staged data.
func (w *WriteTx) AsReadTx() *ReadTx {
	return &ReadTx{tx: w.tx, bucket: w.bucket, owned: false, subName: w.subName}
}

// Commit closes this handle. For a nested handle this only decrements the
// shared depth counter; the outermost handle's Commit performs the actual
// bbolt commit (or, if any nested handle called Rollback, an abort instead).
func (w *WriteTx) Commit() error {
	if w.closed {
		return ErrTxClosed
	}
	w.closed = true
	*w.depth--
	if !w.isOuter {
		return nil
	}
	defer w.store.writeMu.Unlock()
	if *w.aborted {
		return w.tx.Rollback()
	}
	return w.tx.Commit()
}

// Rollback aborts this handle. On a nested handle it poisons the whole
// transaction chain so that the eventual outermost Commit aborts instead of
// flushing; on the outermost handle it aborts immediately.
func (w *WriteTx) Rollback() error {
	if w.closed {
		return ErrTxClosed
	}
	w.closed = true
	*w.aborted = true
	*w.depth--
	if !w.isOuter {
		return nil
	}
	defer w.store.writeMu.Unlock()
	return w.tx.Rollback()
}
