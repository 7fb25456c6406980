package walletdb

import (
	"fmt"
	"sync/atomic"

	"github.com/opd-ai/hdvault/envelope"
	"github.com/opd-ai/hdvault/kvstore"
)

// ReadTx is a read-only transaction scoped to one main sub-database,
// reading through its envelope.DB.
type ReadTx struct {
	db  *envelope.DB
	rtx *kvstore.ReadTx
}

// BeginReadTransaction opens a read-only transaction on the named header.
// Multiple read transactions, across the same or different headers, may
// run concurrently with each other and with a live writer.
func (e *Env) BeginReadTransaction(name []byte) (*ReadTx, error) {
	e.mu.Lock()
	d, ok := e.headers[string(name)]
	e.mu.Unlock()
	if !ok {
		return nil, ErrHeaderNotFound
	}
	rtx, err := e.kv.BeginRead(name)
	if err != nil {
		return nil, fmt.Errorf("walletdb: begin read: %w", err)
	}
	return &ReadTx{db: d, rtx: rtx}, nil
}

// Get reads a logical key's current cleartext value.
func (r *ReadTx) Get(key []byte) ([]byte, error) {
	return r.db.GetTx(r.rtx, key)
}

// Discard releases the transaction.
func (r *ReadTx) Discard() error {
	return r.rtx.Discard()
}

// WriteTx is a read-write transaction scoped to one main sub-database. It
// may be nested from the same caller via Begin, sharing the outer
// transaction's staging area, per spec.md §5.
type WriteTx struct {
	env *Env
	db  *envelope.DB
	wtx *kvstore.WriteTx
}

// BeginWriteTransaction opens a write transaction on the named header. At
// most one outermost write transaction may be live per wallet file at a
// time, across all headers, since kvstore serializes every writer; a write
// transaction on one header does not block readers of another header.
func (e *Env) BeginWriteTransaction(name []byte) (*WriteTx, error) {
	e.mu.Lock()
	d, ok := e.headers[string(name)]
	e.mu.Unlock()
	if !ok {
		return nil, ErrHeaderNotFound
	}
	wtx, err := e.kv.BeginWrite(name)
	if err != nil {
		return nil, fmt.Errorf("walletdb: begin write: %w", err)
	}
	atomic.AddInt32(&e.liveWriteTx, 1)
	return &WriteTx{env: e, db: d, wtx: wtx}, nil
}

// Begin opens a nested write transaction sharing this transaction's
// staging area.
func (w *WriteTx) Begin() (*WriteTx, error) {
	nested, err := w.wtx.Begin()
	if err != nil {
		return nil, err
	}
	atomic.AddInt32(&w.env.liveWriteTx, 1)
	return &WriteTx{env: w.env, db: w.db, wtx: nested}, nil
}

// Get reads a logical key, observing this transaction's own uncommitted
// writes.
func (w *WriteTx) Get(key []byte) ([]byte, error) {
	return w.db.GetTx(w.wtx, key)
}

// Put writes a logical key/value pair.
func (w *WriteTx) Put(key, value []byte) error {
	return w.db.PutTx(w.wtx, key, value)
}

// Erase tombstones a logical key.
func (w *WriteTx) Erase(key []byte) error {
	return w.db.EraseTx(w.wtx, key)
}

// Commit closes this handle; only the outermost handle's Commit flushes to
// disk.
func (w *WriteTx) Commit() error {
	defer atomic.AddInt32(&w.env.liveWriteTx, -1)
	return w.wtx.Commit()
}

// Rollback aborts this handle.
func (w *WriteTx) Rollback() error {
	defer atomic.AddInt32(&w.env.liveWriteTx, -1)
	return w.wtx.Rollback()
}
