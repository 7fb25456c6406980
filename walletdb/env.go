// Package walletdb orchestrates one wallet file: a control sub-database
// holding the control passphrase's encrypted-keys registry and the control
// root, plus one encrypted main sub-database per wallet header, per
// spec.md §4.D.
package walletdb

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/opd-ai/hdvault/decrypted"
	"github.com/opd-ai/hdvault/envelope"
	"github.com/opd-ai/hdvault/kvstore"
)

var (
	// ErrNoFreeSlots is returned by AddHeader when every preallocated
	// sub-database slot is already in use.
	ErrNoFreeSlots = errors.New("walletdb: no free sub-database slots")
	// ErrDBCountDecrease is returned by SetDBCount when n is not larger
	// than the current count.
	ErrDBCountDecrease = errors.New("walletdb: db count may only increase")
	// ErrTransactionLive is returned by SetDBCount while a write
	// transaction is in flight.
	ErrTransactionLive = errors.New("walletdb: a write transaction is live")
	// ErrHeaderNotFound is returned when a transaction is requested on an
	// unknown sub-database name.
	ErrHeaderNotFound = errors.New("walletdb: header not found")
)

// controlKeyID is the fixed encryption-key id the control root is wrapped
// under.
var controlKeyID = []byte("control")

// Env is the open wallet file: the control sub-database plus every main
// sub-database opened so far.
type Env struct {
	mu sync.Mutex

	kv        *kvstore.Store
	container *decrypted.Container

	controlSalt      []byte
	controlRootPlain []byte
	dbCount          uint32
	usedCount        uint32

	headers map[string]*envelope.DB

	liveWriteTx int32
}

// SetupEnv opens the wallet file at path, creating it (and a fresh control
// passphrase) if it does not already contain a control sub-database.
func SetupEnv(path string, prompt decrypted.PromptFunc) (*Env, error) {
	kv, err := kvstore.Open(path)
	if err != nil {
		return nil, fmt.Errorf("walletdb: open: %w", err)
	}

	env := &Env{
		kv:        kv,
		container: decrypted.New(),
		headers:   make(map[string]*envelope.DB),
	}

	if !kv.SubDBExists(controlBucketName) {
		if err := env.create(prompt); err != nil {
			_ = kv.Close()
			return nil, err
		}
	} else if err := env.load(prompt); err != nil {
		_ = kv.Close()
		return nil, err
	}
	return env, nil
}

// Close releases the underlying kvstore environment.
func (e *Env) Close() error {
	return e.kv.Close()
}

func (e *Env) create(prompt decrypted.PromptFunc) error {
	if err := e.kv.CreateSubDB(controlBucketName); err != nil {
		return fmt.Errorf("walletdb: create control db: %w", err)
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("walletdb: read control salt: %w", err)
	}
	root := make([]byte, 32)
	if _, err := rand.Read(root); err != nil {
		return fmt.Errorf("walletdb: read control root: %w", err)
	}
	kdfSalt := make([]byte, 16)
	if _, err := rand.Read(kdfSalt); err != nil {
		return fmt.Errorf("walletdb: read kdf salt: %w", err)
	}
	params := decrypted.DefaultKDFParams(kdfSalt)

	lock, err := e.container.Lock()
	if err != nil {
		return err
	}
	defer lock.Unlock()

	if err := e.container.RegisterKey(lock, controlKeyID, params, prompt); err != nil {
		return err
	}
	ciphertext, err := e.container.EncryptData(lock, controlKeyID, root)
	if err != nil {
		return err
	}
	skBytes, err := marshalKey(e.container, controlKeyID)
	if err != nil {
		return err
	}

	wtx, err := e.kv.BeginWrite(controlBucketName)
	if err != nil {
		return fmt.Errorf("walletdb: begin control write: %w", err)
	}
	if err := writeControlInit(wtx, salt, ciphertext, skBytes); err != nil {
		_ = wtx.Rollback()
		return err
	}
	if err := wtx.Commit(); err != nil {
		return fmt.Errorf("walletdb: commit control write: %w", err)
	}

	e.controlSalt = salt
	e.controlRootPlain = root
	e.dbCount = 0
	e.usedCount = 0
	return nil
}

func writeControlInit(wtx *kvstore.WriteTx, salt, ciphertext, skBytes []byte) error {
	if err := wtx.Put([]byte{ctrlSaltKey}, salt); err != nil {
		return err
	}
	if err := wtx.Put([]byte{ctrlRootKey}, ciphertext); err != nil {
		return err
	}
	if err := wtx.Put([]byte{ctrlDBCountKey}, be32(0)); err != nil {
		return err
	}
	if err := wtx.Put([]byte{ctrlUsedCountKey}, be32(0)); err != nil {
		return err
	}
	return wtx.Put(ctrlKeyRecordKey(controlKeyID), skBytes)
}

func (e *Env) load(prompt decrypted.PromptFunc) error {
	rtx, err := e.kv.BeginRead(controlBucketName)
	if err != nil {
		return fmt.Errorf("walletdb: begin control read: %w", err)
	}
	defer rtx.Discard()

	salt, err := rtx.Get([]byte{ctrlSaltKey})
	if err != nil {
		return fmt.Errorf("walletdb: read control salt: %w", err)
	}
	ciphertext, err := rtx.Get([]byte{ctrlRootKey})
	if err != nil {
		return fmt.Errorf("walletdb: read control root: %w", err)
	}
	dbCountBytes, err := rtx.Get([]byte{ctrlDBCountKey})
	if err != nil {
		return fmt.Errorf("walletdb: read db count: %w", err)
	}
	usedCountBytes, err := rtx.Get([]byte{ctrlUsedCountKey})
	if err != nil {
		return fmt.Errorf("walletdb: read used count: %w", err)
	}
	skBytes, err := rtx.Get(ctrlKeyRecordKey(controlKeyID))
	if err != nil {
		return fmt.Errorf("walletdb: read control key record: %w", err)
	}

	var sk decrypted.SerializedKey
	if err := sk.UnmarshalBinary(skBytes); err != nil {
		return fmt.Errorf("walletdb: decode control key record: %w", err)
	}
	e.container.ImportKey(&sk)

	lock, err := e.container.Lock()
	if err != nil {
		return err
	}
	defer lock.Unlock()

	root, err := e.container.GetClearText(lock, "control-root", controlKeyID, ciphertext, prompt)
	if err != nil {
		return err
	}

	e.controlSalt = salt
	e.controlRootPlain = append([]byte(nil), root...)
	e.dbCount = binary.BigEndian.Uint32(dbCountBytes)
	e.usedCount = binary.BigEndian.Uint32(usedCountBytes)

	for i := uint32(0); i < e.usedCount; i++ {
		name, err := rtx.Get(ctrlHeaderKey(i))
		if err != nil {
			return fmt.Errorf("walletdb: read header %d: %w", i, err)
		}
		d, err := envelope.Open(e.kv, name, e.controlSalt, e.controlRootPlain)
		if err != nil {
			return fmt.Errorf("walletdb: reopen header %s: %w", name, err)
		}
		e.headers[string(name)] = d
	}
	return nil
}

// AddHeader allocates (or, if already open, returns) the main sub-database
// named name. It refuses once every preallocated slot (SetDBCount) is in
// use.
func (e *Env) AddHeader(name []byte) (*envelope.DB, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if d, ok := e.headers[string(name)]; ok {
		return d, nil
	}
	if e.usedCount >= e.dbCount {
		return nil, ErrNoFreeSlots
	}

	d, err := envelope.Open(e.kv, name, e.controlSalt, e.controlRootPlain)
	if err != nil {
		return nil, fmt.Errorf("walletdb: open header %s: %w", name, err)
	}

	wtx, err := e.kv.BeginWrite(controlBucketName)
	if err != nil {
		return nil, fmt.Errorf("walletdb: begin control write: %w", err)
	}
	index := e.usedCount
	if err := wtx.Put(ctrlHeaderKey(index), name); err != nil {
		_ = wtx.Rollback()
		return nil, err
	}
	if err := wtx.Put([]byte{ctrlUsedCountKey}, be32(index+1)); err != nil {
		_ = wtx.Rollback()
		return nil, err
	}
	if err := wtx.Commit(); err != nil {
		return nil, fmt.Errorf("walletdb: commit control write: %w", err)
	}

	e.usedCount++
	e.headers[string(name)] = d
	return d, nil
}

// SetDBCount raises the number of preallocated sub-database slots. It may
// only increase, and is refused while any write transaction is live.
func (e *Env) SetDBCount(n uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if atomic.LoadInt32(&e.liveWriteTx) > 0 {
		return ErrTransactionLive
	}
	if n <= e.dbCount {
		return ErrDBCountDecrease
	}

	wtx, err := e.kv.BeginWrite(controlBucketName)
	if err != nil {
		return fmt.Errorf("walletdb: begin control write: %w", err)
	}
	if err := wtx.Put([]byte{ctrlDBCountKey}, be32(n)); err != nil {
		_ = wtx.Rollback()
		return err
	}
	if err := wtx.Commit(); err != nil {
		return fmt.Errorf("walletdb: commit control write: %w", err)
	}
	e.dbCount = n
	return nil
}

// ChangeControlPassphrase adds or swaps a passphrase envelope on the
// control encryption key and persists the updated registry entry.
func (e *Env) ChangeControlPassphrase(params decrypted.KDFParams, prompt decrypted.PromptFunc, replace bool) error {
	lock, err := e.container.Lock()
	if err != nil {
		return err
	}
	defer lock.Unlock()

	if err := e.container.EncryptEncryptionKey(lock, controlKeyID, params, prompt, replace); err != nil {
		return err
	}
	return e.persistControlKey()
}

// EraseControlPassphrase removes one passphrase envelope from the control
// encryption key and persists the updated registry entry.
func (e *Env) EraseControlPassphrase(kdfID string) error {
	lock, err := e.container.Lock()
	if err != nil {
		return err
	}
	defer lock.Unlock()

	if err := e.container.EraseEncryptionKey(lock, controlKeyID, kdfID); err != nil {
		return err
	}
	return e.persistControlKey()
}

func (e *Env) persistControlKey() error {
	skBytes, err := marshalKey(e.container, controlKeyID)
	if err != nil {
		return err
	}
	wtx, err := e.kv.BeginWrite(controlBucketName)
	if err != nil {
		return fmt.Errorf("walletdb: begin control write: %w", err)
	}
	if err := wtx.Put(ctrlKeyRecordKey(controlKeyID), skBytes); err != nil {
		_ = wtx.Rollback()
		return err
	}
	if err := wtx.Commit(); err != nil {
		return fmt.Errorf("walletdb: commit control write: %w", err)
	}
	return nil
}

func marshalKey(c *decrypted.Container, id []byte) ([]byte, error) {
	sk, err := c.ExportKey(id)
	if err != nil {
		return nil, err
	}
	return sk.MarshalBinary()
}

func be32(v uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return buf[:]
}
