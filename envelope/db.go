// Package envelope implements the per-record encrypted database described
// in §4.B: every physical entry is individually wrapped in an ECDH-derived,
// HMAC-authenticated AES-CBC envelope, so a raw dump of the backing
// key-value store never exposes a logical key or value in the clear.
package envelope

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/opd-ai/hdvault/kvstore"
)

// ErrNotFound is returned when a logical key has no live entry.
var ErrNotFound = errors.New("envelope: key not found")

// ErrWrongControlRoot is returned by Open when the supplied control root
// fails to reproduce the stored cycle marker at counter 0.
var ErrWrongControlRoot = errors.New("envelope: control root does not decrypt existing data")

// DB is one encrypted sub-database: a forward-only log of counter-indexed
// physical records layered over a kvstore sub-database, with a live
// in-memory index resolving tombstones so reads never need to replay the
// whole log.
type DB struct {
	mu   sync.RWMutex
	kv   *kvstore.Store
	name []byte

	root []byte // saltedRoot(controlSalt, controlRoot)

	nextCounter uint32
	live        map[string]uint32 // dataKey -> physical counter of latest entry
	owner       map[uint32]string // physical counter -> dataKey, for tombstone resolution
}

// Open loads (or initializes) the encrypted sub-database named by subName,
// creating the backing kvstore sub-database on first use and writing the
// counter-0 cycle marker. On subsequent opens it replays every record from
// counter 0, verifying the cycle marker against the supplied control root
// and rebuilding the live index.
func Open(kv *kvstore.Store, subName, controlSalt, controlRoot []byte) (*DB, error) {
	if !kv.SubDBExists(subName) {
		if err := kv.CreateSubDB(subName); err != nil {
			return nil, fmt.Errorf("envelope: create sub-database: %w", err)
		}
	}

	d := &DB{
		kv:    kv,
		name:  subName,
		root:  saltedRoot(controlSalt, controlRoot),
		live:  make(map[string]uint32),
		owner: make(map[uint32]string),
	}

	if err := d.scan(); err != nil {
		return nil, err
	}
	if d.nextCounter == 0 {
		if err := d.writeCycleMarker(); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// scan replays every physical record from counter 0 until the first
// missing counter, rebuilding the live index and validating the key
// schedule against the counter-0 cycle marker.
func (d *DB) scan() error {
	rtx, err := d.kv.BeginRead(d.name)
	if err != nil {
		return fmt.Errorf("envelope: begin scan: %w", err)
	}
	defer rtx.Discard()

	var counter uint32
	for {
		raw, err := rtx.Get(counterKey(counter))
		if errors.Is(err, kvstore.ErrNotFound) {
			break
		}
		if err != nil {
			return fmt.Errorf("envelope: scan counter %d: %w", counter, err)
		}

		kind, dataKey, _, err := d.decryptRecord(counter, raw)
		if err != nil {
			if counter == 0 {
				return ErrWrongControlRoot
			}
			return err
		}

		switch kind {
		case kindCycle:
			if counter == 0 && string(dataKey) != string(cycleMarker) {
				return ErrWrongControlRoot
			}
		case kindEntry:
			key := string(dataKey)
			d.live[key] = counter
			d.owner[counter] = key
		case kindTombstone:
			victim := binary.BigEndian.Uint32(dataKey)
			if key, ok := d.owner[victim]; ok {
				delete(d.live, key)
				delete(d.owner, victim)
			}
		}
		counter++
	}
	// counter == 0 here means a fresh sub-database; the caller writes the
	// initial cycle marker.
	d.nextCounter = counter
	return nil
}

// Get returns the current value for a logical key.
func (d *DB) Get(dataKey []byte) ([]byte, error) {
	rtx, err := d.kv.BeginRead(d.name)
	if err != nil {
		return nil, fmt.Errorf("envelope: begin read: %w", err)
	}
	defer rtx.Discard()
	return d.GetTx(rtx, dataKey)
}

// GetTx reads dataKey's current value through a caller-managed kvstore
// transaction (read or write), so multiple logical reads/writes across one
// or more DB instances can share a single underlying kvstore transaction —
// the basis for walletdb's scoped, possibly-nested transactions (§4.D,
// §5).
func (d *DB) GetTx(rtx kvReader, dataKey []byte) ([]byte, error) {
	d.mu.RLock()
	counter, ok := d.live[string(dataKey)]
	d.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	raw, err := rtx.Get(counterKey(counter))
	if err != nil {
		return nil, fmt.Errorf("envelope: read counter %d: %w", counter, err)
	}
	_, _, value, err := d.decryptRecord(counter, raw)
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Put writes a new physical record for dataKey, superseding any prior
// entry (the prior record is left in place on disk; only the live index is
// updated, matching an append-only log).
func (d *DB) Put(dataKey, dataValue []byte) error {
	wtx, err := d.kv.BeginWrite(d.name)
	if err != nil {
		return fmt.Errorf("envelope: begin write: %w", err)
	}
	if err := d.PutTx(wtx, dataKey, dataValue); err != nil {
		_ = wtx.Rollback()
		return err
	}
	return wtx.Commit()
}

// PutTx is the transaction-scoped form of Put; see GetTx.
func (d *DB) PutTx(wtx *kvstore.WriteTx, dataKey, dataValue []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	counter := d.nextCounter
	raw, err := d.encryptRecord(counter, kindEntry, dataKey, dataValue)
	if err != nil {
		return err
	}
	if err := wtx.Put(counterKey(counter), raw); err != nil {
		return fmt.Errorf("envelope: write counter %d: %w", counter, err)
	}

	key := string(dataKey)
	d.live[key] = counter
	d.owner[counter] = key
	d.nextCounter++
	return nil
}

// Erase writes a tombstone record referencing the victim's physical
// counter and removes dataKey from the live index.
func (d *DB) Erase(dataKey []byte) error {
	wtx, err := d.kv.BeginWrite(d.name)
	if err != nil {
		return fmt.Errorf("envelope: begin write: %w", err)
	}
	if err := d.EraseTx(wtx, dataKey); err != nil {
		_ = wtx.Rollback()
		return err
	}
	return wtx.Commit()
}

// EraseTx is the transaction-scoped form of Erase; see GetTx.
func (d *DB) EraseTx(wtx *kvstore.WriteTx, dataKey []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	victim, ok := d.live[string(dataKey)]
	if !ok {
		return ErrNotFound
	}

	counter := d.nextCounter
	raw, err := d.encryptRecord(counter, kindTombstone, counterKey(victim), nil)
	if err != nil {
		return err
	}
	if err := wtx.Put(counterKey(counter), raw); err != nil {
		return fmt.Errorf("envelope: write counter %d: %w", counter, err)
	}

	delete(d.live, string(dataKey))
	delete(d.owner, victim)
	d.nextCounter++
	return nil
}

// kvReader is satisfied by both *kvstore.ReadTx and *kvstore.WriteTx, so
// GetTx can read through either a read-only view or an in-flight write.
type kvReader interface {
	Get(key []byte) ([]byte, error)
}

// Cycle appends an audit marker under the current key schedule. Full
// re-keying of the underlying secrets happens one layer up, in the
// decrypted package's two-phase passphrase-envelope rotation; Cycle exists
// so operators can mark a point in the log (e.g. "operator verified this
// database after a suspected tamper event") without disturbing any live
// entry.
func (d *DB) Cycle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeCycleMarker()
}

func (d *DB) writeCycleMarker() error {
	counter := d.nextCounter
	raw, err := d.encryptRecord(counter, kindCycle, cycleMarker, nil)
	if err != nil {
		return err
	}
	if err := d.writeCounter(counter, raw); err != nil {
		return err
	}
	d.nextCounter++
	return nil
}

func (d *DB) writeCounter(counter uint32, raw []byte) error {
	wtx, err := d.kv.BeginWrite(d.name)
	if err != nil {
		return fmt.Errorf("envelope: begin write: %w", err)
	}
	if err := wtx.Put(counterKey(counter), raw); err != nil {
		_ = wtx.Rollback()
		return fmt.Errorf("envelope: write counter %d: %w", counter, err)
	}
	if err := wtx.Commit(); err != nil {
		return fmt.Errorf("envelope: commit counter %d: %w", counter, err)
	}
	return nil
}

func counterKey(counter uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], counter)
	return buf[:]
}

// encryptRecord derives the counter's decryption keypair, ECDH-wraps a
// fresh ephemeral scalar against it for the AES key, and returns the
// physical record: ephemeralPubCompressed(33) || iv(16) || ciphertext.
func (d *DB) encryptRecord(counter uint32, kind recordKind, dataKey, dataValue []byte) ([]byte, error) {
	decryptionPriv, macKey, err := recordKeys(d.root, counter)
	if err != nil {
		return nil, err
	}
	decryptionPub := pubKeyFromScalar(decryptionPriv)

	var ephemeralPriv [32]byte
	if err := randScalar(ephemeralPriv[:]); err != nil {
		return nil, err
	}
	ephemeralPub := pubKeyFromScalar(ephemeralPriv[:])

	aesKey, err := sharedAESKey(ephemeralPriv[:], decryptionPub)
	if err != nil {
		return nil, err
	}

	payload := buildPayload(macKey, counter, kind, dataKey, dataValue)
	iv, ciphertext, err := aesCBCEncrypt(aesKey, payload)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 33+len(iv)+len(ciphertext))
	out = append(out, ephemeralPub.SerializeCompressed()...)
	out = append(out, iv...)
	out = append(out, ciphertext...)
	return out, nil
}

// decryptRecord reverses encryptRecord and verifies the record's HMAC.
func (d *DB) decryptRecord(counter uint32, raw []byte) (recordKind, []byte, []byte, error) {
	const pubLen, ivLen = 33, 16
	if len(raw) < pubLen+ivLen+1 {
		return 0, nil, nil, fmt.Errorf("%w: physical record too short", errRecordCorrupt)
	}

	ephemeralPub, err := parseCompressedPubKey(raw[:pubLen])
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%w: %v", errRecordCorrupt, err)
	}
	iv := raw[pubLen : pubLen+ivLen]
	ciphertext := raw[pubLen+ivLen:]

	decryptionPriv, macKey, err := recordKeys(d.root, counter)
	if err != nil {
		return 0, nil, nil, err
	}
	aesKey, err := sharedAESKey(decryptionPriv, ephemeralPub)
	if err != nil {
		return 0, nil, nil, err
	}

	plaintext, err := aesCBCDecrypt(aesKey, iv, ciphertext)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%w: %v", errRecordCorrupt, err)
	}

	return parsePayload(macKey, counter, plaintext)
}
