// Package decrypted guards cleartext key material in memory: a re-entrant
// lock-scoped container that decrypts encryption keys and asset cleartext
// on demand, caches the result only while locked, and wipes the cache on
// the outermost unlock.
package decrypted

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrAlreadyLocked is returned by Lock when another caller already
	// holds the outermost lock.
	ErrAlreadyLocked = errors.New("decrypted: container already locked")
	// ErrNotLocked is returned when an operation requiring the lock is
	// attempted with a closed or foreign handle.
	ErrNotLocked = errors.New("decrypted: container is not locked")
	// ErrEmptyPassphrase is returned when a passphrase prompt returns no
	// bytes, signaling the caller canceled.
	ErrEmptyPassphrase = errors.New("decrypted: empty passphrase")
	// ErrEncryptedDataMissing is returned when a requested key id has no
	// registry entry at all (an uncomputed private key).
	ErrEncryptedDataMissing = errors.New("decrypted: encrypted data missing")
)

// defaultKeyPassphrase is the hardcoded passphrase an encryption key falls
// back to when its last passphrase envelope is erased.
var defaultKeyPassphrase = []byte("hdvault-default-key")

// PromptFunc asks the caller for the passphrase that unlocks keyID. An
// empty return aborts the operation with ErrEmptyPassphrase.
type PromptFunc func(keyID []byte) ([]byte, error)

// Container is the single authority for cleartext key material within one
// wallet file.
type Container struct {
	mu sync.Mutex

	registry map[string]*EncryptionKey // key id (string) -> encrypted-form entry

	rawCache        map[string][]byte // key id -> decrypted 32-byte AES key
	cleartextCache  map[string][]byte // asset id -> decrypted cleartext
	passphraseCache map[string][]byte // (passphrase,kdf-id) -> derived AES key
	triedPassphrase [][]byte          // passphrases accepted so far this lock epoch
}

// New returns an empty container.
func New() *Container {
	return &Container{
		registry:        make(map[string]*EncryptionKey),
		rawCache:        make(map[string][]byte),
		cleartextCache:  make(map[string][]byte),
		passphraseCache: make(map[string][]byte),
	}
}

// Lock is a re-entrant handle on the container's mutex. Go has no portable
// thread-local storage, so re-entrancy is modeled explicitly: call Begin on
// an already-held Lock to obtain a nested handle, mirroring the
// kvstore.WriteTx.Begin nesting convention used for write transactions.
type Lock struct {
	c       *Container
	depth   *int
	closed  bool
	isOuter bool
}

// Lock acquires the container's lock. It fails immediately with
// ErrAlreadyLocked if another caller already holds it; there is no
// blocking variant, matching spec.md's "fails if any other thread holds
// the lock".
func (c *Container) Lock() (*Lock, error) {
	if !c.mu.TryLock() {
		return nil, ErrAlreadyLocked
	}
	depth := 1
	return &Lock{c: c, depth: &depth, isOuter: true}, nil
}

// Begin returns a nested handle sharing this lock's ownership.
func (l *Lock) Begin() (*Lock, error) {
	if l.closed {
		return nil, ErrNotLocked
	}
	*l.depth++
	return &Lock{c: l.c, depth: l.depth, isOuter: false}, nil
}

// Unlock releases this handle. Only the outermost handle's Unlock wipes
// the cleartext caches and releases the underlying mutex.
func (l *Lock) Unlock() error {
	if l.closed {
		return ErrNotLocked
	}
	l.closed = true
	*l.depth--
	if !l.isOuter {
		return nil
	}
	l.c.wipeCleartext()
	l.c.mu.Unlock()
	return nil
}

func (c *Container) wipeCleartext() {
	c.rawCache = make(map[string][]byte)
	c.cleartextCache = make(map[string][]byte)
	c.passphraseCache = make(map[string][]byte)
	c.triedPassphrase = nil
}

func (l *Lock) check(c *Container) error {
	if l == nil || l.closed || l.c != c {
		return ErrNotLocked
	}
	return nil
}

// RegisterKey installs a new encryption key under its first passphrase
// envelope, generating random raw key material.
func (c *Container) RegisterKey(lock *Lock, id []byte, params KDFParams, prompt PromptFunc) error {
	if err := lock.check(c); err != nil {
		return err
	}
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("decrypted: generate key: %w", err)
	}
	pass, err := prompt(id)
	if err != nil {
		return err
	}
	if len(pass) == 0 {
		return ErrEmptyPassphrase
	}

	rec := newEncryptionKey(id)
	if err := rec.addEnvelope(params, pass, raw); err != nil {
		return err
	}
	c.registry[string(id)] = rec
	c.rawCache[string(id)] = raw
	c.rememberPassphrase(pass)
	return nil
}

// resolveKey returns the 32-byte raw AES key for id, decrypting its
// registry entry via prompt if not already cached.
func (c *Container) resolveKey(id []byte, prompt PromptFunc) ([]byte, error) {
	key := string(id)
	if raw, ok := c.rawCache[key]; ok {
		return raw, nil
	}
	rec, ok := c.registry[key]
	if !ok {
		return nil, ErrEncryptedDataMissing
	}

	for _, pass := range c.triedPassphrase {
		if raw, ok := c.tryEnvelopes(rec, pass); ok {
			c.rawCache[key] = raw
			return raw, nil
		}
	}

	pass, err := prompt(id)
	if err != nil {
		return nil, err
	}
	if len(pass) == 0 {
		return nil, ErrEmptyPassphrase
	}
	raw, ok := c.tryEnvelopes(rec, pass)
	if !ok {
		return nil, ErrDecryptionFailed
	}
	c.rawCache[key] = raw
	c.rememberPassphrase(pass)
	return raw, nil
}

// tryEnvelopes attempts every passphrase envelope on rec with pass, caching
// the scrypt derivation per (passphrase, kdf-id) so a passphrase already
// tried against one key is never re-derived against the same KDF params.
func (c *Container) tryEnvelopes(rec *EncryptionKey, pass []byte) ([]byte, bool) {
	for kdfID, env := range rec.Envelopes {
		cacheKey := kdfCacheKey(pass, kdfID)
		aesKey, ok := c.passphraseCache[cacheKey]
		if !ok {
			derived, err := env.params.Derive(pass)
			if err != nil {
				continue
			}
			aesKey = derived
			c.passphraseCache[cacheKey] = aesKey
		}
		raw, err := env.open(aesKey)
		if err == nil {
			return raw, true
		}
	}
	return nil, false
}

func (c *Container) rememberPassphrase(pass []byte) {
	for _, p := range c.triedPassphrase {
		if bytes.Equal(p, pass) {
			return
		}
	}
	c.triedPassphrase = append(c.triedPassphrase, pass)
}

// GetClearText decrypts and returns the cleartext for assetID, whose
// ciphertext is wrapped under encryptionKeyID. The result is cached under
// assetID until the outermost lock releases.
func (c *Container) GetClearText(lock *Lock, assetID string, encryptionKeyID, ciphertext []byte, prompt PromptFunc) ([]byte, error) {
	if err := lock.check(c); err != nil {
		return nil, err
	}
	if cached, ok := c.cleartextCache[assetID]; ok {
		return cached, nil
	}
	raw, err := c.resolveKey(encryptionKeyID, prompt)
	if err != nil {
		return nil, err
	}
	plain, err := aesCBCDecryptWithKey(raw, ciphertext)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	c.cleartextCache[assetID] = plain
	return plain, nil
}

// EncryptData wraps plaintext under encryptionKeyID, which must already be
// resolved (cached from a prior GetClearText/RegisterKey call).
func (c *Container) EncryptData(lock *Lock, encryptionKeyID, plaintext []byte) ([]byte, error) {
	if err := lock.check(c); err != nil {
		return nil, err
	}
	raw, ok := c.rawCache[string(encryptionKeyID)]
	if !ok {
		return nil, ErrEncryptedDataMissing
	}
	return aesCBCEncryptWithKey(raw, plaintext)
}

// EncryptEncryptionKey adds or replaces a passphrase envelope on an
// existing encryption key. The write sequence is the in-memory half of the
// two-phase TEMP->PERM rotation described in spec.md §4.C: the new envelope
// is sealed under a TEMP label, every other envelope is dropped when
// replace is set, and the TEMP entry is then moved to its permanent slot
// under the KDF id. The TEMP envelope is not opened again before the old
// envelopes are dropped. All of this happens in memory within this call;
// walletdb (§4.D) persists the resulting registry snapshot in one kvstore
// write transaction after this call returns.
func (c *Container) EncryptEncryptionKey(lock *Lock, id []byte, params KDFParams, prompt PromptFunc, replace bool) error {
	if err := lock.check(c); err != nil {
		return err
	}
	rec, ok := c.registry[string(id)]
	if !ok {
		return ErrEncryptedDataMissing
	}
	raw, ok := c.rawCache[string(id)]
	if !ok {
		return ErrEncryptedDataMissing
	}

	pass, err := prompt(id)
	if err != nil {
		return err
	}
	if len(pass) == 0 {
		return ErrEmptyPassphrase
	}

	tempLabel := "TEMP:" + params.ID()
	tempEnv, err := sealEnvelope(params, pass, raw)
	if err != nil {
		return err
	}
	rec.Envelopes[tempLabel] = tempEnv

	// replace=true swaps out every existing passphrase envelope so only
	// the new one unlocks this key; replace=false adds the new envelope
	// alongside whatever already unlocks it.
	if replace {
		for kdfID := range rec.Envelopes {
			if kdfID != tempLabel {
				delete(rec.Envelopes, kdfID)
			}
		}
	}
	rec.Envelopes[params.ID()] = rec.Envelopes[tempLabel]
	delete(rec.Envelopes, tempLabel)
	return nil
}

// EraseEncryptionKey removes one passphrase envelope. If it was the last
// one, the key is re-wrapped under the hardcoded default passphrase so it
// remains recoverable.
func (c *Container) EraseEncryptionKey(lock *Lock, id []byte, kdfID string) error {
	if err := lock.check(c); err != nil {
		return err
	}
	rec, ok := c.registry[string(id)]
	if !ok {
		return ErrEncryptedDataMissing
	}
	raw, ok := c.rawCache[string(id)]
	if !ok {
		return ErrEncryptedDataMissing
	}
	delete(rec.Envelopes, kdfID)
	if len(rec.Envelopes) == 0 {
		defaultParams := DefaultKDFParams(defaultSalt(id))
		return rec.addEnvelope(defaultParams, defaultKeyPassphrase, raw)
	}
	return nil
}

func defaultSalt(id []byte) []byte {
	salt := make([]byte, 16)
	copy(salt, id)
	return salt
}

func aesCBCEncryptWithKey(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("decrypted: new cipher: %w", err)
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("decrypted: read iv: %w", err)
	}
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return append(iv, ciphertext...), nil
}

func aesCBCDecryptWithKey(key, ivAndCiphertext []byte) ([]byte, error) {
	if len(ivAndCiphertext) < aes.BlockSize {
		return nil, ErrDecryptionFailed
	}
	iv, ciphertext := ivAndCiphertext[:aes.BlockSize], ivAndCiphertext[aes.BlockSize:]
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("decrypted: new cipher: %w", err)
	}
	if len(ciphertext)%aes.BlockSize != 0 || len(ciphertext) == 0 {
		return nil, ErrDecryptionFailed
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)
	out, err := pkcs7Unpad(plain)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return out, nil
}
