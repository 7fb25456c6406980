package decrypted

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// KDFParams identifies one Romix (scrypt) parameter set: cost N (a power of
// two), block-size r, and parallelization p, plus the salt bound to one
// encryption key's passphrase envelope.
type KDFParams struct {
	N    int
	R    int
	P    int
	Salt []byte
}

// DefaultKDFParams returns the parameter set new encryption keys are
// wrapped under unless the caller overrides it.
func DefaultKDFParams(salt []byte) KDFParams {
	return KDFParams{N: 1 << 15, R: 8, P: 1, Salt: salt}
}

// ID returns the stable identifier of this parameter set:
// SHA256(be32(N) || be32(r) || salt).
func (k KDFParams) ID() string {
	var buf [8]byte
	binary.BigEndian.PutUint32(buf[0:4], uint32(k.N))
	binary.BigEndian.PutUint32(buf[4:8], uint32(k.R))
	h := sha256.New()
	h.Write(buf[:])
	h.Write(k.Salt)
	return string(h.Sum(nil))
}

// Derive runs scrypt over passphrase, producing a 32-byte AES key.
func (k KDFParams) Derive(passphrase []byte) ([]byte, error) {
	key, err := scrypt.Key(passphrase, k.Salt, k.N, k.R, k.P, 32)
	if err != nil {
		return nil, fmt.Errorf("decrypted: scrypt: %w", err)
	}
	return key, nil
}

// kdfCacheKey combines a passphrase and KDF id so derivations are cached
// per (passphrase, kdf-id) as spec.md §4.C requires.
func kdfCacheKey(passphrase []byte, kdfID string) string {
	h := sha256.New()
	h.Write(passphrase)
	h.Write([]byte(kdfID))
	return string(h.Sum(nil))
}
