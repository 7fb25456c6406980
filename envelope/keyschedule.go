package envelope

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

// ErrInvalidScalar is returned when a derived 32-byte scalar does not
// represent a valid secp256k1 private key (out of range or zero).
var ErrInvalidScalar = errors.New("envelope: derived scalar is not a valid secp256k1 key")

// saltedRoot returns HMAC-SHA256(controlSalt, controlRoot), the per
// sub-database root that seeds every record's key schedule.
func saltedRoot(controlSalt, controlRoot []byte) []byte {
	mac := hmac.New(sha256.New, controlSalt)
	mac.Write(controlRoot)
	return mac.Sum(nil)
}

// recordKeys derives the decryption keypair and MAC key for counter i:
// HMAC-SHA512(be32(i), saltedRoot), split into a 32-byte scalar and a
// 32-byte MAC key.
func recordKeys(root []byte, counter uint32) (decryptionPriv, macKey []byte, err error) {
	mac := hmac.New(sha512.New, root)
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], counter)
	mac.Write(buf[:])
	sum := mac.Sum(nil)
	decryptionPriv = sum[:32]
	macKey = sum[32:64]

	var scalar btcec.ModNScalar
	if scalar.SetByteSlice(decryptionPriv) || scalar.IsZero() {
		return nil, nil, fmt.Errorf("%w: counter %d", ErrInvalidScalar, counter)
	}
	return decryptionPriv, macKey, nil
}

// sharedAESKey computes AES_KEY = SHA256(SHA256(scalar . pub)) for the
// scalar/point pair supplied, implementing both halves of the record's
// ECDH (the writer uses an ephemeral private scalar against the
// counter-derived decryption public key; the reader uses the
// counter-derived decryption private scalar against the record's ephemeral
// public key — ECDH commutativity makes both sides agree).
func sharedAESKey(scalarBytes []byte, pub *btcec.PublicKey) ([]byte, error) {
	var scalar btcec.ModNScalar
	if scalar.SetByteSlice(scalarBytes) || scalar.IsZero() {
		return nil, ErrInvalidScalar
	}

	var point, result btcec.JacobianPoint
	pub.AsJacobian(&point)
	btcec.ScalarMultNonConst(&scalar, &point, &result)
	result.ToAffine()
	sharedPub := btcec.NewPublicKey(&result.X, &result.Y)

	h1 := sha256.Sum256(sharedPub.SerializeCompressed())
	h2 := sha256.Sum256(h1[:])
	return h2[:], nil
}

// pubKeyFromScalar returns the secp256k1 public key for a 32-byte scalar.
func pubKeyFromScalar(scalarBytes []byte) *btcec.PublicKey {
	_, pub := btcec.PrivKeyFromBytes(scalarBytes)
	return pub
}

// randScalar fills dst (expected to be 32 bytes) with a uniformly random
// valid secp256k1 scalar, retrying on the negligible chance of an
// out-of-range or zero draw.
func randScalar(dst []byte) error {
	var scalar btcec.ModNScalar
	for {
		if _, err := rand.Read(dst); err != nil {
			return fmt.Errorf("envelope: read random scalar: %w", err)
		}
		if !scalar.SetByteSlice(dst) && !scalar.IsZero() {
			return nil
		}
	}
}

// parseCompressedPubKey parses a 33-byte compressed secp256k1 public key.
func parseCompressedPubKey(b []byte) (*btcec.PublicKey, error) {
	return btcec.ParsePubKey(b)
}
