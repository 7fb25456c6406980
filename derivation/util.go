package derivation

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"

	"github.com/btcsuite/btcd/btcec/v2"
)

func be32(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

// hmacSHA512Split computes HMAC-SHA512(key, data) and splits the 64-byte
// result into its left and right 32-byte halves, per BIP32's I = IL || IR.
func hmacSHA512Split(key, data []byte) (il, ir []byte) {
	mac := hmac.New(sha512.New, key)
	mac.Write(data)
	sum := mac.Sum(nil)
	return sum[:32], sum[32:]
}

func privKeyBytes(scalar *btcec.ModNScalar) []byte {
	b := scalar.Bytes()
	return b[:]
}

// pubKeyFromScalar computes scalar*G and returns the resulting public key.
func pubKeyFromScalar(scalar *btcec.ModNScalar) *btcec.PublicKey {
	var point btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(scalar, &point)
	point.ToAffine()
	return btcec.NewPublicKey(&point.X, &point.Y)
}

// addScalarToPoint computes (scalar*G) + pub, returning ok=false if the
// result is the point at infinity.
func addScalarToPoint(scalar *btcec.ModNScalar, pub *btcec.PublicKey) (*btcec.PublicKey, bool) {
	var ilPoint, pubJacobian, sum btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(scalar, &ilPoint)
	pub.AsJacobian(&pubJacobian)
	btcec.AddNonConst(&ilPoint, &pubJacobian, &sum)
	sum.ToAffine()
	if sum.X.IsZero() && sum.Y.IsZero() {
		return nil, false
	}
	return btcec.NewPublicKey(&sum.X, &sum.Y), true
}

// mulScalarPoint computes scalar*pub (point scalar multiplication), used
// by the Armory-135 and salted-BIP32 schemes.
func mulScalarPoint(scalar *btcec.ModNScalar, pub *btcec.PublicKey) *btcec.PublicKey {
	var pubJacobian, result btcec.JacobianPoint
	pub.AsJacobian(&pubJacobian)
	btcec.ScalarMultNonConst(scalar, &pubJacobian, &result)
	result.ToAffine()
	return btcec.NewPublicKey(&result.X, &result.Y)
}

// mulScalars computes a*b mod n.
func mulScalars(a, b *btcec.ModNScalar) *btcec.ModNScalar {
	var result btcec.ModNScalar
	result.Set(a)
	result.Mul(b)
	return &result
}

func parseCompressedPubKey(b []byte) (*btcec.PublicKey, error) {
	return btcec.ParsePubKey(b)
}

func scalarFromBytes(b []byte) (*btcec.ModNScalar, bool) {
	var s btcec.ModNScalar
	overflow := s.SetByteSlice(b)
	if overflow {
		return nil, false
	}
	return &s, true
}
