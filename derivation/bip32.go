package derivation

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
)

// HardenedOffset is the child-index boundary at which BIP32 hardened
// derivation begins (2^31).
const HardenedOffset uint32 = 0x80000000

const maxChildRetries = 16

var (
	ErrHardenedRequiresPrivate = errors.New("derivation: hardened child requires a private key")
	ErrInvalidChild            = errors.New("derivation: invalid child scalar after retries")
	ErrNoPrivateKey            = errors.New("derivation: node has no private key")
	ErrInvalidSeedLength       = errors.New("derivation: seed must be between 16 and 64 bytes")
)

var bip32MasterKey = []byte("Bitcoin seed")

// Node is one node in a BIP32 derivation tree: the bookkeeping BIP32
// requires (depth, child number, parent fingerprint) plus the node's own
// key material. PrivKey is nil for a public-only node, which can still
// derive further public-only children via DerivePublic.
type Node struct {
	Depth             byte
	ChildNumber       uint32
	ParentFingerprint [4]byte
	ChainCode         [32]byte
	PubKey            *btcec.PublicKey
	PrivKey           *btcec.ModNScalar
}

// IsHardened reports whether i designates a hardened child index.
func IsHardened(i uint32) bool { return i >= HardenedOffset }

// NewMasterNode derives the depth-0 root node from a BIP32 seed.
func NewMasterNode(seed []byte) (*Node, error) {
	if len(seed) < 16 || len(seed) > 64 {
		return nil, ErrInvalidSeedLength
	}
	il, ir := hmacSHA512Split(bip32MasterKey, seed)

	scalar, ok := scalarFromBytes(il)
	if !ok || scalar.IsZero() {
		return nil, ErrInvalidChild
	}

	node := &Node{PrivKey: scalar, PubKey: pubKeyFromScalar(scalar)}
	copy(node.ChainCode[:], ir)
	return node, nil
}

// Fingerprint returns this node's 4-byte identifier: the first 4 bytes
// of HASH160(compressed pubkey).
func (n *Node) Fingerprint() [4]byte {
	var fp [4]byte
	copy(fp[:], btcutil.Hash160(n.PubKey.SerializeCompressed()))
	return fp
}

// DerivePrivate computes child i per BIP32 CKDpriv. n must hold a
// private key. On an invalid intermediate key BIP32 specifies retrying
// with i+1; maxChildRetries bounds that loop generously above the
// ~1-in-2^127 probability of ever needing it.
func (n *Node) DerivePrivate(i uint32) (*Node, error) {
	if n.PrivKey == nil {
		return nil, ErrNoPrivateKey
	}
	for attempt := uint32(0); attempt < maxChildRetries; attempt++ {
		idx := i + attempt
		var data []byte
		if IsHardened(idx) {
			data = append(data, 0x00)
			data = append(data, privKeyBytes(n.PrivKey)...)
		} else {
			data = append(data, n.PubKey.SerializeCompressed()...)
		}
		data = append(data, be32(idx)...)

		il, ir := hmacSHA512Split(n.ChainCode[:], data)

		ilScalar, ok := scalarFromBytes(il)
		if !ok {
			continue
		}

		var childScalar btcec.ModNScalar
		childScalar.Add2(ilScalar, n.PrivKey)
		if childScalar.IsZero() {
			continue
		}

		child := &Node{
			Depth:             n.Depth + 1,
			ChildNumber:       idx,
			ParentFingerprint: n.Fingerprint(),
			PrivKey:           &childScalar,
			PubKey:            pubKeyFromScalar(&childScalar),
		}
		copy(child.ChainCode[:], ir)
		return child, nil
	}
	return nil, ErrInvalidChild
}

// DerivePublic computes child i per BIP32 CKDpub. Hardened indices are
// rejected outright: a public-only node can never produce a hardened
// child.
func (n *Node) DerivePublic(i uint32) (*Node, error) {
	if IsHardened(i) {
		return nil, ErrHardenedRequiresPrivate
	}
	for attempt := uint32(0); attempt < maxChildRetries; attempt++ {
		idx := i + attempt
		data := append(append([]byte{}, n.PubKey.SerializeCompressed()...), be32(idx)...)
		il, ir := hmacSHA512Split(n.ChainCode[:], data)

		ilScalar, ok := scalarFromBytes(il)
		if !ok {
			continue
		}

		childPub, ok := addScalarToPoint(ilScalar, n.PubKey)
		if !ok {
			continue
		}

		child := &Node{
			Depth:             n.Depth + 1,
			ChildNumber:       idx,
			ParentFingerprint: n.Fingerprint(),
			PubKey:            childPub,
		}
		copy(child.ChainCode[:], ir)
		return child, nil
	}
	return nil, ErrInvalidChild
}

// Neuter strips the private key, returning a public-only copy usable for
// soft derivation and watching-only forks.
func (n *Node) Neuter() *Node {
	pub := *n
	pub.PrivKey = nil
	return &pub
}
