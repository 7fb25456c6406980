package derivation

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
)

// ECDHChain implements the ECDH-salted derivation scheme: a base keypair
// plus an explicitly registered list of per-index salts, where pub_idx =
// salt_idx · base_pub. Persisting the salt list across process restarts
// is the caller's responsibility (the asset-account record that owns
// this chain); ECDHChain itself only keeps the in-memory registry and
// its idempotent indexing rule.
type ECDHChain struct {
	basePriv *btcec.ModNScalar
	basePub  *btcec.PublicKey

	salts []btcec.ModNScalar
	index map[string]int
}

// NewECDHChain builds a chain from a base keypair. basePriv may be nil
// for a watching-only chain, in which case PrivateAt always fails.
func NewECDHChain(basePub *btcec.PublicKey, basePriv *btcec.ModNScalar) *ECDHChain {
	return &ECDHChain{basePriv: basePriv, basePub: basePub, index: make(map[string]int)}
}

// AddSalt registers salt, returning its index. Re-adding an
// already-registered salt returns the same index without growing the
// list, per spec.md's idempotency requirement.
func (c *ECDHChain) AddSalt(salt []byte) (int, error) {
	key := hex.EncodeToString(salt)
	if idx, ok := c.index[key]; ok {
		return idx, nil
	}
	s, ok := scalarFromBytes(salt)
	if !ok {
		return 0, ErrInvalidChild
	}
	idx := len(c.salts)
	c.salts = append(c.salts, *s)
	c.index[key] = idx
	return idx, nil
}

// PublicAt returns pub_idx = salt_idx · base_pub.
func (c *ECDHChain) PublicAt(idx int) (*btcec.PublicKey, error) {
	if idx < 0 || idx >= len(c.salts) {
		return nil, ErrInvalidChild
	}
	return mulScalarPoint(&c.salts[idx], c.basePub), nil
}

// PrivateAt returns priv_idx = salt_idx * base_priv mod n. Requires the
// chain to have been seeded with a private base key.
func (c *ECDHChain) PrivateAt(idx int) (*btcec.ModNScalar, error) {
	if c.basePriv == nil {
		return nil, ErrNoPrivateKey
	}
	if idx < 0 || idx >= len(c.salts) {
		return nil, ErrInvalidChild
	}
	return mulScalars(&c.salts[idx], c.basePriv), nil
}

// SaltCount returns the number of registered salts.
func (c *ECDHChain) SaltCount() int { return len(c.salts) }
