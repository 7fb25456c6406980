package derivation

import (
	"crypto/sha256"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
)

// ErrInvalidChainCode is returned when a chaincode longer than 32 bytes
// is supplied to NewArmoryChain or NewArmoryChainPublic.
var ErrInvalidChainCode = errors.New("derivation: armory chaincode must be at most 32 bytes")

// ArmoryChain implements the legacy Armory-135 derivation scheme. The
// chaincode is a caller-supplied 32-byte constant fixed for the life of
// the wallet (carried on the root asset, never derived from the root
// key), and each chained key is produced from the one before it:
// pub_i/priv_i depend on pub_{i-1}, not on a closed-form power of the
// chaincode. Derivation is therefore inherently sequential; ArmoryChain
// memoizes every step it has computed so repeated or out-of-order
// ChainedPub/ChainedPriv calls don't redo work.
type ArmoryChain struct {
	chainCode [32]byte

	privs []*btcec.ModNScalar // privs[0] is nil for a public-only chain
	pubs  []*btcec.PublicKey
}

// NewArmoryChain seeds an Armory-135 chain with a private root, enabling
// both ChainedPub and ChainedPriv. chainCode is zero-padded on the left
// to 32 bytes when shorter.
func NewArmoryChain(rootPub *btcec.PublicKey, rootPriv *btcec.ModNScalar, chainCode []byte) (*ArmoryChain, error) {
	cc, err := armoryChainCode32(chainCode)
	if err != nil {
		return nil, err
	}
	return &ArmoryChain{
		chainCode: cc,
		privs:     []*btcec.ModNScalar{rootPriv},
		pubs:      []*btcec.PublicKey{rootPub},
	}, nil
}

// NewArmoryChainPublic seeds a watching-only Armory-135 chain: only
// ChainedPub is available.
func NewArmoryChainPublic(rootPub *btcec.PublicKey, chainCode []byte) (*ArmoryChain, error) {
	cc, err := armoryChainCode32(chainCode)
	if err != nil {
		return nil, err
	}
	return &ArmoryChain{
		chainCode: cc,
		pubs:      []*btcec.PublicKey{rootPub},
	}, nil
}

func armoryChainCode32(chainCode []byte) ([32]byte, error) {
	var cc [32]byte
	if len(chainCode) > 32 {
		return cc, ErrInvalidChainCode
	}
	copy(cc[32-len(chainCode):], chainCode)
	return cc, nil
}

// ChainedPub returns pub_i, derived by walking pub_0 forward i steps:
// pub_j = mult_j · pub_{j-1}, where mult_j = HASH256(pub_{j-1}) XOR
// chaincode.
func (c *ArmoryChain) ChainedPub(i uint32) *btcec.PublicKey {
	c.extendTo(i)
	return c.pubs[i]
}

// ChainedPriv returns priv_i, derived by walking priv_0 forward i steps:
// priv_j = priv_{j-1} * mult_j mod n, where mult_j = HASH256(pub_{j-1})
// XOR chaincode. Requires the chain to have been seeded with a private
// root via NewArmoryChain.
func (c *ArmoryChain) ChainedPriv(i uint32) (*btcec.ModNScalar, error) {
	if len(c.privs) == 0 || c.privs[0] == nil {
		return nil, ErrNoPrivateKey
	}
	c.extendTo(i)
	return c.privs[i], nil
}

// extendTo computes every step up to and including i that hasn't
// already been memoized.
func (c *ArmoryChain) extendTo(i uint32) {
	for uint32(len(c.pubs)) <= i {
		j := len(c.pubs) - 1
		mult := c.multiplierAt(c.pubs[j])

		c.pubs = append(c.pubs, mulScalarPoint(mult, c.pubs[j]))
		if len(c.privs) > 0 && c.privs[0] != nil {
			c.privs = append(c.privs, mulScalars(c.privs[j], mult))
		}
	}
}

// multiplierAt computes HASH256(pub) XOR chaincode as a scalar mod n,
// where pub is serialized uncompressed (0x04 || X || Y), matching the
// original ComputeChainedPrivateKey/ComputeChainedPublicKey input.
func (c *ArmoryChain) multiplierAt(pub *btcec.PublicKey) *btcec.ModNScalar {
	sum := doubleSHA256(pub.SerializeUncompressed())
	var xored [32]byte
	for k := range xored {
		xored[k] = sum[k] ^ c.chainCode[k]
	}
	mult := new(btcec.ModNScalar)
	mult.SetByteSlice(xored[:])
	return mult
}

func doubleSHA256(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}
