package derivation

import (
	"errors"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/opd-ai/hdvault/asset"
)

var errSaltIndexOutOfRange = errors.New("derivation: salt index has not been registered")

// BIP32ChainExtender adapts a BIP32 node already positioned at an
// account's external or internal chain root into asset.ChainExtender,
// soft-deriving the leaf at each requested index and computing its
// address.
type BIP32ChainExtender struct {
	ChainRoot *Node
	Params    *chaincfg.Params
}

// DeriveAt implements asset.ChainExtender.
func (e *BIP32ChainExtender) DeriveAt(t asset.AddressType, index uint32) (*asset.AddressEntry, error) {
	leaf, err := e.ChainRoot.DerivePublic(index)
	if err != nil {
		return nil, err
	}
	pub := leaf.PubKey.SerializeCompressed()
	addr, err := asset.ComputeAddress(t, pub, e.Params)
	if err != nil {
		return nil, err
	}
	return &asset.AddressEntry{Type: t, Index: index, PubKey: pub, EncodedAddress: addr}, nil
}

// ArmoryChainExtender adapts an ArmoryChain into asset.ChainExtender.
// Armory-135 accounts enable exactly one legacy address type, but the
// interface still takes t so the caller's enabled-types loop stays
// uniform across schemes.
type ArmoryChainExtender struct {
	Chain  *ArmoryChain
	Params *chaincfg.Params
}

// DeriveAt implements asset.ChainExtender.
func (e *ArmoryChainExtender) DeriveAt(t asset.AddressType, index uint32) (*asset.AddressEntry, error) {
	pub := e.Chain.ChainedPub(index).SerializeCompressed()
	addr, err := asset.ComputeAddress(t, pub, e.Params)
	if err != nil {
		return nil, err
	}
	return &asset.AddressEntry{Type: t, Index: index, PubKey: pub, EncodedAddress: addr}, nil
}

// SaltedChainExtender adapts a SaltedBIP32 chain into asset.ChainExtender.
type SaltedChainExtender struct {
	Chain  *SaltedBIP32
	Params *chaincfg.Params
}

// DeriveAt implements asset.ChainExtender.
func (e *SaltedChainExtender) DeriveAt(t asset.AddressType, index uint32) (*asset.AddressEntry, error) {
	leaf, err := e.Chain.DeriveSalted(index)
	if err != nil {
		return nil, err
	}
	pub := leaf.PubKey.SerializeCompressed()
	addr, err := asset.ComputeAddress(t, pub, e.Params)
	if err != nil {
		return nil, err
	}
	return &asset.AddressEntry{Type: t, Index: index, PubKey: pub, EncodedAddress: addr}, nil
}

// ECDHChainExtender adapts an ECDHChain into asset.ChainExtender. Unlike
// the other schemes, an ECDH chain's "index" is a salt index that must
// already have been registered via ECDHChain.AddSalt; the account-level
// caller is responsible for that registration, since it is a deliberate
// write-transaction operation per spec.md §4.F.
type ECDHChainExtender struct {
	Chain  *ECDHChain
	Params *chaincfg.Params
}

// DeriveAt implements asset.ChainExtender.
func (e *ECDHChainExtender) DeriveAt(t asset.AddressType, index uint32) (*asset.AddressEntry, error) {
	if int(index) >= e.Chain.SaltCount() {
		return nil, errSaltIndexOutOfRange
	}
	pubKey, err := e.Chain.PublicAt(int(index))
	if err != nil {
		return nil, err
	}
	pub := pubKey.SerializeCompressed()
	addr, err := asset.ComputeAddress(t, pub, e.Params)
	if err != nil {
		return nil, err
	}
	return &asset.AddressEntry{Type: t, Index: index, PubKey: pub, EncodedAddress: addr}, nil
}
