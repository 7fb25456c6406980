package walletcore

import (
	"github.com/opd-ai/hdvault/asset"
	"github.com/opd-ai/hdvault/derivation"
	"github.com/opd-ai/hdvault/resolver"
)

// Neuter returns a watch-only copy of this wallet: the same accounts
// and address types, with the master node's private key removed and a
// fresh resolver. The copy's account objects are new but wrap the
// original's chain extenders unchanged (see publicExtender); these derive
// addresses by public derivation only, and any private key a chain was
// built with stays inside it. The copy shares the original's storage
// handle and asset-key container.
func (w *Wallet) Neuter() (*Wallet, error) {
	neutered := &Wallet{
		env:             w.env,
		assetKeys:       w.assetKeys,
		params:          w.params,
		ID:              w.ID,
		seedFingerprint: w.seedFingerprint,
		tree:            w.tree,
		resolver:        resolver.New(),
		accounts:        make(map[uint32]*asset.AddressAccount),
		accountIDs:      append([]uint32(nil), w.accountIDs...),
		nextUserID:      w.nextUserID,
		slotCounter:     w.slotCounter,
	}
	if w.masterNode != nil {
		neutered.masterNode = w.masterNode.Neuter()
	}
	// A fresh resolver, not the original's: the original's DeriveAlongHint
	// closure captures the original *Wallet's still-private master node,
	// so sharing the resolver would let this "watch-only" copy answer
	// GetPrivKeyForPubkey through it.
	neutered.resolver.DeriveAlongHint = neutered.deriveAlongHint

	for id, acc := range w.accounts {
		extPub, ok := publicExtender(acc.External)
		if !ok {
			return nil, ErrUnsupportedType
		}
		intPub, ok := publicExtender(acc.Internal)
		if !ok {
			return nil, ErrUnsupportedType
		}
		na, err := asset.NewAddressAccount(id, acc.EnabledTypes, extPub, intPub)
		if err != nil {
			return nil, err
		}
		neutered.accounts[id] = na
	}
	return neutered, nil
}

// publicExtender strips private-key-dependent behavior from a chain
// extender where that is meaningful; BIP32ChainExtender derives every
// leaf via DerivePublic already (see derivation/chainextender.go), so it
// is already watch-only-safe and is returned unchanged. Schemes whose
// DeriveAt path requires a private scalar (none currently do) would be
// rejected here instead of silently leaking key material.
func publicExtender(e asset.ChainExtender) (asset.ChainExtender, bool) {
	switch e.(type) {
	case *derivation.BIP32ChainExtender, *derivation.ArmoryChainExtender, *derivation.SaltedChainExtender, *derivation.ECDHChainExtender:
		return e, true
	default:
		return nil, false
	}
}
