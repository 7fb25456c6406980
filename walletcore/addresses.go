package walletcore

import (
	"github.com/btcsuite/btcd/btcutil"

	"github.com/opd-ai/hdvault/asset"
	"github.com/opd-ai/hdvault/derivation"
	"github.com/opd-ai/hdvault/resolver"
)

// GetNewAddress issues a fresh deposit address of the requested type,
// following spec.md §4.J's cross-account policy: try the default BIP32
// account first, then walk the remaining accounts in the order they
// were created, returning the first one that supports t.
func (w *Wallet) GetNewAddress(t asset.AddressType) (*asset.AddressEntry, error) {
	if len(w.accountIDs) == 0 {
		return nil, ErrNoAccounts
	}

	order := make([]uint32, 0, len(w.accountIDs))
	if acc, ok := w.accounts[asset.AccountIDBIP32Outer]; ok && acc.SupportsType(t) {
		order = append(order, asset.AccountIDBIP32Outer)
	}
	for _, id := range w.accountIDs {
		if id == asset.AccountIDBIP32Outer {
			continue
		}
		order = append(order, id)
	}

	for _, id := range order {
		acc := w.accounts[id]
		if !acc.SupportsType(t) {
			continue
		}
		entries, err := acc.NextUnused()
		if err != nil {
			return nil, err
		}
		entry := pickType(entries, t)
		w.registerIssuedEntry(id, entry, false)
		return entry, nil
	}
	return nil, ErrUnsupportedType
}

// PeekNextChangeAddress previews the chosen account's next change
// address, at its first enabled address type, without advancing the
// account's internal chain index.
func (w *Wallet) PeekNextChangeAddress(t asset.AddressType) (*asset.AddressEntry, error) {
	acc, err := w.changeAccount(t)
	if err != nil {
		return nil, err
	}
	return acc.PeekNextChangeAddress()
}

// CommitChangeAddress advances the chosen account's internal chain
// index, registering the address that PeekNextChangeAddress previously
// previewed.
func (w *Wallet) CommitChangeAddress(t asset.AddressType) (*asset.AddressEntry, error) {
	acc, err := w.changeAccount(t)
	if err != nil {
		return nil, err
	}
	entries, err := acc.CommitChangeAddress()
	if err != nil {
		return nil, err
	}
	entry := pickType(entries, t)
	w.registerIssuedEntry(acc.ID, entry, true)
	return entry, nil
}

func (w *Wallet) changeAccount(t asset.AddressType) (*asset.AddressAccount, error) {
	if acc, ok := w.accounts[asset.AccountIDBIP32Outer]; ok && acc.SupportsType(t) {
		return acc, nil
	}
	for _, id := range w.accountIDs {
		acc := w.accounts[id]
		if acc.SupportsType(t) {
			return acc, nil
		}
	}
	return nil, ErrUnsupportedType
}

func pickType(entries []*asset.AddressEntry, t asset.AddressType) *asset.AddressEntry {
	for _, e := range entries {
		if e.Type == t {
			return e
		}
	}
	return entries[0]
}

// registerIssuedEntry feeds a freshly-issued address into the resolver,
// so a later signing pass can map the address's script hash or pubkey
// back to the account and path that produced it. Only the bare pubkey
// hash is registered as the lookup hash; P2SH/P2WSH output-script
// hashing is left for a future signing-path addition, since no caller
// in this module yet needs to resolve a wrapped output back to its
// witness program. isChange selects which of the account's two chains
// (internal vs external) entry was actually derived from, so the path
// hint below walks the correct one.
func (w *Wallet) registerIssuedEntry(accountID uint32, entry *asset.AddressEntry, isChange bool) {
	hash := btcutil.Hash160(entry.PubKey)
	asSingle := asset.NewSingleAsset(entry.PubKey, nil, nil)
	w.resolver.Register(hash, entry.Type, resolver.Preimage{
		AccountID:  accountID,
		AssetIndex: entry.Index,
		Asset:      asSingle,
	})

	// Only accounts whose chains are plain (unsalted) BIP32 extenders are
	// reachable by walking the wallet's own master node along a path; a
	// path hint for any other scheme would derive the wrong key since the
	// master node knows nothing about Armory-135/salted/ECDH chain state.
	slot, ok := w.flatSlotForAccount(accountID, isChange)
	if !ok {
		return
	}
	w.resolver.RegisterPathHint(entry.PubKey, resolver.PathHint{
		Path:            []uint32{slot, entry.Index},
		SeedFingerprint: w.seedFingerprint,
	})
}

// flatSlotForAccount recovers the master-child index the requested chain
// (external or internal) of an account was derived at, the inverse of
// nextAccountSlot's 2*slot/2*slot+1 assignment, and reports whether that
// chain actually uses a plain BIP32ChainExtender (the only scheme a path
// hint can walk from the master node alone).
func (w *Wallet) flatSlotForAccount(accountID uint32, isChange bool) (uint32, bool) {
	acc, ok := w.accounts[accountID]
	if !ok {
		return 0, false
	}
	chain := acc.External
	if isChange {
		chain = acc.Internal
	}
	ext, ok := chain.(*derivation.BIP32ChainExtender)
	if !ok {
		return 0, false
	}
	return ext.ChainRoot.ChildNumber, true
}
