package asset

import "errors"

// Reserved account ids. The legacy (Armory-135) outer/inner chains and
// the first BIP32 outer/inner chains occupy fixed ids so a wallet header
// can locate its primary chains without a lookup; user-created accounts
// start at AccountIDFirstUser.
const (
	AccountIDLegacyOuter uint32 = 0
	AccountIDLegacyInner uint32 = 1
	AccountIDBIP32Outer  uint32 = 2
	AccountIDBIP32Inner  uint32 = 3
	AccountIDFirstUser   uint32 = 4
)

var (
	errNoEnabledTypes = errors.New("asset: account has no enabled address types")
	errChainExhausted = errors.New("asset: derivation chain exhausted")
)

// ChainExtender derives the address entry at a given chain index for one
// address type. Implemented by the derivation package's concrete chain
// types; kept as an interface here so asset never imports derivation.
type ChainExtender interface {
	DeriveAt(t AddressType, index uint32) (*AddressEntry, error)
}

// AddressAccount tracks address issuance for one account: an external
// (deposit) chain and an internal (change) chain, each fed by a
// ChainExtender, plus the set of address types new addresses are issued
// as. getNewAddress's cross-account "try the main account first, then
// walk accounts in insertion order" policy lives one layer up, in the
// wallet-level package that owns the account list.
type AddressAccount struct {
	ID           uint32
	EnabledTypes []AddressType

	External ChainExtender
	Internal ChainExtender

	nextExternal uint32
	nextInternal uint32

	issued map[string]*AddressEntry
}

// NewAddressAccount validates enabledTypes and binds the account to its
// chain extenders.
func NewAddressAccount(id uint32, enabledTypes []AddressType, external, internal ChainExtender) (*AddressAccount, error) {
	if len(enabledTypes) == 0 {
		return nil, errNoEnabledTypes
	}
	for _, t := range enabledTypes {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	return &AddressAccount{
		ID:           id,
		EnabledTypes: enabledTypes,
		External:     external,
		Internal:     internal,
		issued:       make(map[string]*AddressEntry),
	}, nil
}

// NextUnused derives the next unused external (deposit) address for
// every enabled type at the same chain index, then advances the
// external chain index by one. Armory-135 accounts enable a single
// type; a BIP32 account may enable several (e.g. P2WPKH and its P2SH
// wrapper) sharing one index.
func (a *AddressAccount) NextUnused() ([]*AddressEntry, error) {
	return a.deriveAt(a.External, a.nextExternal, &a.nextExternal)
}

// PeekNextChangeAddress derives the account's next internal (change)
// address without advancing the internal chain index, so fee estimation
// and transaction building can see a change address before committing
// to a send.
func (a *AddressAccount) PeekNextChangeAddress() (*AddressEntry, error) {
	entries, err := a.deriveAt(a.Internal, a.nextInternal, nil)
	if err != nil {
		return nil, err
	}
	return entries[0], nil
}

// CommitChangeAddress advances the internal chain index, marking the
// address returned by the most recent PeekNextChangeAddress as used.
func (a *AddressAccount) CommitChangeAddress() ([]*AddressEntry, error) {
	return a.deriveAt(a.Internal, a.nextInternal, &a.nextInternal)
}

func (a *AddressAccount) deriveAt(chain ChainExtender, index uint32, advance *uint32) ([]*AddressEntry, error) {
	if chain == nil {
		return nil, errChainExhausted
	}
	entries := make([]*AddressEntry, 0, len(a.EnabledTypes))
	for _, t := range a.EnabledTypes {
		entry, err := chain.DeriveAt(t, index)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
		if entry.EncodedAddress != "" {
			a.issued[entry.EncodedAddress] = entry
		}
	}
	if advance != nil {
		*advance++
	}
	return entries, nil
}

// Lookup returns the address entry previously issued under the given
// encoded address, if any.
func (a *AddressAccount) Lookup(encoded string) (*AddressEntry, bool) {
	e, ok := a.issued[encoded]
	return e, ok
}

// SupportsType reports whether t is one of the account's enabled
// address types.
func (a *AddressAccount) SupportsType(t AddressType) bool {
	for _, enabled := range a.EnabledTypes {
		if enabled == t {
			return true
		}
	}
	return false
}
