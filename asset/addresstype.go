package asset

import "errors"

// AddressType is a bitfield combining exactly one base shape with zero or
// more modifiers, per spec.md §4.E.
type AddressType uint16

const (
	// Base shapes. Exactly one must be set.
	P2PKH AddressType = 1 << iota
	P2PK
	P2WPKH
	Multisig

	// Modifiers.
	Uncompressed // legacy uncompressed pubkey serialization
	P2SH         // wrap the base shape in a P2SH redeem script
	P2WSH        // wrap the base shape in a native segwit witness script
)

var errIllegalAddressType = errors.New("asset: illegal address type combination")

var baseShapes = []AddressType{P2PKH, P2PK, P2WPKH, Multisig}

// Validate rejects illegal type combinations: zero or multiple base
// shapes, Uncompressed combined with anything but P2PKH/P2PK, P2WSH
// combined with anything but Multisig, or Uncompressed combined with
// P2SH or P2WSH.
func (t AddressType) Validate() error {
	var base AddressType
	count := 0
	for _, b := range baseShapes {
		if t&b != 0 {
			base = b
			count++
		}
	}
	if count != 1 {
		return errIllegalAddressType
	}

	modifiers := t &^ base
	if modifiers&Uncompressed != 0 && base != P2PKH && base != P2PK {
		return errIllegalAddressType
	}
	if modifiers&P2WSH != 0 && base != Multisig {
		return errIllegalAddressType
	}
	if modifiers&Uncompressed != 0 && modifiers&(P2SH|P2WSH) != 0 {
		return errIllegalAddressType
	}
	return nil
}

// Base returns the single base shape bit set in t.
func (t AddressType) Base() AddressType {
	for _, b := range baseShapes {
		if t&b != 0 {
			return b
		}
	}
	return 0
}

func (t AddressType) has(m AddressType) bool { return t&m != 0 }
