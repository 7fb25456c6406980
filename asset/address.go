package asset

import (
	"crypto/sha256"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// AddressEntry is one derived, and address-computed, chain leaf: the
// public key material produced by a derivation chain plus the encoded
// address a wallet would hand out to a counterparty.
type AddressEntry struct {
	Type           AddressType
	Index          uint32
	PubKey         []byte
	Asset          *Asset
	EncodedAddress string
}

var (
	errNilParams       = errors.New("asset: nil chaincfg.Params")
	errUncompressedKey = errors.New("asset: uncompressed pubkey required")
)

// ComputeAddress derives the human-readable address for a single-key
// asset under the given address type and network parameters. Multisig
// address computation goes through ComputeMultisigAddress instead, since
// it additionally needs the redeem/witness script.
func ComputeAddress(t AddressType, pubKey []byte, params *chaincfg.Params) (string, error) {
	if params == nil {
		return "", errNilParams
	}
	if err := t.Validate(); err != nil {
		return "", err
	}

	serialized := pubKey
	if t.has(Uncompressed) {
		var err error
		serialized, err = uncompressPubKey(pubKey)
		if err != nil {
			return "", err
		}
	}

	switch t.Base() {
	case P2PKH:
		addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(serialized), params)
		if err != nil {
			return "", err
		}
		return addr.EncodeAddress(), nil
	case P2PK:
		addr, err := btcutil.NewAddressPubKey(serialized, params)
		if err != nil {
			return "", err
		}
		return addr.EncodeAddress(), nil
	case P2WPKH:
		witnessAddr, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(serialized), params)
		if err != nil {
			return "", err
		}
		if t.has(P2SH) {
			script, err := txscript.PayToAddrScript(witnessAddr)
			if err != nil {
				return "", err
			}
			wrapped, err := btcutil.NewAddressScriptHash(script, params)
			if err != nil {
				return "", err
			}
			return wrapped.EncodeAddress(), nil
		}
		return witnessAddr.EncodeAddress(), nil
	default:
		return "", errIllegalAddressType
	}
}

// ComputeMultisigAddress derives the human-readable address for an
// M-of-N multisig asset, wrapping the bare multisig script in P2SH,
// native P2WSH, or P2SH-wrapped-P2WSH depending on t's modifiers.
func ComputeMultisigAddress(t AddressType, m int, pubKeys [][]byte, params *chaincfg.Params) (string, error) {
	if params == nil {
		return "", errNilParams
	}
	if t.Base() != Multisig {
		return "", errIllegalAddressType
	}
	if err := t.Validate(); err != nil {
		return "", err
	}

	script, err := multisigRedeemScript(m, pubKeys)
	if err != nil {
		return "", err
	}

	switch {
	case t.has(P2WSH):
		scriptHash := sha256.Sum256(script)
		witnessAddr, err := btcutil.NewAddressWitnessScriptHash(scriptHash[:], params)
		if err != nil {
			return "", err
		}
		if t.has(P2SH) {
			wrapperScript, err := txscript.PayToAddrScript(witnessAddr)
			if err != nil {
				return "", err
			}
			wrapped, err := btcutil.NewAddressScriptHash(wrapperScript, params)
			if err != nil {
				return "", err
			}
			return wrapped.EncodeAddress(), nil
		}
		return witnessAddr.EncodeAddress(), nil
	default:
		addr, err := btcutil.NewAddressScriptHash(script, params)
		if err != nil {
			return "", err
		}
		return addr.EncodeAddress(), nil
	}
}

func multisigRedeemScript(m int, pubKeys [][]byte) ([]byte, error) {
	builder := txscript.NewScriptBuilder()
	builder.AddInt64(int64(m))
	for _, pk := range pubKeys {
		builder.AddData(pk)
	}
	builder.AddInt64(int64(len(pubKeys)))
	builder.AddOp(txscript.OP_CHECKMULTISIG)
	return builder.Script()
}

func uncompressPubKey(compressed []byte) ([]byte, error) {
	pub, err := btcec.ParsePubKey(compressed)
	if err != nil {
		return nil, err
	}
	return pub.SerializeUncompressed(), nil
}
