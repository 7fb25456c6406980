package asset

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
)

// secp256k1 generator point, compressed serialization. Used only as a
// fixed, valid public key for exercising address computation; it is not
// tied to a real private key anyone controls a balance with.
const generatorPubKeyHex = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"

func mustDecodeHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("hex.DecodeString(%q): %v", s, err)
	}
	return b
}

func TestComputeAddressP2PKHMainnet(t *testing.T) {
	pub := mustDecodeHex(t, generatorPubKeyHex)
	addr, err := ComputeAddress(P2PKH, pub, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("ComputeAddress: %v", err)
	}
	if !strings.HasPrefix(addr, "1") {
		t.Fatalf("P2PKH mainnet address %q should start with 1", addr)
	}
}

func TestComputeAddressP2WPKHMainnet(t *testing.T) {
	pub := mustDecodeHex(t, generatorPubKeyHex)
	addr, err := ComputeAddress(P2WPKH, pub, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("ComputeAddress: %v", err)
	}
	if !strings.HasPrefix(addr, "bc1") {
		t.Fatalf("P2WPKH mainnet address %q should start with bc1", addr)
	}
}

func TestComputeAddressP2SHWrappedP2WPKH(t *testing.T) {
	pub := mustDecodeHex(t, generatorPubKeyHex)
	addr, err := ComputeAddress(P2WPKH|P2SH, pub, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("ComputeAddress: %v", err)
	}
	if !strings.HasPrefix(addr, "3") {
		t.Fatalf("P2SH-wrapped P2WPKH address %q should start with 3", addr)
	}
}

func TestComputeAddressDiffersByType(t *testing.T) {
	pub := mustDecodeHex(t, generatorPubKeyHex)
	p2pkh, err := ComputeAddress(P2PKH, pub, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("ComputeAddress P2PKH: %v", err)
	}
	p2wpkh, err := ComputeAddress(P2WPKH, pub, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("ComputeAddress P2WPKH: %v", err)
	}
	if p2pkh == p2wpkh {
		t.Fatalf("P2PKH and P2WPKH addresses should differ, both %q", p2pkh)
	}
}

func TestComputeAddressRejectsNilParams(t *testing.T) {
	pub := mustDecodeHex(t, generatorPubKeyHex)
	if _, err := ComputeAddress(P2PKH, pub, nil); err != errNilParams {
		t.Fatalf("got %v want errNilParams", err)
	}
}

func TestComputeAddressRejectsIllegalType(t *testing.T) {
	pub := mustDecodeHex(t, generatorPubKeyHex)
	if _, err := ComputeAddress(P2WPKH|P2WSH, pub, &chaincfg.MainNetParams); err == nil {
		t.Fatal("expected error for illegal P2WPKH+P2WSH combination")
	}
}

func TestComputeMultisigAddressP2SH(t *testing.T) {
	pub := mustDecodeHex(t, generatorPubKeyHex)
	pubKeys := [][]byte{pub, pub}
	addr, err := ComputeMultisigAddress(Multisig, 2, pubKeys, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("ComputeMultisigAddress: %v", err)
	}
	if !strings.HasPrefix(addr, "3") {
		t.Fatalf("P2SH multisig address %q should start with 3", addr)
	}
}

func TestComputeMultisigAddressP2WSH(t *testing.T) {
	pub := mustDecodeHex(t, generatorPubKeyHex)
	pubKeys := [][]byte{pub, pub}
	addr, err := ComputeMultisigAddress(Multisig|P2WSH, 2, pubKeys, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("ComputeMultisigAddress: %v", err)
	}
	if !strings.HasPrefix(addr, "bc1") {
		t.Fatalf("P2WSH multisig address %q should start with bc1", addr)
	}
}

func TestComputeMultisigAddressRejectsNonMultisigBase(t *testing.T) {
	pub := mustDecodeHex(t, generatorPubKeyHex)
	if _, err := ComputeMultisigAddress(P2PKH, 2, [][]byte{pub, pub}, &chaincfg.MainNetParams); err == nil {
		t.Fatal("expected error for non-multisig base type")
	}
}
