package asset

import (
	"bytes"
	"testing"
)

func TestSingleAssetRoundTrip(t *testing.T) {
	a := NewSingleAsset([]byte{0x02, 0x03}, []byte("key-id"), []byte("ciphertext"))
	data, err := a.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}

	var got Asset
	if err := got.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if got.Kind != KindSingle {
		t.Fatalf("Kind = %v want KindSingle", got.Kind)
	}
	if !bytes.Equal(got.Single.PubKey, a.Single.PubKey) {
		t.Fatalf("PubKey mismatch")
	}
	if !bytes.Equal(got.Single.EncryptionKeyID, a.Single.EncryptionKeyID) {
		t.Fatalf("EncryptionKeyID mismatch")
	}
	if !bytes.Equal(got.Single.PrivCiphertext, a.Single.PrivCiphertext) {
		t.Fatalf("PrivCiphertext mismatch")
	}
}

func TestMultisigAssetRoundTrip(t *testing.T) {
	pubKeys := [][]byte{{0x01}, {0x02}, {0x03}}
	a, err := NewMultisigAsset(2, 3, pubKeys)
	if err != nil {
		t.Fatalf("NewMultisigAsset: %v", err)
	}

	data, err := a.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}

	var got Asset
	if err := got.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if got.Kind != KindMultisig {
		t.Fatalf("Kind = %v want KindMultisig", got.Kind)
	}
	if got.Multisig.M != 2 || got.Multisig.N != 3 {
		t.Fatalf("M/N = %d/%d want 2/3", got.Multisig.M, got.Multisig.N)
	}
	for i, pk := range got.Multisig.PubKeys {
		if !bytes.Equal(pk, pubKeys[i]) {
			t.Fatalf("PubKeys[%d] mismatch", i)
		}
	}
}

func TestNewMultisigAssetRejectsBadCounts(t *testing.T) {
	if _, err := NewMultisigAsset(3, 2, [][]byte{{1}, {2}}); err == nil {
		t.Fatal("expected error for m > n")
	}
	if _, err := NewMultisigAsset(1, 2, [][]byte{{1}}); err == nil {
		t.Fatal("expected error for pubkey count mismatch")
	}
}

func TestRootAssetRoundTrip(t *testing.T) {
	r := &RootAsset{
		Type:            AccountSaltedBIP32,
		ChainCode:       bytes.Repeat([]byte{0xAA}, 32),
		PubKey:          []byte{0x02, 0x01},
		EncryptionKeyID: []byte("root-key"),
		PrivCiphertext:  []byte("root-ciphertext"),
		Salt:            []byte("salt-bytes"),
	}
	data, err := r.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}

	var got RootAsset
	if err := got.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if got.Type != r.Type {
		t.Fatalf("Type = %v want %v", got.Type, r.Type)
	}
	if !bytes.Equal(got.ChainCode, r.ChainCode) {
		t.Fatalf("ChainCode mismatch")
	}
	if !bytes.Equal(got.Salt, r.Salt) {
		t.Fatalf("Salt mismatch")
	}
}

func TestRootAssetUnknownAccountType(t *testing.T) {
	r := &RootAsset{Type: AccountType(99)}
	if _, err := r.MarshalBinary(); err == nil {
		t.Fatal("expected error for unknown account type")
	}
}
