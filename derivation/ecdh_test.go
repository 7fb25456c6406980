package derivation

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
)

func TestECDHChainAddSaltIdempotent(t *testing.T) {
	master, err := NewMasterNode(testSeed(t))
	if err != nil {
		t.Fatalf("NewMasterNode: %v", err)
	}
	chain := NewECDHChain(master.PubKey, master.PrivKey)

	salt := bytes.Repeat([]byte{0x11}, 32)
	idx1, err := chain.AddSalt(salt)
	if err != nil {
		t.Fatalf("AddSalt: %v", err)
	}
	idx2, err := chain.AddSalt(salt)
	if err != nil {
		t.Fatalf("AddSalt (re-add): %v", err)
	}
	if idx1 != idx2 {
		t.Fatalf("re-adding the same salt returned different indexes: %d vs %d", idx1, idx2)
	}
	if chain.SaltCount() != 1 {
		t.Fatalf("SaltCount = %d want 1", chain.SaltCount())
	}

	otherSalt := bytes.Repeat([]byte{0x22}, 32)
	idx3, err := chain.AddSalt(otherSalt)
	if err != nil {
		t.Fatalf("AddSalt (distinct): %v", err)
	}
	if idx3 == idx1 {
		t.Fatal("distinct salts should not share an index")
	}
	if chain.SaltCount() != 2 {
		t.Fatalf("SaltCount = %d want 2", chain.SaltCount())
	}
}

func TestECDHChainPublicAtMatchesSaltTimesBasePub(t *testing.T) {
	master, err := NewMasterNode(testSeed(t))
	if err != nil {
		t.Fatalf("NewMasterNode: %v", err)
	}
	chain := NewECDHChain(master.PubKey, master.PrivKey)

	salt := bytes.Repeat([]byte{0x33}, 32)
	idx, err := chain.AddSalt(salt)
	if err != nil {
		t.Fatalf("AddSalt: %v", err)
	}

	got, err := chain.PublicAt(idx)
	if err != nil {
		t.Fatalf("PublicAt: %v", err)
	}

	saltScalar, ok := scalarFromBytes(salt)
	if !ok {
		t.Fatal("scalarFromBytes failed")
	}
	want := mulScalarPoint(saltScalar, master.PubKey)

	gotHash := btcutil.Hash160(got.SerializeCompressed())
	wantHash := btcutil.Hash160(want.SerializeCompressed())
	if !bytes.Equal(gotHash, wantHash) {
		t.Fatal("address hash does not equal HASH160(salt * base_pub)")
	}
}

func TestECDHChainPublicAtRejectsUnregisteredIndex(t *testing.T) {
	master, err := NewMasterNode(testSeed(t))
	if err != nil {
		t.Fatalf("NewMasterNode: %v", err)
	}
	chain := NewECDHChain(master.PubKey, master.PrivKey)
	if _, err := chain.PublicAt(0); err != ErrInvalidChild {
		t.Fatalf("got %v want ErrInvalidChild", err)
	}
}

func TestECDHChainPrivateAtRequiresPrivateBase(t *testing.T) {
	master, err := NewMasterNode(testSeed(t))
	if err != nil {
		t.Fatalf("NewMasterNode: %v", err)
	}
	chain := NewECDHChain(master.PubKey, nil)
	salt := bytes.Repeat([]byte{0x44}, 32)
	idx, err := chain.AddSalt(salt)
	if err != nil {
		t.Fatalf("AddSalt: %v", err)
	}
	if _, err := chain.PrivateAt(idx); err != ErrNoPrivateKey {
		t.Fatalf("got %v want ErrNoPrivateKey", err)
	}
}
