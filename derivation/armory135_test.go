package derivation

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestArmoryChainMatchesPubFromPriv(t *testing.T) {
	master, err := NewMasterNode(testSeed(t))
	if err != nil {
		t.Fatalf("NewMasterNode: %v", err)
	}

	chain, err := NewArmoryChain(master.PubKey, master.PrivKey, []byte("a fixed test chaincode"))
	if err != nil {
		t.Fatalf("NewArmoryChain: %v", err)
	}

	for i := uint32(0); i < 5; i++ {
		priv, err := chain.ChainedPriv(i)
		if err != nil {
			t.Fatalf("ChainedPriv(%d): %v", i, err)
		}
		wantPub := pubKeyFromScalar(priv)
		gotPub := chain.ChainedPub(i)
		if !bytes.Equal(gotPub.SerializeCompressed(), wantPub.SerializeCompressed()) {
			t.Fatalf("index %d: ChainedPub does not match pubkey derived from ChainedPriv", i)
		}
	}
}

func TestArmoryChainDistinctIndices(t *testing.T) {
	master, err := NewMasterNode(testSeed(t))
	if err != nil {
		t.Fatalf("NewMasterNode: %v", err)
	}
	chain, err := NewArmoryChain(master.PubKey, master.PrivKey, []byte("a fixed test chaincode"))
	if err != nil {
		t.Fatalf("NewArmoryChain: %v", err)
	}

	pub0 := chain.ChainedPub(0).SerializeCompressed()
	pub1 := chain.ChainedPub(1).SerializeCompressed()
	if bytes.Equal(pub0, pub1) {
		t.Fatal("expected distinct public keys at different chain indices")
	}
}

func TestArmoryChainPublicOnlyRejectsChainedPriv(t *testing.T) {
	master, err := NewMasterNode(testSeed(t))
	if err != nil {
		t.Fatalf("NewMasterNode: %v", err)
	}
	chain, err := NewArmoryChainPublic(master.PubKey, []byte("a fixed test chaincode"))
	if err != nil {
		t.Fatalf("NewArmoryChainPublic: %v", err)
	}
	if _, err := chain.ChainedPriv(0); err != ErrNoPrivateKey {
		t.Fatalf("got %v want ErrNoPrivateKey", err)
	}

	fullChain, err := NewArmoryChain(master.PubKey, master.PrivKey, []byte("a fixed test chaincode"))
	if err != nil {
		t.Fatalf("NewArmoryChain: %v", err)
	}
	if !bytes.Equal(chain.ChainedPub(3).SerializeCompressed(), fullChain.ChainedPub(3).SerializeCompressed()) {
		t.Fatal("public-only and full chains should agree on ChainedPub")
	}
}

func TestArmoryChainRejectsOversizeChainCode(t *testing.T) {
	master, err := NewMasterNode(testSeed(t))
	if err != nil {
		t.Fatalf("NewMasterNode: %v", err)
	}
	oversize := make([]byte, 33)
	if _, err := NewArmoryChain(master.PubKey, master.PrivKey, oversize); err != ErrInvalidChainCode {
		t.Fatalf("got %v want ErrInvalidChainCode", err)
	}
}

// TestArmoryChainMatchesGroundTruthVectors reproduces
// DerivationTests.ArmoryChain_Tests from the original Armory test suite
// (cppForSwig/gtest/WalletTests.cpp) verbatim: a 31-byte chaincode
// (zero-padded here to 32), a root private key of 31 bytes of 0x0a, and
// the first four chained private and public keys.
func TestArmoryChainMatchesGroundTruthVectors(t *testing.T) {
	chainCode, err := hex.DecodeString("31302928272625242322212019181716151413121110090807060504030201")
	if err != nil {
		t.Fatalf("decode chaincode: %v", err)
	}
	rootPrivBytes, err := hex.DecodeString("0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a")
	if err != nil {
		t.Fatalf("decode root priv: %v", err)
	}
	rootPriv, ok := scalarFromBytes(rootPrivBytes)
	if !ok {
		t.Fatal("root private key overflowed the curve order")
	}
	rootPub := pubKeyFromScalar(rootPriv)

	chain, err := NewArmoryChain(rootPub, rootPriv, chainCode)
	if err != nil {
		t.Fatalf("NewArmoryChain: %v", err)
	}

	wantPrivs := []string{
		"e2ffa33627c47f042e93425ded75942accaaca09d0a82d9bcf24af4fc6b5bb85",
		"a2002f9fdfb531e68d1fd3383ec10195b30e77c58877ce4d82795133dfd8dd9e",
		"03993b61f346be5a60a85bd465153b2c41abe92db4f6267a6577f590a85b8422",
		"dd39a855e2528898fbb0e8c99c9237c70915c80d690741c0c87f1c6e74b9a8d4",
	}
	wantPubs := []string{
		"045f22b6502501d833413073ace7ca34effcb455953559eb5d39914abcf2e8f64545fd54b4e1ca097d978c74c0bc1cab3d8c3c426dcba345d5d136b5494ae13d71",
		"04d0c5b147db60bfb59604871a89da13bc105066032e8d7667f5d631a1ebe04685d72894567aefdbcdac5abaa16f389d9da972882a703c58452c212e66e0e24671",
		"04b883039aa4d0c7903ce5ed26596f06af0698f91f804c19be027896fa67d1d14d45f85994cc38077a8bc8e980db41f736e0b1a8e41e34fd0e18dfd970fd7e681b",
		"0436e30c6b3295df86d8085d3171bfb11608943c4282a0bf98e841088a14e33cda8412dcf74fb6c8cb89dd00f208ca2c03a437b93730e8d92b45d6841e07ae4e6f",
	}

	for idx := range wantPrivs {
		i := uint32(idx + 1)

		priv, err := chain.ChainedPriv(i)
		if err != nil {
			t.Fatalf("ChainedPriv(%d): %v", i, err)
		}
		gotPriv := privKeyBytes(priv)
		wantPriv, err := hex.DecodeString(wantPrivs[idx])
		if err != nil {
			t.Fatalf("decode want priv %d: %v", i, err)
		}
		if !bytes.Equal(gotPriv, wantPriv) {
			t.Fatalf("ChainedPriv(%d) = %x, want %x", i, gotPriv, wantPriv)
		}

		gotPub := chain.ChainedPub(i).SerializeUncompressed()
		wantPub, err := hex.DecodeString(wantPubs[idx])
		if err != nil {
			t.Fatalf("decode want pub %d: %v", i, err)
		}
		if !bytes.Equal(gotPub, wantPub) {
			t.Fatalf("ChainedPub(%d) = %x, want %x", i, gotPub, wantPub)
		}
	}
}
