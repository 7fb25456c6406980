package resolver

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/opd-ai/hdvault/asset"
	"github.com/opd-ai/hdvault/derivation"
)

func testPubKey(t *testing.T) []byte {
	t.Helper()
	master, err := derivation.NewMasterNode([]byte("01234567890123456789012345678901"))
	if err != nil {
		t.Fatalf("NewMasterNode: %v", err)
	}
	return master.PubKey.SerializeCompressed()
}

func TestGetByValRegisteredHash(t *testing.T) {
	r := New()
	pub := testPubKey(t)
	hash := btcutil.Hash160(pub)

	want := Preimage{AccountID: 1, AssetIndex: 2, Asset: &asset.Asset{Kind: asset.KindSingle}}
	r.Register(hash, asset.P2PKH, want)

	got, err := r.GetByVal(hash)
	if err != nil {
		t.Fatalf("GetByVal: %v", err)
	}
	if got.AccountID != want.AccountID || got.AssetIndex != want.AssetIndex {
		t.Fatalf("got %+v want %+v", got, want)
	}
	if got.Type != asset.P2PKH {
		t.Fatalf("got type %v want P2PKH", got.Type)
	}
}

func TestGetByValUnknownHash(t *testing.T) {
	r := New()
	if _, err := r.GetByVal([]byte("nope")); err != ErrNoAsset {
		t.Fatalf("got %v want ErrNoAsset", err)
	}
}

func TestGetByValNestedPredecessorSeedsCache(t *testing.T) {
	r := New()
	pub := testPubKey(t)
	innerHash := btcutil.Hash160(pub)
	outerHash := btcutil.Hash160(append([]byte{0}, innerHash...))

	p := Preimage{
		AccountID:       4,
		Asset:           &asset.Asset{Kind: asset.KindSingle},
		PredecessorHash: innerHash,
		PredecessorType: asset.P2WPKH,
	}
	r.Register(outerHash, asset.P2WPKH|asset.P2SH, p)

	if _, err := r.GetByVal(outerHash); err != nil {
		t.Fatalf("GetByVal outer: %v", err)
	}

	// The inner hash was never directly Registered, only seeded via the
	// cache when the wrapping preimage resolved.
	got, err := r.GetByVal(innerHash)
	if err != nil {
		t.Fatalf("GetByVal inner: %v", err)
	}
	if got.AccountID != 4 {
		t.Fatalf("inner lookup returned wrong preimage: %+v", got)
	}
}

func TestGetByValCacheHit(t *testing.T) {
	r := New()
	pub := testPubKey(t)
	hash := btcutil.Hash160(pub)
	r.Register(hash, asset.P2PKH, Preimage{AccountID: 9, Asset: &asset.Asset{Kind: asset.KindSingle}})

	first, err := r.GetByVal(hash)
	if err != nil {
		t.Fatalf("GetByVal: %v", err)
	}
	second, err := r.GetByVal(hash)
	if err != nil {
		t.Fatalf("GetByVal (cached): %v", err)
	}
	if first != second {
		t.Fatal("expected the cached lookup to return the same preimage pointer")
	}
}

func TestGetPrivKeyForPubkeyDirectCache(t *testing.T) {
	r := New()
	pub := testPubKey(t)
	r.pubkeyPrivCache[string(pub)] = []byte("cached-priv")

	got, err := r.GetPrivKeyForPubkey(pub)
	if err != nil {
		t.Fatalf("GetPrivKeyForPubkey: %v", err)
	}
	if !bytes.Equal(got, []byte("cached-priv")) {
		t.Fatalf("got %x want cached-priv", got)
	}
}

func TestGetPrivKeyForPubkeyViaPathHint(t *testing.T) {
	master, err := derivation.NewMasterNode([]byte("01234567890123456789012345678901"))
	if err != nil {
		t.Fatalf("NewMasterNode: %v", err)
	}
	child, err := master.DerivePrivate(3)
	if err != nil {
		t.Fatalf("DerivePrivate: %v", err)
	}

	r := New()
	r.DeriveAlongHint = func(hint PathHint) (*derivation.Node, error) {
		return child, nil
	}
	pub := child.PubKey.SerializeCompressed()
	r.RegisterPathHint(pub, PathHint{Path: []uint32{3}, SeedFingerprint: master.Fingerprint()})

	got, err := r.GetPrivKeyForPubkey(pub)
	if err != nil {
		t.Fatalf("GetPrivKeyForPubkey: %v", err)
	}
	want := child.PrivKey.Bytes()
	if !bytes.Equal(got, want[:]) {
		t.Fatal("resolved private key does not match the hinted node")
	}
}

func TestGetPrivKeyForPubkeyViaHashFallbackDecrypt(t *testing.T) {
	pub := testPubKey(t)
	hash := btcutil.Hash160(pub)

	r := New()
	r.DecryptAssetKey = func(keyID, ciphertext []byte) ([]byte, error) {
		return []byte("decrypted-priv"), nil
	}
	r.Register(hash, asset.P2PKH, Preimage{
		Asset: &asset.Asset{
			Kind: asset.KindSingle,
			Single: &asset.SingleAsset{
				PubKey:          pub,
				EncryptionKeyID: []byte("key-1"),
				PrivCiphertext:  []byte("ciphertext"),
			},
		},
	})

	got, err := r.GetPrivKeyForPubkey(pub)
	if err != nil {
		t.Fatalf("GetPrivKeyForPubkey: %v", err)
	}
	if !bytes.Equal(got, []byte("decrypted-priv")) {
		t.Fatalf("got %x want decrypted-priv", got)
	}
}

func TestGetPrivKeyForPubkeyWrongAssetShape(t *testing.T) {
	pub := testPubKey(t)
	hash := btcutil.Hash160(pub)

	r := New()
	r.Register(hash, asset.P2PKH, Preimage{
		Asset: &asset.Asset{
			Kind:      asset.KindMultisig,
			Multisig:  &asset.MultisigAsset{M: 1, N: 1, PubKeys: [][]byte{pub}},
		},
	})

	if _, err := r.GetPrivKeyForPubkey(pub); err != ErrWrongAssetShape {
		t.Fatalf("got %v want ErrWrongAssetShape", err)
	}
}

func TestGetPrivKeyForPubkeyNoPrivateMaterial(t *testing.T) {
	pub := testPubKey(t)
	hash := btcutil.Hash160(pub)

	r := New()
	r.Register(hash, asset.P2PKH, Preimage{
		Asset: &asset.Asset{
			Kind:   asset.KindSingle,
			Single: &asset.SingleAsset{PubKey: pub},
		},
	})

	if _, err := r.GetPrivKeyForPubkey(pub); err != ErrNoPrivateMaterial {
		t.Fatalf("got %v want ErrNoPrivateMaterial", err)
	}
}

func TestResolveBIP32PathForPubkey(t *testing.T) {
	r := New()
	pub := testPubKey(t)
	hint := PathHint{Path: []uint32{44, 0, 0}, SeedFingerprint: [4]byte{1, 2, 3, 4}}
	r.RegisterPathHint(pub, hint)

	got, err := r.ResolveBIP32PathForPubkey(pub)
	if err != nil {
		t.Fatalf("ResolveBIP32PathForPubkey: %v", err)
	}
	if len(got.PathFromSeed) != 3 || got.PathFromSeed[0] != 44 {
		t.Fatalf("got path %v", got.PathFromSeed)
	}
	if got.SeedFingerprint != hint.SeedFingerprint {
		t.Fatal("fingerprint mismatch")
	}
}

func TestResolveBIP32PathForPubkeyNoHint(t *testing.T) {
	r := New()
	pub := testPubKey(t)
	if _, err := r.ResolveBIP32PathForPubkey(pub); err != ErrNoPathHint {
		t.Fatalf("got %v want ErrNoPathHint", err)
	}
}
