package backup

import (
	"bytes"
	"testing"

	"github.com/opd-ai/hdvault/asset"
)

func TestSecurePrintRoundTrip(t *testing.T) {
	encoded, keyMaterial, err := GenerateSecurePrintPassphrase()
	if err != nil {
		t.Fatalf("GenerateSecurePrintPassphrase: %v", err)
	}

	verified, err := VerifySecurePrintPassphrase(encoded)
	if err != nil {
		t.Fatalf("VerifySecurePrintPassphrase: %v", err)
	}
	if !bytes.Equal(verified, keyMaterial) {
		t.Fatal("verified key material does not match what was generated")
	}

	secret := []byte("a 32 byte root goes right here!")
	iv, ciphertext, err := EncryptSecret(keyMaterial, secret)
	if err != nil {
		t.Fatalf("EncryptSecret: %v", err)
	}
	plain, err := DecryptSecret(keyMaterial, iv, ciphertext)
	if err != nil {
		t.Fatalf("DecryptSecret: %v", err)
	}
	if !bytes.Equal(plain, secret) {
		t.Fatal("decrypted secret does not match the original")
	}
}

func TestVerifySecurePrintPassphraseBadChecksum(t *testing.T) {
	encoded, _, err := GenerateSecurePrintPassphrase()
	if err != nil {
		t.Fatalf("GenerateSecurePrintPassphrase: %v", err)
	}
	raw, err := asset.Base58Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	raw[7] ^= 0xFF // corrupt the checksum byte
	badEncoded := asset.Base58Encode(raw)

	if _, err := VerifySecurePrintPassphrase(badEncoded); err != InvalidSecurePrintPassphrase {
		t.Fatalf("got %v want InvalidSecurePrintPassphrase", err)
	}
}
