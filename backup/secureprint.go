package backup

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/opd-ai/hdvault/asset"
)

// InvalidSecurePrintPassphrase is returned when a SecurePrint
// passphrase's trailing checksum byte does not match, before any AES
// operation is attempted.
var InvalidSecurePrintPassphrase = errors.New("backup: invalid securePrint passphrase checksum")

var errBadCiphertextLength = errors.New("backup: securePrint ciphertext has the wrong length")

const securePrintRawLen = 8 // 7 random bytes + 1 checksum byte

func doubleSHA256(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}

// GenerateSecurePrintPassphrase creates a fresh SecurePrint passphrase:
// 7 random bytes plus a trailing checksum byte, base58 encoded.
func GenerateSecurePrintPassphrase() (encoded string, keyMaterial []byte, err error) {
	raw := make([]byte, securePrintRawLen)
	if _, err := rand.Read(raw[:7]); err != nil {
		return "", nil, fmt.Errorf("backup: read random passphrase bytes: %w", err)
	}
	sum := doubleSHA256(raw[:7])
	raw[7] = sum[0]
	return asset.Base58Encode(raw), raw[:7], nil
}

// VerifySecurePrintPassphrase decodes a base58 SecurePrint passphrase
// and checks its checksum before returning the 7 raw key-material bytes.
func VerifySecurePrintPassphrase(encoded string) ([]byte, error) {
	raw, err := asset.Base58Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("backup: decode securePrint passphrase: %w", err)
	}
	if len(raw) != securePrintRawLen {
		return nil, InvalidSecurePrintPassphrase
	}
	sum := doubleSHA256(raw[:7])
	if sum[0] != raw[7] {
		return nil, InvalidSecurePrintPassphrase
	}
	return raw[:7], nil
}

func securePrintAESKey(keyMaterial []byte) []byte {
	key := sha256.Sum256(keyMaterial)
	return key[:]
}

// EncryptSecret encrypts secret under a verified SecurePrint passphrase's
// key material.
func EncryptSecret(keyMaterial, secret []byte) (iv, ciphertext []byte, err error) {
	block, err := aes.NewCipher(securePrintAESKey(keyMaterial))
	if err != nil {
		return nil, nil, fmt.Errorf("backup: new cipher: %w", err)
	}
	padded := pkcs7Pad(secret, aes.BlockSize)
	iv = make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, fmt.Errorf("backup: read iv: %w", err)
	}
	ciphertext = make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return iv, ciphertext, nil
}

// DecryptSecret decrypts a SecurePrint-wrapped secret. Callers must call
// VerifySecurePrintPassphrase first; this function trusts keyMaterial is
// already checksum-verified, per spec.md's requirement that the checksum
// check happen before any AES operation.
func DecryptSecret(keyMaterial, iv, ciphertext []byte) ([]byte, error) {
	if len(ciphertext)%aes.BlockSize != 0 || len(ciphertext) == 0 {
		return nil, errBadCiphertextLength
	}
	block, err := aes.NewCipher(securePrintAESKey(keyMaterial))
	if err != nil {
		return nil, fmt.Errorf("backup: new cipher: %w", err)
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)
	return pkcs7Unpad(plain)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+padLen)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(padLen)
	}
	return out
}

var errBadPadding = errors.New("backup: bad PKCS7 padding")

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errBadPadding
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) || padLen > aes.BlockSize {
		return nil, errBadPadding
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, errBadPadding
		}
	}
	return data[:len(data)-padLen], nil
}
