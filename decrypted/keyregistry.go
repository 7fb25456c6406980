package decrypted

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

// ErrDecryptionFailed is returned when a passphrase envelope fails to open
// (wrong passphrase, or corrupt ciphertext).
var ErrDecryptionFailed = errors.New("decrypted: decryption failed")

// passphraseEnvelope wraps an encryption key's 32-byte raw material under
// one KDF-derived AES key.
type passphraseEnvelope struct {
	params     KDFParams
	iv         []byte
	ciphertext []byte
}

func sealEnvelope(params KDFParams, passphrase, rawKey []byte) (*passphraseEnvelope, error) {
	aesKey, err := params.Derive(passphrase)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, fmt.Errorf("decrypted: new cipher: %w", err)
	}
	padded := pkcs7Pad(rawKey, aes.BlockSize)
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("decrypted: read iv: %w", err)
	}
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return &passphraseEnvelope{params: params, iv: iv, ciphertext: ciphertext}, nil
}

func (e *passphraseEnvelope) open(aesKey []byte) ([]byte, error) {
	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, fmt.Errorf("decrypted: new cipher: %w", err)
	}
	if len(e.ciphertext)%aes.BlockSize != 0 || len(e.ciphertext) == 0 {
		return nil, ErrDecryptionFailed
	}
	plain := make([]byte, len(e.ciphertext))
	cipher.NewCBCDecrypter(block, e.iv).CryptBlocks(plain, e.ciphertext)
	out, err := pkcs7Unpad(plain)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return out, nil
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

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrDecryptionFailed
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) || padLen > aes.BlockSize {
		return nil, ErrDecryptionFailed
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, ErrDecryptionFailed
		}
	}
	return data[:len(data)-padLen], nil
}

// EncryptionKey is the encrypted-form registry entry for one raw key:
// zero or more passphrase envelopes, keyed by KDF id, that each unwrap the
// same underlying raw key material.
type EncryptionKey struct {
	ID        []byte
	Envelopes map[string]*passphraseEnvelope
}

func newEncryptionKey(id []byte) *EncryptionKey {
	return &EncryptionKey{ID: id, Envelopes: make(map[string]*passphraseEnvelope)}
}

// addEnvelope wraps rawKey under params/passphrase and registers it.
func (k *EncryptionKey) addEnvelope(params KDFParams, passphrase, rawKey []byte) error {
	env, err := sealEnvelope(params, passphrase, rawKey)
	if err != nil {
		return err
	}
	k.Envelopes[params.ID()] = env
	return nil
}
