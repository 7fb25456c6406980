package asset

import (
	"errors"
	"math/big"
	"strings"
)

// base58Alphabet is Bitcoin's base58 alphabet, excluding the visually
// ambiguous 0/O/I/l.
const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// Base58Encode encodes raw bytes with plain (checksum-less) base58,
// preserving leading zeros. Used for the wallet ID and the backup
// package's SecurePrint passphrase, where a checksum is layered on
// separately rather than baked into the encoding itself. Checksum-bearing
// encodings do not use it: addresses are built with btcutil's address
// constructors in address.go, and BIP32 xprv/xpub strings are framed in
// derivation/serialize.go.
func Base58Encode(input []byte) string {
	x := new(big.Int).SetBytes(input)

	base := big.NewInt(58)
	zero := big.NewInt(0)
	mod := new(big.Int)
	var result []byte

	for x.Cmp(zero) > 0 {
		x.DivMod(x, base, mod)
		result = append(result, base58Alphabet[mod.Int64()])
	}
	for _, b := range input {
		if b != 0 {
			break
		}
		result = append(result, base58Alphabet[0])
	}
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return string(result)
}

// Base58Decode reverses Base58Encode.
func Base58Decode(input string) ([]byte, error) {
	result := big.NewInt(0)
	for _, r := range input {
		pos := strings.IndexRune(base58Alphabet, r)
		if pos == -1 {
			return nil, errors.New("asset: invalid base58 character")
		}
		result.Mul(result, big.NewInt(58))
		result.Add(result, big.NewInt(int64(pos)))
	}
	decoded := result.Bytes()
	for i := 0; i < len(input); i++ {
		if input[i] != '1' {
			break
		}
		decoded = append([]byte{0}, decoded...)
	}
	return decoded, nil
}
