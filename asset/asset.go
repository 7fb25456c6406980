package asset

import (
	"encoding/binary"
	"errors"
)

// AssetKind tags the variant held in an Asset record.
type AssetKind byte

const (
	KindSingle AssetKind = iota + 1
	KindMultisig
)

// AccountType tags the derivation scheme a RootAsset was produced by, per
// spec.md §4.F.
type AccountType byte

const (
	AccountArmory135 AccountType = iota + 1
	AccountBIP32
	AccountSaltedBIP32
	AccountECDH
)

var (
	errUnknownAssetKind    = errors.New("asset: unknown asset kind tag")
	errUnknownAccountType  = errors.New("asset: unknown account type tag")
	errTruncatedAsset      = errors.New("asset: truncated record")
	errMultisigCountRange  = errors.New("asset: multisig m/n out of range")
)

// SingleAsset is a single-key spendable asset: a public key plus a
// reference to the encryption key and ciphertext guarding its private
// counterpart in the decrypted package's registry.
type SingleAsset struct {
	PubKey          []byte
	EncryptionKeyID []byte
	PrivCiphertext  []byte
}

// MultisigAsset is an M-of-N spendable asset.
type MultisigAsset struct {
	M, N    int
	PubKeys [][]byte
}

// Asset is a tagged union over the two spendable asset variants.
type Asset struct {
	Kind     AssetKind
	Single   *SingleAsset
	Multisig *MultisigAsset
}

// NewSingleAsset builds a single-key asset record.
func NewSingleAsset(pubKey, encryptionKeyID, privCiphertext []byte) *Asset {
	return &Asset{
		Kind: KindSingle,
		Single: &SingleAsset{
			PubKey:          pubKey,
			EncryptionKeyID: encryptionKeyID,
			PrivCiphertext:  privCiphertext,
		},
	}
}

// NewMultisigAsset builds an M-of-N asset record.
func NewMultisigAsset(m, n int, pubKeys [][]byte) (*Asset, error) {
	if m <= 0 || n <= 0 || m > n || n > 15 {
		return nil, errMultisigCountRange
	}
	if len(pubKeys) != n {
		return nil, errTruncatedAsset
	}
	return &Asset{Kind: KindMultisig, Multisig: &MultisigAsset{M: m, N: n, PubKeys: pubKeys}}, nil
}

// MarshalBinary encodes the asset as kind-tag || variant body.
func (a *Asset) MarshalBinary() ([]byte, error) {
	var buf []byte
	buf = append(buf, byte(a.Kind))
	switch a.Kind {
	case KindSingle:
		s := a.Single
		buf = appendVarBytes(buf, s.PubKey)
		buf = appendVarBytes(buf, s.EncryptionKeyID)
		buf = appendVarBytes(buf, s.PrivCiphertext)
	case KindMultisig:
		m := a.Multisig
		buf = append(buf, byte(m.M), byte(m.N))
		for _, pk := range m.PubKeys {
			buf = appendVarBytes(buf, pk)
		}
	default:
		return nil, errUnknownAssetKind
	}
	return buf, nil
}

// UnmarshalBinary reverses MarshalBinary.
func (a *Asset) UnmarshalBinary(data []byte) error {
	if len(data) < 1 {
		return errTruncatedAsset
	}
	kind := AssetKind(data[0])
	rest := data[1:]
	switch kind {
	case KindSingle:
		pubKey, rest, err := readVarBytes(rest)
		if err != nil {
			return err
		}
		keyID, rest2, err := readVarBytes(rest)
		if err != nil {
			return err
		}
		priv, _, err := readVarBytes(rest2)
		if err != nil {
			return err
		}
		a.Kind = KindSingle
		a.Single = &SingleAsset{PubKey: pubKey, EncryptionKeyID: keyID, PrivCiphertext: priv}
	case KindMultisig:
		if len(rest) < 2 {
			return errTruncatedAsset
		}
		m, n := int(rest[0]), int(rest[1])
		rest = rest[2:]
		pubKeys := make([][]byte, 0, n)
		for i := 0; i < n; i++ {
			pk, next, err := readVarBytes(rest)
			if err != nil {
				return err
			}
			pubKeys = append(pubKeys, pk)
			rest = next
		}
		a.Kind = KindMultisig
		a.Multisig = &MultisigAsset{M: m, N: n, PubKeys: pubKeys}
	default:
		return errUnknownAssetKind
	}
	return nil
}

// RootAsset is the root of one derivation chain: a chain code plus the
// root public key and, for private chains, a reference to the encrypted
// root private key. Salt is populated only for AccountSaltedBIP32 and
// AccountECDH roots.
type RootAsset struct {
	Type            AccountType
	ChainCode       []byte
	PubKey          []byte
	EncryptionKeyID []byte
	PrivCiphertext  []byte
	Salt            []byte
}

// MarshalBinary encodes the root asset record.
func (r *RootAsset) MarshalBinary() ([]byte, error) {
	switch r.Type {
	case AccountArmory135, AccountBIP32, AccountSaltedBIP32, AccountECDH:
	default:
		return nil, errUnknownAccountType
	}
	var buf []byte
	buf = append(buf, byte(r.Type))
	buf = appendVarBytes(buf, r.ChainCode)
	buf = appendVarBytes(buf, r.PubKey)
	buf = appendVarBytes(buf, r.EncryptionKeyID)
	buf = appendVarBytes(buf, r.PrivCiphertext)
	buf = appendVarBytes(buf, r.Salt)
	return buf, nil
}

// UnmarshalBinary reverses MarshalBinary.
func (r *RootAsset) UnmarshalBinary(data []byte) error {
	if len(data) < 1 {
		return errTruncatedAsset
	}
	t := AccountType(data[0])
	switch t {
	case AccountArmory135, AccountBIP32, AccountSaltedBIP32, AccountECDH:
	default:
		return errUnknownAccountType
	}
	rest := data[1:]
	chainCode, rest, err := readVarBytes(rest)
	if err != nil {
		return err
	}
	pubKey, rest, err := readVarBytes(rest)
	if err != nil {
		return err
	}
	keyID, rest, err := readVarBytes(rest)
	if err != nil {
		return err
	}
	priv, rest, err := readVarBytes(rest)
	if err != nil {
		return err
	}
	salt, _, err := readVarBytes(rest)
	if err != nil {
		return err
	}
	r.Type = t
	r.ChainCode = chainCode
	r.PubKey = pubKey
	r.EncryptionKeyID = keyID
	r.PrivCiphertext = priv
	r.Salt = salt
	return nil
}

// appendVarBytes and readVarBytes mirror decrypted.SerializedKey's
// varint-length-prefixed encoding, duplicated here rather than shared
// across package boundaries.

func appendVarBytes(buf, b []byte) []byte {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(b)))
	buf = append(buf, lenBuf[:n]...)
	return append(buf, b...)
}

func readVarBytes(data []byte) (value, rest []byte, err error) {
	n, sz := binary.Uvarint(data)
	if sz <= 0 {
		return nil, nil, errTruncatedAsset
	}
	data = data[sz:]
	if uint64(len(data)) < n {
		return nil, nil, errTruncatedAsset
	}
	return data[:n], data[n:], nil
}
