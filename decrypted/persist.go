package decrypted

import (
	"encoding/binary"
	"fmt"
)

// SerializedEnvelope is the on-disk form of one passphrase envelope.
type SerializedEnvelope struct {
	KDFID      string
	N, R, P    int
	Salt       []byte
	IV         []byte
	Ciphertext []byte
}

// SerializedKey is the on-disk form of one encryption-key registry entry,
// letting walletdb persist and reload the encrypted-keys map described in
// spec.md §4.D without exposing passphraseEnvelope's unexported fields.
type SerializedKey struct {
	ID        []byte
	Envelopes []SerializedEnvelope
}

// ExportKey returns the persistable form of the registry entry for id.
func (c *Container) ExportKey(id []byte) (*SerializedKey, error) {
	rec, ok := c.registry[string(id)]
	if !ok {
		return nil, ErrEncryptedDataMissing
	}
	out := &SerializedKey{ID: append([]byte(nil), id...)}
	for kdfID, env := range rec.Envelopes {
		out.Envelopes = append(out.Envelopes, SerializedEnvelope{
			KDFID:      kdfID,
			N:          env.params.N,
			R:          env.params.R,
			P:          env.params.P,
			Salt:       append([]byte(nil), env.params.Salt...),
			IV:         append([]byte(nil), env.iv...),
			Ciphertext: append([]byte(nil), env.ciphertext...),
		})
	}
	return out, nil
}

// ImportKey installs a registry entry loaded from disk, without decrypting
// any of its envelopes.
func (c *Container) ImportKey(sk *SerializedKey) {
	rec := newEncryptionKey(sk.ID)
	for _, se := range sk.Envelopes {
		rec.Envelopes[se.KDFID] = &passphraseEnvelope{
			params: KDFParams{N: se.N, R: se.R, P: se.P, Salt: se.Salt},
			iv:     se.IV,
			ciphertext: se.Ciphertext,
		}
	}
	c.registry[string(sk.ID)] = rec
}

// MarshalBinary encodes a SerializedKey as
// varint(len(ID)) || ID || varint(envelope count) ||
// { varint(len(kdfID)) || kdfID || be32(N) || be32(R) || be32(P) ||
//   varint(len(salt)) || salt || varint(len(iv)) || iv ||
//   varint(len(ciphertext)) || ciphertext } ...
func (sk *SerializedKey) MarshalBinary() ([]byte, error) {
	buf := appendVarBytes(nil, sk.ID)
	buf = appendUvarint(buf, uint64(len(sk.Envelopes)))
	for _, e := range sk.Envelopes {
		buf = appendVarBytes(buf, []byte(e.KDFID))
		var word [4]byte
		binary.BigEndian.PutUint32(word[:], uint32(e.N))
		buf = append(buf, word[:]...)
		binary.BigEndian.PutUint32(word[:], uint32(e.R))
		buf = append(buf, word[:]...)
		binary.BigEndian.PutUint32(word[:], uint32(e.P))
		buf = append(buf, word[:]...)
		buf = appendVarBytes(buf, e.Salt)
		buf = appendVarBytes(buf, e.IV)
		buf = appendVarBytes(buf, e.Ciphertext)
	}
	return buf, nil
}

// UnmarshalBinary reverses MarshalBinary.
func (sk *SerializedKey) UnmarshalBinary(data []byte) error {
	id, rest, err := readVarBytes(data)
	if err != nil {
		return err
	}
	sk.ID = id

	count, n := binary.Uvarint(rest)
	if n <= 0 {
		return fmt.Errorf("decrypted: bad envelope count varint")
	}
	rest = rest[n:]

	sk.Envelopes = make([]SerializedEnvelope, 0, count)
	for i := uint64(0); i < count; i++ {
		var e SerializedEnvelope
		var kdfID []byte
		kdfID, rest, err = readVarBytes(rest)
		if err != nil {
			return err
		}
		e.KDFID = string(kdfID)

		if len(rest) < 12 {
			return fmt.Errorf("decrypted: truncated KDF params")
		}
		e.N = int(binary.BigEndian.Uint32(rest[0:4]))
		e.R = int(binary.BigEndian.Uint32(rest[4:8]))
		e.P = int(binary.BigEndian.Uint32(rest[8:12]))
		rest = rest[12:]

		e.Salt, rest, err = readVarBytes(rest)
		if err != nil {
			return err
		}
		e.IV, rest, err = readVarBytes(rest)
		if err != nil {
			return err
		}
		e.Ciphertext, rest, err = readVarBytes(rest)
		if err != nil {
			return err
		}
		sk.Envelopes = append(sk.Envelopes, e)
	}
	return nil
}

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func appendVarBytes(buf, b []byte) []byte {
	buf = appendUvarint(buf, uint64(len(b)))
	return append(buf, b...)
}

func readVarBytes(data []byte) (value, rest []byte, err error) {
	length, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, nil, fmt.Errorf("decrypted: bad length varint")
	}
	data = data[n:]
	if uint64(len(data)) < length {
		return nil, nil, fmt.Errorf("decrypted: truncated field")
	}
	return data[:length], data[length:], nil
}
