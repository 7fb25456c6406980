package envelope

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
)

// recordKind distinguishes the three physical record shapes that can be
// written into a single encrypted-DB counter slot. The spec describes the
// cycle marker and tombstone payloads by content alone ("the literal marker
// 'cycle'", "the 4-byte db-key of the victim"); a leading kind byte removes
// the ambiguity between those and a logical entry whose key/value happen to
// look similar, at the cost of one byte per record.
type recordKind byte

const (
	kindEntry     recordKind = 0
	kindTombstone recordKind = 1
	kindCycle     recordKind = 2
)

// cycleMarker is the literal plaintext stored in the record at counter 0,
// which proves a candidate key schedule is correct. Cycle appends further
// records carrying it as audit markers under the same schedule.
var cycleMarker = []byte("cycle")

var errRecordCorrupt = errors.New("envelope: record payload corrupt")

// buildPayload assembles the HMAC-authenticated plaintext payload for one
// physical record: HMAC-SHA256(macKey, dbKey || kind || varint(len(dataKey))
// || dataKey || varint(len(dataValue)) || dataValue) followed by the same
// kind/dataKey/dataValue encoding.
func buildPayload(macKey []byte, dbKey uint32, kind recordKind, dataKey, dataValue []byte) []byte {
	body := encodeBody(kind, dataKey, dataValue)

	mac := hmac.New(sha256.New, macKey)
	var dbKeyBuf [4]byte
	binary.BigEndian.PutUint32(dbKeyBuf[:], dbKey)
	mac.Write(dbKeyBuf[:])
	mac.Write(body)
	sum := mac.Sum(nil)

	out := make([]byte, 0, len(sum)+len(body))
	out = append(out, sum...)
	out = append(out, body...)
	return out
}

func encodeBody(kind recordKind, dataKey, dataValue []byte) []byte {
	var keyLenBuf, valLenBuf [binary.MaxVarintLen64]byte
	keyLenN := binary.PutUvarint(keyLenBuf[:], uint64(len(dataKey)))
	valLenN := binary.PutUvarint(valLenBuf[:], uint64(len(dataValue)))

	out := make([]byte, 0, 1+keyLenN+len(dataKey)+valLenN+len(dataValue))
	out = append(out, byte(kind))
	out = append(out, keyLenBuf[:keyLenN]...)
	out = append(out, dataKey...)
	out = append(out, valLenBuf[:valLenN]...)
	out = append(out, dataValue...)
	return out
}

// parsePayload verifies the HMAC over the decrypted plaintext and returns
// the record's kind, data key and data value.
func parsePayload(macKey []byte, dbKey uint32, plaintext []byte) (recordKind, []byte, []byte, error) {
	const macLen = sha256.Size
	if len(plaintext) < macLen+1 {
		return 0, nil, nil, fmt.Errorf("%w: too short", errRecordCorrupt)
	}
	sum, body := plaintext[:macLen], plaintext[macLen:]

	mac := hmac.New(sha256.New, macKey)
	var dbKeyBuf [4]byte
	binary.BigEndian.PutUint32(dbKeyBuf[:], dbKey)
	mac.Write(dbKeyBuf[:])
	mac.Write(body)
	want := mac.Sum(nil)
	if !hmac.Equal(sum, want) {
		return 0, nil, nil, fmt.Errorf("%w: HMAC mismatch", errRecordCorrupt)
	}

	kind := recordKind(body[0])
	rest := body[1:]

	keyLen, n := binary.Uvarint(rest)
	if n <= 0 {
		return 0, nil, nil, fmt.Errorf("%w: bad key length varint", errRecordCorrupt)
	}
	rest = rest[n:]
	if uint64(len(rest)) < keyLen {
		return 0, nil, nil, fmt.Errorf("%w: truncated key", errRecordCorrupt)
	}
	dataKey := rest[:keyLen]
	rest = rest[keyLen:]

	valLen, n := binary.Uvarint(rest)
	if n <= 0 {
		return 0, nil, nil, fmt.Errorf("%w: bad value length varint", errRecordCorrupt)
	}
	rest = rest[n:]
	if uint64(len(rest)) < valLen {
		return 0, nil, nil, fmt.Errorf("%w: truncated value", errRecordCorrupt)
	}
	dataValue := rest[:valLen]

	return kind, dataKey, dataValue, nil
}
