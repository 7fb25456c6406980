package backup

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"strings"
)

// easy16Alphabet is a 16-symbol alphabet distinct from base16 so a
// transcription error reads as an obviously wrong letter rather than a
// plausible hex digit.
const easy16Alphabet = "asdfghjkwertyuio"

// Backup-type discriminators, per spec.md §4.I. Indexes 2 and 3 are a
// SecurePrint-wrapped variant of 0 and 1 respectively: spec.md leaves
// exactly how "the indexes say SecurePrint is in use" is signaled as an
// open question, resolved here by reserving the next two index slots in
// the otherwise-unused 2..14 range rather than inventing an out-of-band
// flag.
const (
	IndexLegacy                byte = 0
	IndexBIP32Seed             byte = 1
	IndexLegacySecurePrint     byte = 2
	IndexBIP32SeedSecurePrint  byte = 3
	IndexVirginBIP32           byte = 15
)

const lineDataBytes = 16

var (
	ErrBadLineLength  = errors.New("backup: easy16 line has the wrong length")
	ErrBadLineChar    = errors.New("backup: easy16 line contains a character outside the alphabet")
	ErrChecksumFailed = errors.New("backup: easy16 checksum does not match any index")
)

func easy16ByteToChars(b byte) (hi, lo byte) {
	return easy16Alphabet[b>>4], easy16Alphabet[b&0x0f]
}

func easy16CharToNibble(c byte) (byte, bool) {
	idx := strings.IndexByte(easy16Alphabet, c)
	if idx < 0 {
		return 0, false
	}
	return byte(idx), true
}

func easy16Checksum(lineBytes []byte, index byte) byte {
	mac := hmac.New(sha256.New, append([]byte("easy16-checksum"), index))
	mac.Write(lineBytes)
	return mac.Sum(nil)[0]
}

// rawLineChars renders data (16 bytes) plus its checksum byte as the 34
// raw alphabet characters that make up a line, with no grouping spaces.
func rawLineChars(data []byte, index byte) []byte {
	out := make([]byte, 0, lineDataBytes*2+2)
	for _, b := range data {
		hi, lo := easy16ByteToChars(b)
		out = append(out, hi, lo)
	}
	cs := easy16Checksum(data, index)
	hi, lo := easy16ByteToChars(cs)
	out = append(out, hi, lo)
	return out
}

// EncodeLine renders one 16-byte block as a human-transcribable line,
// grouped in 4-character clusters for readability, with its checksum as
// a trailing 2-character group.
func EncodeLine(data []byte, index byte) (string, error) {
	if len(data) != lineDataBytes {
		return "", ErrBadLineLength
	}
	raw := rawLineChars(data, index)
	dataChars, checksumChars := raw[:lineDataBytes*2], raw[lineDataBytes*2:]

	var b strings.Builder
	for i := 0; i < len(dataChars); i += 4 {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.Write(dataChars[i : i+4])
	}
	b.WriteByte(' ')
	b.Write(checksumChars)
	return b.String(), nil
}

// parsedLineChars strips grouping spaces and validates every remaining
// character is in the alphabet, returning the 34 raw characters.
func parsedLineChars(line string) ([]byte, error) {
	stripped := make([]byte, 0, lineDataBytes*2+2)
	for i := 0; i < len(line); i++ {
		if line[i] == ' ' {
			continue
		}
		stripped = append(stripped, line[i])
	}
	if len(stripped) != lineDataBytes*2+2 {
		return nil, ErrBadLineLength
	}
	for _, c := range stripped {
		if _, ok := easy16CharToNibble(c); !ok {
			return nil, ErrBadLineChar
		}
	}
	return stripped, nil
}

func decodeRawChars(raw []byte) (data []byte, checksum byte) {
	data = make([]byte, lineDataBytes)
	for i := 0; i < lineDataBytes; i++ {
		hi, _ := easy16CharToNibble(raw[i*2])
		lo, _ := easy16CharToNibble(raw[i*2+1])
		data[i] = hi<<4 | lo
	}
	hi, _ := easy16CharToNibble(raw[lineDataBytes*2])
	lo, _ := easy16CharToNibble(raw[lineDataBytes*2+1])
	checksum = hi<<4 | lo
	return data, checksum
}

// DecodeLine parses line and searches for the backup-type index whose
// checksum formula matches the trailing checksum byte. ok is false if no
// index matches (the line is corrupted and needs repair).
func DecodeLine(line string) (data []byte, index byte, ok bool, err error) {
	raw, err := parsedLineChars(line)
	if err != nil {
		return nil, 0, false, err
	}
	data, checksum := decodeRawChars(raw)
	for i := 0; i < 16; i++ {
		if easy16Checksum(data, byte(i)) == checksum {
			return data, byte(i), true, nil
		}
	}
	return data, 0, false, nil
}

// Encode splits data (a multiple of 16 bytes) into lines, each carrying
// the same index.
func Encode(data []byte, index byte) ([]string, error) {
	if len(data) == 0 || len(data)%lineDataBytes != 0 {
		return nil, ErrBadLineLength
	}
	lines := make([]string, 0, len(data)/lineDataBytes)
	for off := 0; off < len(data); off += lineDataBytes {
		line, err := EncodeLine(data[off:off+lineDataBytes], index)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Decode parses every line and concatenates their data, returning the
// detected index for each line and whether every line's checksum
// verified cleanly.
func Decode(lines []string) (data []byte, indexes []byte, allOK bool, err error) {
	allOK = true
	indexes = make([]byte, len(lines))
	for i, line := range lines {
		lineData, index, ok, lerr := DecodeLine(line)
		if lerr != nil {
			return nil, nil, false, lerr
		}
		if !ok {
			allOK = false
		}
		indexes[i] = index
		data = append(data, lineData...)
	}
	return data, indexes, allOK, nil
}
