package backup

import "errors"

var (
	ErrRepairAmbiguous  = errors.New("backup: repair is ambiguous, multiple substitutions verify")
	ErrRepairImpossible = errors.New("backup: no single-character substitution verifies")
)

// repairCandidate is one substitution that turns a corrupted line into
// one whose checksum verifies.
type repairCandidate struct {
	data  []byte
	index byte
	line  string
}

// candidatesForLine brute-forces every (position, alphabet character)
// substitution in line and returns every one that yields a verifying
// checksum.
func candidatesForLine(line string) ([]repairCandidate, error) {
	raw, err := parsedLineChars(line)
	if err != nil {
		return nil, err
	}

	var candidates []repairCandidate
	for pos := range raw {
		original := raw[pos]
		for _, c := range []byte(easy16Alphabet) {
			if c == original {
				continue
			}
			raw[pos] = c
			data, checksum := decodeRawChars(raw)
			for i := 0; i < 16; i++ {
				if easy16Checksum(data, byte(i)) == checksum {
					candidates = append(candidates, repairCandidate{
						data:  append([]byte(nil), data...),
						index: byte(i),
						line:  reassembleLine(raw),
					})
				}
			}
		}
		raw[pos] = original
	}
	return candidates, nil
}

func reassembleLine(raw []byte) string {
	out := make([]byte, 0, len(raw)+len(raw)/4)
	for i := 0; i < lineDataBytes*2; i += 4 {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, raw[i:i+4]...)
	}
	out = append(out, ' ')
	out = append(out, raw[lineDataBytes*2:]...)
	return string(out)
}

// candidatesEqual reports whether two candidates decode to the same
// data and index, i.e. they are the same repair even if found via a
// different substitution.
func candidatesEqual(a, b repairCandidate) bool {
	if a.index != b.index || len(a.data) != len(b.data) {
		return false
	}
	for i := range a.data {
		if a.data[i] != b.data[i] {
			return false
		}
	}
	return true
}

func dedupeCandidates(cands []repairCandidate) []repairCandidate {
	var out []repairCandidate
	for _, c := range cands {
		dup := false
		for _, o := range out {
			if candidatesEqual(c, o) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, c)
		}
	}
	return out
}

// RepairLine attempts to fix a single corrupted character in line. It
// succeeds only if exactly one substitution across every position and
// every alphabet letter produces a line whose checksum verifies.
func RepairLine(line string) (data []byte, index byte, fixedLine string, err error) {
	cands, err := candidatesForLine(line)
	if err != nil {
		return nil, 0, "", err
	}
	cands = dedupeCandidates(cands)
	if len(cands) == 0 {
		return nil, 0, "", ErrRepairImpossible
	}
	if len(cands) > 1 {
		return nil, 0, "", ErrRepairAmbiguous
	}
	return cands[0].data, cands[0].index, cands[0].line, nil
}

// RepairCrossLine handles a two-line backup where each line individually
// fails to decode and fails single-line repair. It tries fixing one
// character in lineA together with one character in lineB, accepting
// only when exactly one combination yields two lines reporting the same
// index.
func RepairCrossLine(lineA, lineB string) (dataA, dataB []byte, index byte, fixedA, fixedB string, err error) {
	candsA, err := candidatesForLine(lineA)
	if err != nil {
		return nil, nil, 0, "", "", err
	}
	candsB, err := candidatesForLine(lineB)
	if err != nil {
		return nil, nil, 0, "", "", err
	}
	candsA = dedupeCandidates(candsA)
	candsB = dedupeCandidates(candsB)

	type combo struct {
		a, b repairCandidate
	}
	var combos []combo
	for _, a := range candsA {
		for _, b := range candsB {
			if a.index == b.index {
				combos = append(combos, combo{a, b})
			}
		}
	}
	if len(combos) == 0 {
		return nil, nil, 0, "", "", ErrRepairImpossible
	}
	if len(combos) > 1 {
		return nil, nil, 0, "", "", ErrRepairAmbiguous
	}
	c := combos[0]
	return c.a.data, c.b.data, c.a.index, c.a.line, c.b.line, nil
}
