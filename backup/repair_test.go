package backup

import "testing"

func corruptChar(line string, pos int, alphabetOffset int) string {
	b := []byte(line)
	cur := -1
	for i, c := range []byte(easy16Alphabet) {
		if c == b[pos] {
			cur = i
			break
		}
	}
	repl := easy16Alphabet[(cur+1+alphabetOffset)%16]
	b[pos] = repl
	return string(b)
}

func TestRepairLineFixesSingleCorruption(t *testing.T) {
	data := fixture32Bytes()[:16]
	line, err := EncodeLine(data, IndexBIP32Seed)
	if err != nil {
		t.Fatalf("EncodeLine: %v", err)
	}

	corrupted := corruptChar(line, 0, 0)
	_, _, ok, err := DecodeLine(corrupted)
	if err != nil {
		t.Fatalf("DecodeLine: %v", err)
	}
	if ok {
		t.Skip("corruption coincidentally still verifies; not informative")
	}

	repairedData, index, _, err := RepairLine(corrupted)
	if err != nil {
		t.Fatalf("RepairLine: %v", err)
	}
	if index != IndexBIP32Seed {
		t.Fatalf("got index %d want %d", index, IndexBIP32Seed)
	}
	if string(repairedData) != string(data) {
		t.Fatal("repaired data does not match the original")
	}
}

func TestRepairLineNeverWronglyVerifies(t *testing.T) {
	data := fixture32Bytes()[16:]
	line, err := EncodeLine(data, IndexLegacy)
	if err != nil {
		t.Fatalf("EncodeLine: %v", err)
	}

	successes := 0
	attempts := 0
	for pos := 0; pos < 8; pos++ {
		attempts++
		corrupted := corruptChar(line, pos, pos%3)
		if _, _, ok, _ := DecodeLine(corrupted); ok {
			continue // the corruption itself happened to verify; skip
		}
		repairedData, index, _, err := RepairLine(corrupted)
		if err == ErrRepairAmbiguous || err == ErrRepairImpossible {
			continue
		}
		if err != nil {
			t.Fatalf("RepairLine: %v", err)
		}
		successes++
		if string(repairedData) != string(data) || index != IndexLegacy {
			t.Fatalf("repair at position %d produced a wrong value that nonetheless verified", pos)
		}
	}
	if successes == 0 {
		t.Fatal("expected at least one of the sampled single-character corruptions to repair successfully")
	}
}

func TestRepairCrossLine(t *testing.T) {
	data := fixture32Bytes()
	lineA, _ := EncodeLine(data[:16], IndexLegacy)
	lineB, _ := EncodeLine(data[16:], IndexLegacy)

	corruptedA := corruptChar(lineA, 2, 0)
	corruptedB := corruptChar(lineB, 5, 0)

	if _, _, okA, _ := DecodeLine(corruptedA); okA {
		t.Skip("lineA corruption coincidentally verified")
	}
	if _, _, okB, _ := DecodeLine(corruptedB); okB {
		t.Skip("lineB corruption coincidentally verified")
	}

	dataA, dataB, index, _, _, err := RepairCrossLine(corruptedA, corruptedB)
	if err != nil {
		t.Fatalf("RepairCrossLine: %v", err)
	}
	if index != IndexLegacy {
		t.Fatalf("got index %d want %d", index, IndexLegacy)
	}
	if string(dataA) != string(data[:16]) || string(dataB) != string(data[16:]) {
		t.Fatal("cross-line repair produced wrong data")
	}
}
