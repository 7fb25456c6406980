package backup

import (
	"bytes"
	"testing"
)

func TestRestoreFromBackupLegacyCleanLines(t *testing.T) {
	root := fixture32Bytes()
	lines, err := Encode(root, IndexLegacy)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var sawConfirm bool
	prompt := func(kind PromptKind, indexes []byte, walletID string) bool {
		if kind == PromptConfirmID {
			sawConfirm = true
			if walletID != "computed-id" {
				t.Fatalf("got walletID %q", walletID)
			}
		}
		return true
	}
	computeID := func(r *RestoreResult) (string, error) { return "computed-id", nil }

	result, err := RestoreFromBackup(lines, "", computeID, prompt)
	if err != nil {
		t.Fatalf("RestoreFromBackup: %v", err)
	}
	if result.Index != IndexLegacy {
		t.Fatalf("got index %d want %d", result.Index, IndexLegacy)
	}
	if !bytes.Equal(result.Root, root) {
		t.Fatal("restored root does not match the original")
	}
	if !sawConfirm {
		t.Fatal("expected PromptConfirmID to fire")
	}
}

func TestRestoreFromBackupRejectedAtConfirm(t *testing.T) {
	root := fixture32Bytes()
	lines, _ := Encode(root, IndexLegacy)

	prompt := func(kind PromptKind, indexes []byte, walletID string) bool {
		return kind != PromptConfirmID
	}
	computeID := func(r *RestoreResult) (string, error) { return "id", nil }

	if _, err := RestoreFromBackup(lines, "", computeID, prompt); err != ErrRestoreRejected {
		t.Fatalf("got %v want ErrRestoreRejected", err)
	}
}

func TestRestoreFromBackupSecurePrint(t *testing.T) {
	root := fixture32Bytes()
	spEncoded, keyMaterial, err := GenerateSecurePrintPassphrase()
	if err != nil {
		t.Fatalf("GenerateSecurePrintPassphrase: %v", err)
	}
	iv, ciphertext, err := EncryptSecret(keyMaterial, root)
	if err != nil {
		t.Fatalf("EncryptSecret: %v", err)
	}
	payload := append(append([]byte{}, iv...), ciphertext...)
	lines, err := Encode(payload, IndexLegacySecurePrint)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	result, err := RestoreFromBackup(lines, spEncoded, nil, nil)
	if err != nil {
		t.Fatalf("RestoreFromBackup: %v", err)
	}
	if result.Index != IndexLegacy {
		t.Fatalf("got index %d want IndexLegacy after SecurePrint unwrap", result.Index)
	}
	if !bytes.Equal(result.Root, root) {
		t.Fatal("restored root does not match the original after SecurePrint decryption")
	}
}

func TestRestoreFromBackupSecurePrintRequiresPassphrase(t *testing.T) {
	root := fixture32Bytes()
	_, keyMaterial, _ := GenerateSecurePrintPassphrase()
	iv, ciphertext, _ := EncryptSecret(keyMaterial, root)
	payload := append(append([]byte{}, iv...), ciphertext...)
	lines, _ := Encode(payload, IndexLegacySecurePrint)

	if _, err := RestoreFromBackup(lines, "", nil, nil); err != ErrSecurePrintPassphraseRequired {
		t.Fatalf("got %v want ErrSecurePrintPassphraseRequired", err)
	}
}

func TestRestoreFromBackupAutoRepair(t *testing.T) {
	root := fixture32Bytes()
	lines, _ := Encode(root, IndexLegacy)
	corrupted := corruptChar(lines[0], 1, 0)
	if _, _, ok, _ := DecodeLine(corrupted); ok {
		t.Skip("corruption coincidentally verified")
	}
	lines[0] = corrupted

	var sawChecksumError bool
	prompt := func(kind PromptKind, indexes []byte, walletID string) bool {
		if kind == PromptChecksumError {
			sawChecksumError = true
		}
		return true
	}

	result, err := RestoreFromBackup(lines, "", nil, prompt)
	if err != nil {
		t.Fatalf("RestoreFromBackup: %v", err)
	}
	if !sawChecksumError {
		t.Fatal("expected PromptChecksumError to fire before repair")
	}
	if !bytes.Equal(result.Root, root) {
		t.Fatal("auto-repaired restore does not match the original root")
	}
}
