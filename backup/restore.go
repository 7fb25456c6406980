package backup

import "errors"

// PromptKind distinguishes the two restore-flow callbacks described in
// spec.md §4.I.
type PromptKind int

const (
	// PromptChecksumError is raised when a decoded line's checksum did
	// not verify, before any repair is attempted.
	PromptChecksumError PromptKind = iota
	// PromptConfirmID is raised after a (possibly repaired) backup has
	// been decoded far enough to compute the wallet ID it will produce,
	// letting the caller accept or reject before anything is persisted.
	PromptConfirmID
)

// Prompter is invoked by RestoreFromBackup at the two decision points a
// human operator needs to see. indexes carries the per-line detected
// backup-type index (meaningful only for PromptConfirmID); walletID is
// populated only for PromptConfirmID. The reply to PromptChecksumError
// does not stop the restore: either answer goes on to auto-repair.
type Prompter func(kind PromptKind, indexes []byte, walletID string) (accept bool)

var (
	ErrSecurePrintPassphraseRequired = errors.New("backup: securePrint passphrase required but not supplied")
	ErrRestoreRejected               = errors.New("backup: restore rejected by prompt")
)

// RestoreResult is the decoded, decrypted payload a restore flow
// produces. Building a canonical wallet from it (step 3 of spec.md
// §4.I's restore flow) is layered above this package in walletcore,
// which alone holds the kvstore/decrypted/derivation machinery needed to
// persist a wallet; backup stays a pure codec with no storage
// dependency, the same layering discipline as asset/derivation/dtree.
type RestoreResult struct {
	Index     byte
	Root      []byte
	ChainCode []byte // set only when the legacy payload carried an explicit chain code
}

// WalletIDFunc computes the wallet ID a decoded (but not yet built)
// backup would produce, so RestoreFromBackup can show it to the
// PromptConfirmID callback without importing walletcore.
type WalletIDFunc func(result *RestoreResult) (string, error)

// RestoreFromBackup implements steps 1-2 of spec.md §4.I's restore flow:
// decode, repair on checksum failure, and SecurePrint-decrypt if in use.
// Steps 3-5 (building the canonical wallet, prompting for new
// passphrases, and persisting) are the caller's responsibility once it
// has a RestoreResult.
func RestoreFromBackup(lines []string, spPassphrase string, computeID WalletIDFunc, prompt Prompter) (*RestoreResult, error) {
	data, indexes, allOK, err := Decode(lines)
	if err != nil {
		return nil, err
	}

	if !allOK {
		if prompt != nil {
			prompt(PromptChecksumError, indexes, "")
		}
		data, indexes, err = repairLines(lines)
		if err != nil {
			return nil, err
		}
	}

	index := indexes[0]
	securePrintInUse := index == IndexLegacySecurePrint || index == IndexBIP32SeedSecurePrint

	payload := data
	if securePrintInUse {
		if spPassphrase == "" {
			return nil, ErrSecurePrintPassphraseRequired
		}
		keyMaterial, err := VerifySecurePrintPassphrase(spPassphrase)
		if err != nil {
			return nil, err
		}
		iv, ciphertext := data[:16], data[16:]
		payload, err = DecryptSecret(keyMaterial, iv, ciphertext)
		if err != nil {
			return nil, err
		}
		if index == IndexLegacySecurePrint {
			index = IndexLegacy
		} else {
			index = IndexBIP32Seed
		}
	}

	result := &RestoreResult{Index: index}
	switch {
	case index == IndexLegacy && len(payload) >= 64:
		result.Root = payload[:32]
		result.ChainCode = payload[32:64]
	default:
		result.Root = payload
	}

	if prompt != nil && computeID != nil {
		walletID, err := computeID(result)
		if err != nil {
			return nil, err
		}
		if !prompt(PromptConfirmID, indexes, walletID) {
			return nil, ErrRestoreRejected
		}
	}

	return result, nil
}

// repairLines repairs the lines that failed to decode cleanly: a single
// failed line gets single-line repair, exactly two failed lines get
// cross-line repair together, and more than two fail with
// ErrRepairImpossible.
func repairLines(lines []string) (data []byte, indexes []byte, err error) {
	failed := make([]int, 0)
	decoded := make([][]byte, len(lines))
	idxs := make([]byte, len(lines))

	for i, line := range lines {
		d, idx, ok, derr := DecodeLine(line)
		if derr != nil {
			return nil, nil, derr
		}
		decoded[i] = d
		idxs[i] = idx
		if !ok {
			failed = append(failed, i)
		}
	}

	switch len(failed) {
	case 0:
		// nothing to repair
	case 1:
		i := failed[0]
		d, idx, _, rerr := RepairLine(lines[i])
		if rerr != nil {
			return nil, nil, rerr
		}
		decoded[i], idxs[i] = d, idx
	case 2:
		a, b := failed[0], failed[1]
		da, db, idx, _, _, rerr := RepairCrossLine(lines[a], lines[b])
		if rerr != nil {
			return nil, nil, rerr
		}
		decoded[a], idxs[a] = da, idx
		decoded[b], idxs[b] = db, idx
	default:
		return nil, nil, ErrRepairImpossible
	}

	for _, d := range decoded {
		data = append(data, d...)
	}
	return data, idxs, nil
}
