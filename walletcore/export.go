package walletcore

import (
	"github.com/opd-ai/hdvault/backup"
	"github.com/opd-ai/hdvault/walletdb"
)

// ExportEasy16 decrypts and encodes the wallet's root secret as a paper
// backup, per spec.md §4.I. It exports the stored seed exactly as kept
// (64 bytes for a wallet made from a BIP39 mnemonic) under
// backup.IndexBIP32Seed. A wallet with no stored seed (one created from
// an extended key, or restored as Armory-135) has nothing to export and
// the call fails. The optional spPassphrase wraps the payload in a second
// SecurePrint layer first.
func (w *Wallet) ExportEasy16(assetPrompt func(keyID []byte) ([]byte, error), spPassphrase string) ([]string, error) {
	if w.IsWatchOnly() {
		return nil, ErrWatchOnly
	}

	lock, err := w.assetKeys.Lock()
	if err != nil {
		return nil, err
	}
	defer lock.Unlock()

	var payload []byte
	if err := w.readTx(func(rtx *walletdb.ReadTx) error {
		v, err := rtx.Get([]byte{walletdb.WalletSeedKey})
		if err != nil {
			return err
		}
		payload = v
		return nil
	}); err != nil {
		return nil, err
	}

	seed, err := w.assetKeys.GetClearText(lock, "export-seed", privateKeyID, payload, assetPrompt)
	if err != nil {
		return nil, err
	}

	index := backup.IndexBIP32Seed
	if spPassphrase != "" {
		keyMaterial, vErr := backup.VerifySecurePrintPassphrase(spPassphrase)
		if vErr != nil {
			return nil, vErr
		}
		iv, ciphertext, encErr := backup.EncryptSecret(keyMaterial, seed)
		if encErr != nil {
			return nil, encErr
		}
		seed = append(iv, ciphertext...)
		index = backup.IndexBIP32SeedSecurePrint
	}

	return backup.Encode(seed, index)
}
