package walletcore

import (
	"fmt"

	"github.com/opd-ai/hdvault/decrypted"
	"github.com/opd-ai/hdvault/walletdb"
)

func (w *Wallet) writeTx(fn func(wtx *walletdb.WriteTx) error) error {
	wtx, err := w.env.BeginWriteTransaction(mainHeaderName)
	if err != nil {
		return fmt.Errorf("walletcore: begin write: %w", err)
	}
	if err := fn(wtx); err != nil {
		_ = wtx.Rollback()
		return err
	}
	if err := wtx.Commit(); err != nil {
		return fmt.Errorf("walletcore: commit: %w", err)
	}
	return nil
}

func (w *Wallet) readTx(fn func(rtx *walletdb.ReadTx) error) error {
	rtx, err := w.env.BeginReadTransaction(mainHeaderName)
	if err != nil {
		return fmt.Errorf("walletcore: begin read: %w", err)
	}
	defer rtx.Discard()
	return fn(rtx)
}

func (w *Wallet) persistWalletMeta(rootAssetBytes []byte) error {
	return w.writeTx(func(wtx *walletdb.WriteTx) error {
		if err := wtx.Put([]byte{walletdb.MainWalletKey}, []byte(w.ID)); err != nil {
			return err
		}
		if err := wtx.Put([]byte{walletdb.MasterIDKey}, w.seedFingerprint[:]); err != nil {
			return err
		}
		return wtx.Put([]byte{walletdb.RootAssetKey}, rootAssetBytes)
	})
}

func (w *Wallet) persistSeed(ciphertext []byte) error {
	return w.writeTx(func(wtx *walletdb.WriteTx) error {
		return wtx.Put([]byte{walletdb.WalletSeedKey}, ciphertext)
	})
}

func (w *Wallet) persistMainAccountID(id uint32) error {
	return w.writeTx(func(wtx *walletdb.WriteTx) error {
		return wtx.Put([]byte{walletdb.MainAccountKey}, be32(id))
	})
}

func (w *Wallet) persistAddressAccount(id uint32, record []byte) error {
	return w.writeTx(func(wtx *walletdb.WriteTx) error {
		return wtx.Put(walletdb.AddressAccountKey(id), record)
	})
}

// persistEncryptionKey writes the asset-key container's registry entry
// for id, so a reopened wallet can reconstruct the passphrase envelope
// without ever having kept the raw AES key on disk.
func (w *Wallet) persistEncryptionKey(id []byte) error {
	sk, err := w.assetKeys.ExportKey(id)
	if err != nil {
		return err
	}
	encoded, err := sk.MarshalBinary()
	if err != nil {
		return err
	}
	return w.writeTx(func(wtx *walletdb.WriteTx) error {
		return wtx.Put(walletdb.EncryptionKeyKey(id), encoded)
	})
}

func (w *Wallet) loadEncryptionKey(id []byte) error {
	var encoded []byte
	err := w.readTx(func(rtx *walletdb.ReadTx) error {
		v, err := rtx.Get(walletdb.EncryptionKeyKey(id))
		if err != nil {
			return err
		}
		encoded = v
		return nil
	})
	if err != nil {
		return err
	}
	var sk decrypted.SerializedKey
	if err := sk.UnmarshalBinary(encoded); err != nil {
		return err
	}
	w.assetKeys.ImportKey(&sk)
	return nil
}

func be32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}
