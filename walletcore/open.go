package walletcore

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/opd-ai/hdvault/asset"
	"github.com/opd-ai/hdvault/decrypted"
	"github.com/opd-ai/hdvault/derivation"
	"github.com/opd-ai/hdvault/walletdb"
)

// Open reopens a wallet file previously created by NewFromSeed,
// NewFromMnemonic, NewFromExtendedKey, or RestoreFromEasy16. The default
// BIP32 account (and, for an Armory-135 root, its legacy account) is
// rebuilt deterministically from the decrypted root; any additional
// user-created accounts are not yet reloaded from their persisted
// records, since AddressAccount has no UnmarshalBinary form of its own
// (it wraps a ChainExtender interface, not a plain data record) — a
// caller needing those back must re-add them with AddBIP32Account and
// friends after Open returns.
func Open(path string, params *chaincfg.Params, controlPrompt, assetPrompt decrypted.PromptFunc) (*Wallet, error) {
	env, err := openEnv(path, 1, controlPrompt)
	if err != nil {
		return nil, err
	}
	w := newEmptyWallet(env, params)

	var walletID string
	var fingerprint [4]byte
	var rootAssetBytes []byte
	err = w.readTx(func(rtx *walletdb.ReadTx) error {
		v, err := rtx.Get([]byte{walletdb.MainWalletKey})
		if err != nil {
			return err
		}
		walletID = string(v)

		v, err = rtx.Get([]byte{walletdb.MasterIDKey})
		if err != nil {
			return err
		}
		copy(fingerprint[:], v)

		v, err = rtx.Get([]byte{walletdb.RootAssetKey})
		if err != nil {
			return err
		}
		rootAssetBytes = v
		return nil
	})
	if err != nil {
		_ = env.Close()
		return nil, fmt.Errorf("walletcore: read wallet meta: %w", err)
	}
	w.ID = walletID
	w.seedFingerprint = fingerprint

	var rootAsset asset.RootAsset
	if err := rootAsset.UnmarshalBinary(rootAssetBytes); err != nil {
		_ = env.Close()
		return nil, fmt.Errorf("walletcore: decode root asset: %w", err)
	}

	if len(rootAsset.PrivCiphertext) == 0 {
		if err := w.openWatchOnly(&rootAsset); err != nil {
			_ = env.Close()
			return nil, err
		}
		return w, nil
	}

	if err := w.loadEncryptionKey(privateKeyID); err != nil {
		_ = env.Close()
		return nil, err
	}
	lock, err := w.assetKeys.Lock()
	if err != nil {
		_ = env.Close()
		return nil, err
	}
	defer lock.Unlock()

	priv, err := w.assetKeys.GetClearText(lock, "root-asset", rootAsset.EncryptionKeyID, rootAsset.PrivCiphertext, assetPrompt)
	if err != nil {
		_ = env.Close()
		return nil, err
	}

	switch rootAsset.Type {
	case asset.AccountBIP32:
		node, err := bip32NodeFromRoot(priv, rootAsset.ChainCode)
		if err != nil {
			_ = env.Close()
			return nil, err
		}
		w.masterNode = node
		if err := w.addDefaultBIP32Account(); err != nil {
			_ = env.Close()
			return nil, err
		}
	case asset.AccountArmory135:
		rootPub, rootPriv, err := armory135KeypairFromRoot(priv)
		if err != nil {
			_ = env.Close()
			return nil, err
		}
		if _, err := w.AddArmory135Account(rootPub, rootPriv, rootAsset.ChainCode, asset.P2PKH|asset.Uncompressed); err != nil {
			_ = env.Close()
			return nil, err
		}
	default:
		_ = env.Close()
		return nil, ErrUnsupportedType
	}
	return w, nil
}

func (w *Wallet) openWatchOnly(rootAsset *asset.RootAsset) error {
	switch rootAsset.Type {
	case asset.AccountBIP32:
		node, err := bip32PublicNodeFromRoot(rootAsset.PubKey, rootAsset.ChainCode)
		if err != nil {
			return err
		}
		w.masterNode = node
		return w.addDefaultBIP32Account()
	default:
		return ErrUnsupportedType
	}
}

// bip32NodeFromRoot reconstructs a depth-0 master node from a decrypted
// 32-byte private scalar and chain code, the inverse of the encoding
// persistRootAndDefaultAccount wrote. Node's fields are all exported
// specifically so a storage layer can rebuild one without derivation
// exposing a dedicated constructor for every possible source of key
// material.
func bip32NodeFromRoot(priv, chainCode []byte) (*derivation.Node, error) {
	var scalar btcec.ModNScalar
	if overflow := scalar.SetByteSlice(priv); overflow || scalar.IsZero() {
		return nil, fmt.Errorf("walletcore: rebuild master node: invalid private scalar")
	}
	var point btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(&scalar, &point)
	point.ToAffine()
	pub := btcec.NewPublicKey(&point.X, &point.Y)

	node := &derivation.Node{PrivKey: &scalar, PubKey: pub}
	copy(node.ChainCode[:], chainCode)
	return node, nil
}

func bip32PublicNodeFromRoot(pubKey, chainCode []byte) (*derivation.Node, error) {
	pub, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return nil, fmt.Errorf("walletcore: rebuild watch-only master node: %w", err)
	}
	node := &derivation.Node{PubKey: pub}
	copy(node.ChainCode[:], chainCode)
	return node, nil
}
