package walletcore

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip39"

	"github.com/opd-ai/hdvault/asset"
	"github.com/opd-ai/hdvault/decrypted"
	"github.com/opd-ai/hdvault/derivation"
)

// NewFromSeed creates a fresh wallet file at path from raw seed entropy,
// deriving its BIP32 master node and a default user-visible account.
func NewFromSeed(path string, seed []byte, params *chaincfg.Params, controlPrompt, assetPrompt decrypted.PromptFunc) (*Wallet, error) {
	env, err := openEnv(path, 1, controlPrompt)
	if err != nil {
		return nil, err
	}
	w := newEmptyWallet(env, params)

	master, err := derivation.NewMasterNode(seed)
	if err != nil {
		_ = env.Close()
		return nil, fmt.Errorf("walletcore: derive master node: %w", err)
	}
	w.masterNode = master
	w.seedFingerprint = master.Fingerprint()

	if err := w.bootstrapFromMaster(seed, assetPrompt); err != nil {
		_ = env.Close()
		return nil, err
	}
	return w, nil
}

// NewFromMnemonic creates a fresh wallet from a BIP39 mnemonic phrase,
// the corpus-universal human-backup-phrase path for obtaining a seed
// alongside raw-seed and extended-key import.
func NewFromMnemonic(path, mnemonic, bip39Passphrase string, params *chaincfg.Params, controlPrompt, assetPrompt decrypted.PromptFunc) (*Wallet, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("walletcore: invalid mnemonic")
	}
	seed := bip39.NewSeed(mnemonic, bip39Passphrase)
	return NewFromSeed(path, seed, params, controlPrompt, assetPrompt)
}

// NewFromExtendedKey creates a wallet rooted at an imported BIP32
// extended key. A private key (xprv) yields a fully-functional wallet; a
// public key (xpub) yields a watch-only wallet with no signing ability.
func NewFromExtendedKey(path, extKey string, params *chaincfg.Params, controlPrompt, assetPrompt decrypted.PromptFunc) (*Wallet, error) {
	node, _, isPrivate, err := derivation.DecodeExtKey(extKey)
	if err != nil {
		return nil, fmt.Errorf("walletcore: decode extended key: %w", err)
	}

	env, err := openEnv(path, 1, controlPrompt)
	if err != nil {
		return nil, err
	}
	w := newEmptyWallet(env, params)
	w.masterNode = node
	w.seedFingerprint = node.Fingerprint()

	if isPrivate {
		if err := w.bootstrapFromMasterNode(assetPrompt); err != nil {
			_ = env.Close()
			return nil, err
		}
	} else {
		if err := w.bootstrapWatchOnly(); err != nil {
			_ = env.Close()
			return nil, err
		}
	}
	return w, nil
}

// bootstrapFromMaster derives the master node's private root asset and
// persists the raw seed, then continues via bootstrapFromMasterNode.
func (w *Wallet) bootstrapFromMaster(seed []byte, assetPrompt decrypted.PromptFunc) error {
	lock, err := w.assetKeys.Lock()
	if err != nil {
		return err
	}
	defer lock.Unlock()

	salt, err := randomSalt(16)
	if err != nil {
		return err
	}
	if err := w.assetKeys.RegisterKey(lock, privateKeyID, decrypted.DefaultKDFParams(salt), assetPrompt); err != nil {
		return err
	}
	if err := w.persistEncryptionKey(privateKeyID); err != nil {
		return err
	}

	seedCiphertext, err := w.assetKeys.EncryptData(lock, privateKeyID, seed)
	if err != nil {
		return err
	}
	if err := w.persistSeed(seedCiphertext); err != nil {
		return err
	}

	return w.persistRootAndDefaultAccount(lock)
}

// bootstrapFromMasterNode persists an imported private extended key's
// root asset without a raw seed (there is none to keep).
func (w *Wallet) bootstrapFromMasterNode(assetPrompt decrypted.PromptFunc) error {
	lock, err := w.assetKeys.Lock()
	if err != nil {
		return err
	}
	defer lock.Unlock()

	salt, err := randomSalt(16)
	if err != nil {
		return err
	}
	if err := w.assetKeys.RegisterKey(lock, privateKeyID, decrypted.DefaultKDFParams(salt), assetPrompt); err != nil {
		return err
	}
	if err := w.persistEncryptionKey(privateKeyID); err != nil {
		return err
	}
	return w.persistRootAndDefaultAccount(lock)
}

func (w *Wallet) persistRootAndDefaultAccount(lock *decrypted.Lock) error {
	rootPub := w.masterNode.PubKey.SerializeCompressed()
	privBytes := w.masterNode.PrivKey.Bytes()
	privCiphertext, err := w.assetKeys.EncryptData(lock, privateKeyID, privBytes[:])
	if err != nil {
		return err
	}

	rootAsset := &asset.RootAsset{
		Type:            asset.AccountBIP32,
		ChainCode:       append([]byte(nil), w.masterNode.ChainCode[:]...),
		PubKey:          rootPub,
		EncryptionKeyID: privateKeyID,
		PrivCiphertext:  privCiphertext,
	}
	rootBytes, err := rootAsset.MarshalBinary()
	if err != nil {
		return err
	}

	w.ID = computeWalletID(rootPub)
	if err := w.persistWalletMeta(rootBytes); err != nil {
		return err
	}

	return w.addDefaultBIP32Account()
}

// bootstrapWatchOnly sets up a public-only wallet rooted at an imported
// xpub: no private-key encryption key is registered, and the default
// account's chains are built from public derivation alone.
func (w *Wallet) bootstrapWatchOnly() error {
	rootPub := w.masterNode.PubKey.SerializeCompressed()
	rootAsset := &asset.RootAsset{
		Type:      asset.AccountBIP32,
		ChainCode: append([]byte(nil), w.masterNode.ChainCode[:]...),
		PubKey:    rootPub,
	}
	rootBytes, err := rootAsset.MarshalBinary()
	if err != nil {
		return err
	}
	w.ID = computeWalletID(rootPub)
	if err := w.persistWalletMeta(rootBytes); err != nil {
		return err
	}
	return w.addDefaultBIP32Account()
}
