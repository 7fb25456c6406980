package walletcore

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/opd-ai/hdvault/asset"
	"github.com/opd-ai/hdvault/backup"
	"github.com/opd-ai/hdvault/decrypted"
)

var errInvalidArmoryRoot = errors.New("walletcore: restored Armory-135 root is not a valid private scalar")

// RestoreFromEasy16 implements spec.md §4.I steps 3-5: decode and
// checksum-repair a paper backup via backup.RestoreFromBackup, then
// build and persist the wallet the restored root describes.
//
// The dispatch on result.Index mirrors the Armory-135/BIP32-seed split
// in spec.md §4.F: a 0/1 index (legacy/BIP32) without a ChainCode is a
// bare 32-byte seed restored through NewFromSeed; a payload carrying a
// ChainCode alongside the root is an Armory-135 root key pair restored
// directly into its own account rather than through the BIP32 master
// path, since Armory-135 chains are not BIP32-derived.
func RestoreFromEasy16(path string, lines []string, spPassphrase string, params *chaincfg.Params, controlPrompt, assetPrompt decrypted.PromptFunc, walletIDFn backup.WalletIDFunc, confirmPrompt backup.Prompter) (*Wallet, error) {
	result, err := backup.RestoreFromBackup(lines, spPassphrase, walletIDFn, confirmPrompt)
	if err != nil {
		return nil, err
	}

	if result.ChainCode != nil {
		return newArmory135WalletFromBackup(path, result, params, controlPrompt, assetPrompt)
	}
	return NewFromSeed(path, result.Root, params, controlPrompt, assetPrompt)
}

func newArmory135WalletFromBackup(path string, result *backup.RestoreResult, params *chaincfg.Params, controlPrompt, assetPrompt decrypted.PromptFunc) (*Wallet, error) {
	env, err := openEnv(path, 1, controlPrompt)
	if err != nil {
		return nil, err
	}
	w := newEmptyWallet(env, params)

	rootPub, rootPriv, err := armory135KeypairFromRoot(result.Root)
	if err != nil {
		_ = env.Close()
		return nil, err
	}

	lock, err := w.assetKeys.Lock()
	if err != nil {
		_ = env.Close()
		return nil, err
	}
	defer lock.Unlock()

	salt, err := randomSalt(16)
	if err != nil {
		_ = env.Close()
		return nil, err
	}
	if err := w.assetKeys.RegisterKey(lock, privateKeyID, decrypted.DefaultKDFParams(salt), assetPrompt); err != nil {
		_ = env.Close()
		return nil, err
	}
	if err := w.persistEncryptionKey(privateKeyID); err != nil {
		_ = env.Close()
		return nil, err
	}

	rootPubBytes := rootPub.SerializeCompressed()
	privBytes := rootPriv.Bytes()
	privCiphertext, err := w.assetKeys.EncryptData(lock, privateKeyID, privBytes[:])
	if err != nil {
		_ = env.Close()
		return nil, err
	}
	rootAsset := &asset.RootAsset{
		Type:            asset.AccountArmory135,
		ChainCode:       append([]byte(nil), result.ChainCode...),
		PubKey:          rootPubBytes,
		EncryptionKeyID: privateKeyID,
		PrivCiphertext:  privCiphertext,
	}
	rootAssetBytes, err := rootAsset.MarshalBinary()
	if err != nil {
		_ = env.Close()
		return nil, err
	}

	w.ID = computeWalletID(rootPubBytes)
	if err := w.persistWalletMeta(rootAssetBytes); err != nil {
		_ = env.Close()
		return nil, err
	}
	if _, err := w.AddArmory135Account(rootPub, rootPriv, result.ChainCode, asset.P2PKH|asset.Uncompressed); err != nil {
		_ = env.Close()
		return nil, err
	}
	return w, nil
}

// armory135KeypairFromRoot derives the root public/private keypair an
// Armory-135 backup's restored 32-byte secret corresponds to.
func armory135KeypairFromRoot(root []byte) (*btcec.PublicKey, *btcec.ModNScalar, error) {
	var scalar btcec.ModNScalar
	if overflow := scalar.SetByteSlice(root); overflow || scalar.IsZero() {
		return nil, nil, errInvalidArmoryRoot
	}
	var pubJ btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(&scalar, &pubJ)
	pubJ.ToAffine()
	pub := btcec.NewPublicKey(&pubJ.X, &pubJ.Y)
	return pub, &scalar, nil
}
