// Package walletcore ties the encrypted storage, decrypted-data,
// derivation, derivation-tree, and resolver layers into the top-level
// HD wallet described by spec.md: seed/mnemonic/extended-key creation,
// account management, and address issuance.
package walletcore

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/opd-ai/hdvault/asset"
	"github.com/opd-ai/hdvault/decrypted"
	"github.com/opd-ai/hdvault/derivation"
	"github.com/opd-ai/hdvault/dtree"
	"github.com/opd-ai/hdvault/resolver"
	"github.com/opd-ai/hdvault/walletdb"
)

var (
	ErrUnknownAccount  = errors.New("walletcore: unknown account id")
	ErrWatchOnly       = errors.New("walletcore: wallet has no private key material")
	ErrNoAccounts      = errors.New("walletcore: wallet has no address accounts")
	ErrAccountIDInUse  = errors.New("walletcore: account id already in use")
	ErrUnsupportedType = errors.New("walletcore: unsupported account type")
)

// mainHeaderName is the single main sub-database every wallet file opens,
// per spec.md §3 ("one wallet == one header" is the common case; multi-
// header wallet files are a Non-goal this package does not implement).
var mainHeaderName = []byte("main")

// privateKeyID is the fixed encryption-key id wrapping every asset's
// private-key ciphertext, distinct from walletdb's internal "control"
// key id, which wraps the envelope layer's storage-at-rest root instead.
// These are spec.md §4.C's two independent passphrase layers.
var privateKeyID = []byte("private-key")

// Wallet is one open HD wallet: its encrypted storage handle, the
// in-memory cleartext container guarding private key material, the
// BIP32 master node (nil for a watch-only wallet), its derivation tree,
// its reverse resolver, and its set of address accounts.
type Wallet struct {
	env       *walletdb.Env
	assetKeys *decrypted.Container
	params    *chaincfg.Params

	ID              string
	seedFingerprint [4]byte
	masterNode      *derivation.Node // nil for watch-only wallets

	tree     *dtree.Tree
	resolver *resolver.Resolver

	accounts    map[uint32]*asset.AddressAccount
	accountIDs  []uint32
	nextUserID  uint32
	slotCounter uint32 // next flat master-child index pair to hand out, see accounts.go
}

// Close releases the underlying storage handle.
func (w *Wallet) Close() error {
	return w.env.Close()
}

// IsWatchOnly reports whether this wallet holds no private key material.
func (w *Wallet) IsWatchOnly() bool {
	return w.masterNode == nil || w.masterNode.PrivKey == nil
}

// Resolver exposes the wallet's reverse-lookup feed for transaction
// signing.
func (w *Wallet) Resolver() *resolver.Resolver {
	return w.resolver
}

// Account returns the address account with the given id.
func (w *Wallet) Account(id uint32) (*asset.AddressAccount, error) {
	acc, ok := w.accounts[id]
	if !ok {
		return nil, ErrUnknownAccount
	}
	return acc, nil
}

func openEnv(path string, dbCount uint32, controlPrompt decrypted.PromptFunc) (*walletdb.Env, error) {
	env, err := walletdb.SetupEnv(path, controlPrompt)
	if err != nil {
		return nil, fmt.Errorf("walletcore: setup env: %w", err)
	}
	if err := env.SetDBCount(dbCount); err != nil && err != walletdb.ErrDBCountDecrease {
		_ = env.Close()
		return nil, fmt.Errorf("walletcore: set db count: %w", err)
	}
	if _, err := env.AddHeader(mainHeaderName); err != nil {
		_ = env.Close()
		return nil, fmt.Errorf("walletcore: add header: %w", err)
	}
	return env, nil
}

func newEmptyWallet(env *walletdb.Env, params *chaincfg.Params) *Wallet {
	w := &Wallet{
		env:        env,
		assetKeys:  decrypted.New(),
		params:     params,
		tree:       dtree.New(),
		resolver:   resolver.New(),
		accounts:   make(map[uint32]*asset.AddressAccount),
		nextUserID: asset.AccountIDFirstUser,
	}
	w.resolver.DeriveAlongHint = w.deriveAlongHint
	return w
}

// deriveAlongHint walks the wallet's master node along a resolver path
// hint, giving GetPrivKeyForPubkey a way to recover a signing key
// without a per-address encrypted ciphertext, since BIP32 leaves are
// derived on demand rather than individually wrapped at rest.
func (w *Wallet) deriveAlongHint(hint resolver.PathHint) (*derivation.Node, error) {
	if w.masterNode == nil || w.masterNode.PrivKey == nil {
		return nil, ErrWatchOnly
	}
	node := w.masterNode
	for _, idx := range hint.Path {
		var err error
		node, err = node.DerivePrivate(idx)
		if err != nil {
			return nil, err
		}
	}
	return node, nil
}

func randomSalt(n int) ([]byte, error) {
	salt := make([]byte, n)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("walletcore: read salt: %w", err)
	}
	return salt, nil
}

// computeWalletID derives the wallet's stable id from its root public
// key, the same hash160-then-base58 shape the teacher used for the
// payment-gateway's API key ids, generalized to a key rather than random
// bytes.
func computeWalletID(rootPub []byte) string {
	return asset.Base58Encode(btcutil.Hash160(rootPub))
}
