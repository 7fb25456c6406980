package walletcore

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/opd-ai/hdvault/asset"
	"github.com/opd-ai/hdvault/derivation"
	"github.com/opd-ai/hdvault/dtree"
)

// accountSlot tracks how many flat master-child index pairs have been
// handed out. Every address account (default or user-created) occupies
// one slot: external chain at 2*slot, internal chain at 2*slot+1,
// derived directly as children of the wallet's master node. This is a
// deliberate simplification of the full BIP44 purpose'/coin'/account'
// hierarchy down to a single derivation level, matching the flat scheme
// already used by asset/derivation's ChainExtender adapters; a wallet
// wanting the full multi-level path would register its own extenders
// instead of going through addDefaultBIP32Account/AddBIP32Account.
type accountSlot struct {
	extIndex uint32
	intIndex uint32
}

func (w *Wallet) nextAccountSlot() accountSlot {
	slot := accountSlot{extIndex: w.slotCounter * 2, intIndex: w.slotCounter*2 + 1}
	w.slotCounter++
	return slot
}

func (w *Wallet) deriveChainRoots(slot accountSlot) (ext, internal *derivation.Node, err error) {
	if w.masterNode.PrivKey != nil {
		ext, err = w.masterNode.DerivePrivate(slot.extIndex)
		if err != nil {
			return nil, nil, err
		}
		internal, err = w.masterNode.DerivePrivate(slot.intIndex)
		return ext, internal, err
	}
	ext, err = w.masterNode.DerivePublic(slot.extIndex)
	if err != nil {
		return nil, nil, err
	}
	internal, err = w.masterNode.DerivePublic(slot.intIndex)
	return ext, internal, err
}

// addDefaultBIP32Account sets up the wallet's first user-visible
// account, at the reserved AccountIDBIP32Outer id, enabled for native
// segwit addresses plus their P2SH-wrapped form.
func (w *Wallet) addDefaultBIP32Account() error {
	slot := w.nextAccountSlot()
	extRoot, intRoot, err := w.deriveChainRoots(slot)
	if err != nil {
		return fmt.Errorf("walletcore: derive default account chains: %w", err)
	}

	enabledTypes := []asset.AddressType{asset.P2WPKH, asset.P2WPKH | asset.P2SH}
	ext := &derivation.BIP32ChainExtender{ChainRoot: extRoot, Params: w.params}
	internal := &derivation.BIP32ChainExtender{ChainRoot: intRoot, Params: w.params}

	acc, err := asset.NewAddressAccount(asset.AccountIDBIP32Outer, enabledTypes, ext, internal)
	if err != nil {
		return err
	}
	return w.registerAccount(acc)
}

// AddBIP32Account creates an additional user account, deriving its
// external/internal chains from the wallet's master node at the next
// available flat slot.
func (w *Wallet) AddBIP32Account(enabledTypes []asset.AddressType) (*asset.AddressAccount, error) {
	slot := w.nextAccountSlot()
	extRoot, intRoot, err := w.deriveChainRoots(slot)
	if err != nil {
		return nil, fmt.Errorf("walletcore: derive account chains: %w", err)
	}

	ext := &derivation.BIP32ChainExtender{ChainRoot: extRoot, Params: w.params}
	internal := &derivation.BIP32ChainExtender{ChainRoot: intRoot, Params: w.params}

	id := w.nextUserID
	acc, err := asset.NewAddressAccount(id, enabledTypes, ext, internal)
	if err != nil {
		return nil, err
	}
	w.nextUserID++
	if err := w.registerAccount(acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// AddArmory135Account creates a legacy-scheme account rooted at its own
// keypair (independent of the wallet's BIP32 master node, per spec.md
// §4.F's Armory-135 scheme). rootPriv is nil for a watch-only account.
// chainCode is the caller-supplied Armory-135 chain constant recovered
// from the paper backup (or persisted RootAsset); it is never derived
// from rootPub.
func (w *Wallet) AddArmory135Account(rootPub *btcec.PublicKey, rootPriv *btcec.ModNScalar, chainCode []byte, addrType asset.AddressType) (*asset.AddressAccount, error) {
	var chain *derivation.ArmoryChain
	var err error
	if rootPriv != nil {
		chain, err = derivation.NewArmoryChain(rootPub, rootPriv, chainCode)
	} else {
		chain, err = derivation.NewArmoryChainPublic(rootPub, chainCode)
	}
	if err != nil {
		return nil, err
	}

	extChain := &derivation.ArmoryChainExtender{Chain: chain, Params: w.params}
	id := w.nextUserID
	// Armory-135 has no distinct change chain in the wallet's model; the
	// same chain serves both roles, addresses are simply never reused
	// across the two purposes by convention at the caller level.
	acc, err := asset.NewAddressAccount(id, []asset.AddressType{addrType}, extChain, extChain)
	if err != nil {
		return nil, err
	}
	w.nextUserID++
	if err := w.registerAccount(acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// AddSaltedBIP32Account creates an account using the salted-BIP32
// scheme: every leaf of an ordinary BIP32 chain is post-multiplied by a
// fixed per-account salt.
func (w *Wallet) AddSaltedBIP32Account(salt []byte, addrType asset.AddressType) (*asset.AddressAccount, error) {
	slot := w.nextAccountSlot()
	extRoot, intRoot, err := w.deriveChainRoots(slot)
	if err != nil {
		return nil, err
	}
	extSalted, err := derivation.NewSaltedBIP32(extRoot, salt)
	if err != nil {
		return nil, err
	}
	intSalted, err := derivation.NewSaltedBIP32(intRoot, salt)
	if err != nil {
		return nil, err
	}

	ext := &derivation.SaltedChainExtender{Chain: extSalted, Params: w.params}
	internal := &derivation.SaltedChainExtender{Chain: intSalted, Params: w.params}

	id := w.nextUserID
	acc, err := asset.NewAddressAccount(id, []asset.AddressType{addrType}, ext, internal)
	if err != nil {
		return nil, err
	}
	w.nextUserID++
	if err := w.registerAccount(acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// AddECDHAccount creates an account using the ECDH-salted scheme: every
// address corresponds to an explicitly-registered salt rather than a
// sequential chain index. Callers must AddSalt on the returned chain
// before NextUnused can derive past what has been registered.
func (w *Wallet) AddECDHAccount(basePub *btcec.PublicKey, basePriv *btcec.ModNScalar, addrType asset.AddressType) (*asset.AddressAccount, *derivation.ECDHChain, error) {
	chain := derivation.NewECDHChain(basePub, basePriv)
	extChain := &derivation.ECDHChainExtender{Chain: chain, Params: w.params}

	id := w.nextUserID
	acc, err := asset.NewAddressAccount(id, []asset.AddressType{addrType}, extChain, extChain)
	if err != nil {
		return nil, nil, err
	}
	w.nextUserID++
	if err := w.registerAccount(acc); err != nil {
		return nil, nil, err
	}
	return acc, chain, nil
}

func (w *Wallet) registerAccount(acc *asset.AddressAccount) error {
	if _, exists := w.accounts[acc.ID]; exists {
		return ErrAccountIDInUse
	}
	w.accounts[acc.ID] = acc
	w.accountIDs = append(w.accountIDs, acc.ID)
	if acc.ID == asset.AccountIDBIP32Outer {
		if err := w.persistMainAccountID(acc.ID); err != nil {
			return err
		}
	}
	return w.persistAddressAccount(acc.ID, []byte{}) // an empty placeholder record; the account's state is not persisted
}

// RebuildDerivationTree reconstructs the wallet's forkable derivation
// tree from every flat-scheme BIP32 account's chain indices, the shape
// spec.md §4.G's tree exists to represent for a restore or audit flow
// that only has the root node and a list of paths, not live chain
// objects.
func (w *Wallet) RebuildDerivationTree() (*dtree.Tree, error) {
	var paths [][]uint32
	for slot := uint32(0); slot < w.slotCounter; slot++ {
		paths = append(paths, []uint32{slot * 2})
		paths = append(paths, []uint32{slot*2 + 1})
	}
	tree := dtree.BuildFromPaths(paths)
	tree.AttachRoot(nil, w.masterNode)
	w.tree = tree
	return tree, nil
}
