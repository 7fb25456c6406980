package resolver

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/opd-ai/hdvault/asset"
	"github.com/opd-ai/hdvault/derivation"
)

var (
	ErrNoAsset           = errors.New("resolver: no asset registered for this hash")
	ErrWrongAssetShape   = errors.New("resolver: asset shape does not support this operation")
	ErrNoPrivateMaterial = errors.New("resolver: asset has no private key material")
	ErrNoPathHint        = errors.New("resolver: no BIP32 path hint registered for this pubkey")
)

// prefixOrder fixes the deterministic order address-type prefixes are
// tried in when resolving a bare hash, per spec.md §4.H.
var prefixOrder = []asset.AddressType{
	asset.P2PKH,
	asset.P2PKH | asset.Uncompressed,
	asset.P2PK,
	asset.P2PK | asset.Uncompressed,
	asset.P2WPKH,
	asset.P2WPKH | asset.P2SH,
	asset.Multisig,
	asset.Multisig | asset.P2SH,
	asset.Multisig | asset.P2WSH,
	asset.Multisig | asset.P2WSH | asset.P2SH,
}

// Preimage is what a hash resolves to: the asset it belongs to plus
// enough context to locate it again.
type Preimage struct {
	AccountID  uint32
	AssetIndex uint32
	Asset      *asset.Asset
	Type       asset.AddressType

	// PredecessorHash/PredecessorType describe the inner script this
	// preimage wraps (e.g. a P2WPKH hash nested in a P2SH wrapper), if
	// any. A hit on this preimage seeds the predecessor's hash into the
	// cache too.
	PredecessorHash []byte
	PredecessorType asset.AddressType
}

// PathHint is a caller-registered (pubkey -> BIP32 path) binding letting
// GetPrivKeyForPubkey derive along a known path instead of falling back
// to the hash→asset lookup.
type PathHint struct {
	Path              []uint32
	SeedFingerprint   [4]byte
	PublicDerivedRoot []byte // optional serialized xpub, when only a public root is known
}

// Resolver maps script hashes and public keys back to the assets that
// produced them, supporting transaction signing. Decrypting an asset's
// private key and deriving along a registered path hint are both
// delegated to caller-supplied functions rather than importing
// decrypted/derivation directly, keeping Resolver usable against any
// locked container or tree the caller already has open.
type Resolver struct {
	mu sync.Mutex

	byHash          map[string]*Preimage
	hashCache       map[string]*Preimage
	pubkeyPrivCache map[string][]byte
	pathHints       map[string]PathHint

	DecryptAssetKey func(encryptionKeyID, ciphertext []byte) ([]byte, error)
	DeriveAlongHint func(hint PathHint) (*derivation.Node, error)
}

// New creates an empty resolver.
func New() *Resolver {
	return &Resolver{
		byHash:          make(map[string]*Preimage),
		hashCache:       make(map[string]*Preimage),
		pubkeyPrivCache: make(map[string][]byte),
		pathHints:       make(map[string]PathHint),
	}
}

func prefixKey(t asset.AddressType) string {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(t))
	return string(b[:])
}

func lookupKey(t asset.AddressType, hash []byte) string {
	return prefixKey(t) + string(hash)
}

// Register records that hash, under address type t, resolves to the
// given preimage. Called once per derived address entry.
func (r *Resolver) Register(hash []byte, t asset.AddressType, p Preimage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.Type = t
	r.byHash[lookupKey(t, hash)] = &p
}

// RegisterPathHint binds a compressed pubkey to a known BIP32 path, so
// GetPrivKeyForPubkey and ResolveBIP32PathForPubkey can answer without
// walking the hash→asset map.
func (r *Resolver) RegisterPathHint(pubkey []byte, hint PathHint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pathHints[string(pubkey)] = hint
}

// GetByVal resolves hash to its preimage: an in-memory cache lookup,
// then a scan of every registered address-type prefix in deterministic
// order. The first match wins; if it is a nested (P2SH/P2WSH) asset, the
// wrapped predecessor's hash is also seeded into the cache.
func (r *Resolver) GetByVal(hash []byte) (*Preimage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getByValLocked(hash)
}

func (r *Resolver) getByValLocked(hash []byte) (*Preimage, error) {
	key := string(hash)
	if p, ok := r.hashCache[key]; ok {
		return p, nil
	}
	for _, t := range prefixOrder {
		p, ok := r.byHash[lookupKey(t, hash)]
		if !ok {
			continue
		}
		r.hashCache[key] = p
		if p.PredecessorHash != nil {
			r.hashCache[string(p.PredecessorHash)] = p
		}
		return p, nil
	}
	return nil, ErrNoAsset
}

// GetPrivKeyForPubkey resolves pubkey to its raw private scalar bytes:
// a cache lookup, then a registered path-hint derivation, then a
// hash160→asset lookup with ciphertext decryption as the fallback.
func (r *Resolver) GetPrivKeyForPubkey(pubkey []byte) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := string(pubkey)
	if priv, ok := r.pubkeyPrivCache[key]; ok {
		return priv, nil
	}

	if hint, ok := r.pathHints[key]; ok && r.DeriveAlongHint != nil {
		if node, err := r.DeriveAlongHint(hint); err == nil && node.PrivKey != nil {
			priv := nodePrivBytes(node)
			r.pubkeyPrivCache[key] = priv
			return priv, nil
		}
	}

	hash := btcutil.Hash160(pubkey)
	preimage, err := r.getByValLocked(hash)
	if err != nil {
		return nil, err
	}
	if preimage.Asset.Kind != asset.KindSingle {
		return nil, ErrWrongAssetShape
	}
	single := preimage.Asset.Single
	if len(single.PrivCiphertext) == 0 || r.DecryptAssetKey == nil {
		return nil, ErrNoPrivateMaterial
	}
	priv, err := r.DecryptAssetKey(single.EncryptionKeyID, single.PrivCiphertext)
	if err != nil {
		return nil, err
	}
	r.pubkeyPrivCache[key] = priv
	return priv, nil
}

// ResolveBIP32PathForPubkey returns the BIP32 path a previously
// registered pubkey was derived along.
func (r *Resolver) ResolveBIP32PathForPubkey(pubkey []byte) (*BIP32AssetPath, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hint, ok := r.pathHints[string(pubkey)]
	if !ok {
		return nil, ErrNoPathHint
	}
	return &BIP32AssetPath{
		PubKey:            pubkey,
		PathFromSeed:      hint.Path,
		SeedFingerprint:   hint.SeedFingerprint,
		PublicDerivedRoot: hint.PublicDerivedRoot,
	}, nil
}

// BIP32AssetPath is the compound result of ResolveBIP32PathForPubkey.
type BIP32AssetPath struct {
	PubKey            []byte
	PathFromSeed      []uint32
	SeedFingerprint   [4]byte
	PublicDerivedRoot []byte
}

func nodePrivBytes(n *derivation.Node) []byte {
	b := n.PrivKey.Bytes()
	return b[:]
}
