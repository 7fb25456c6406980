package derivation

import "github.com/btcsuite/btcd/btcec/v2"

// SaltedBIP32 wraps a BIP32 chain-root node with a fixed per-account
// salt scalar, post-multiplying every derived leaf: pub' = salt·pub,
// priv' = salt·priv mod n.
type SaltedBIP32 struct {
	Salt btcec.ModNScalar
	Base *Node
}

// NewSaltedBIP32 builds a salted wrapper around an already-derived BIP32
// chain root. The salt is fixed for the lifetime of the account.
func NewSaltedBIP32(base *Node, salt []byte) (*SaltedBIP32, error) {
	s, ok := scalarFromBytes(salt)
	if !ok {
		return nil, ErrInvalidChild
	}
	return &SaltedBIP32{Salt: *s, Base: base}, nil
}

// DeriveSalted derives the unsalted BIP32 leaf at index i (privately if
// Base holds a private key, publicly otherwise), then applies the
// account's salt to the result.
func (s *SaltedBIP32) DeriveSalted(i uint32) (*Node, error) {
	var leaf *Node
	var err error
	if s.Base.PrivKey != nil {
		leaf, err = s.Base.DerivePrivate(i)
	} else {
		leaf, err = s.Base.DerivePublic(i)
	}
	if err != nil {
		return nil, err
	}
	return s.applySalt(leaf), nil
}

func (s *SaltedBIP32) applySalt(leaf *Node) *Node {
	salted := &Node{
		Depth:             leaf.Depth,
		ChildNumber:       leaf.ChildNumber,
		ParentFingerprint: leaf.ParentFingerprint,
		ChainCode:         leaf.ChainCode,
	}
	if leaf.PrivKey != nil {
		salted.PrivKey = mulScalars(&s.Salt, leaf.PrivKey)
		salted.PubKey = pubKeyFromScalar(salted.PrivKey)
	} else {
		salted.PubKey = mulScalarPoint(&s.Salt, leaf.PubKey)
	}
	return salted
}
