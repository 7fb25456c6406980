package dtree

import (
	"errors"
	"strconv"
	"strings"

	"github.com/opd-ai/hdvault/derivation"
)

// BranchID identifies one linear branch within a Tree. RootBranch (0) is
// always present and starts empty.
type BranchID int

// RootBranch is the tree's initial, always-present branch.
const RootBranch BranchID = 0

var (
	ErrUnknownBranch = errors.New("dtree: unknown branch id")
	ErrEmptyBranch   = errors.New("dtree: branch has no nodes to fork from")
	ErrNoKnownRoot   = errors.New("dtree: no known root along this path")
)

type branch struct {
	parent    BranchID
	hasParent bool
	forkDepth int // length of the parent's full path inherited as this branch's prefix
	nodes     []uint32
}

// KnownRoot is a BIP32 node attached at a specific path position, serving
// as the nearest ancestor descendants are derived from.
type KnownRoot struct {
	Encoded   string
	IsPrivate bool
	node      *derivation.Node
}

// Tree is a forest of labeled branches sharing prefixes via forks, per
// spec.md §4.G.
type Tree struct {
	branches map[BranchID]*branch
	nextID   BranchID
	roots    map[string]*KnownRoot
}

// New creates a tree with a single empty root branch.
func New() *Tree {
	t := &Tree{
		branches: map[BranchID]*branch{RootBranch: {}},
		nextID:   RootBranch + 1,
		roots:    make(map[string]*KnownRoot),
	}
	return t
}

// AppendNode grows branch id by one BIP32 child index.
func (t *Tree) AppendNode(id BranchID, value uint32) error {
	b, ok := t.branches[id]
	if !ok {
		return ErrUnknownBranch
	}
	b.nodes = append(b.nodes, value)
	return nil
}

// ForkFromBranch creates a new branch rooted at id's current full path,
// inheriting it as a fixed prefix. The new branch starts with no nodes
// of its own; subsequent AppendNode calls on either branch never affect
// the other.
func (t *Tree) ForkFromBranch(id BranchID) (BranchID, error) {
	if _, ok := t.branches[id]; !ok {
		return 0, ErrUnknownBranch
	}
	parentFull, err := t.FullPath(id)
	if err != nil {
		return 0, err
	}
	if len(parentFull) == 0 {
		return 0, ErrEmptyBranch
	}
	newID := t.nextID
	t.nextID++
	t.branches[newID] = &branch{parent: id, hasParent: true, forkDepth: len(parentFull)}
	return newID, nil
}

// FullPath returns id's complete BIP32 path: the inherited prefix from
// its ancestor chain, followed by its own appended nodes.
func (t *Tree) FullPath(id BranchID) ([]uint32, error) {
	b, ok := t.branches[id]
	if !ok {
		return nil, ErrUnknownBranch
	}
	var prefix []uint32
	if b.hasParent {
		parentFull, err := t.FullPath(b.parent)
		if err != nil {
			return nil, err
		}
		if b.forkDepth <= len(parentFull) {
			prefix = parentFull[:b.forkDepth]
		} else {
			prefix = parentFull
		}
	}
	full := make([]uint32, 0, len(prefix)+len(b.nodes))
	full = append(full, prefix...)
	full = append(full, b.nodes...)
	return full, nil
}

// ResolvePaths returns the full BIP32 path for every branch in the tree.
func (t *Tree) ResolvePaths() (map[BranchID][]uint32, error) {
	out := make(map[BranchID][]uint32, len(t.branches))
	for id := range t.branches {
		path, err := t.FullPath(id)
		if err != nil {
			return nil, err
		}
		out[id] = path
	}
	return out, nil
}

func pathKey(path []uint32) string {
	parts := make([]string, len(path))
	for i, v := range path {
		parts[i] = strconv.FormatUint(uint64(v), 10)
	}
	return strings.Join(parts, "/")
}

// AttachRoot registers an already-resolved node as the known root at the
// given path position, without going through base58 serialization. Used
// to seed the tree with a wallet's own root asset.
func (t *Tree) AttachRoot(path []uint32, node *derivation.Node) {
	t.roots[pathKey(path)] = &KnownRoot{IsPrivate: node.PrivKey != nil, node: node}
}

// AddB58Root decodes a base58check xprv/xpub and attaches it as the
// known root at the given path position.
func (t *Tree) AddB58Root(path []uint32, encoded string) error {
	node, _, isPrivate, err := derivation.DecodeExtKey(encoded)
	if err != nil {
		return err
	}
	t.roots[pathKey(path)] = &KnownRoot{Encoded: encoded, IsPrivate: isPrivate, node: node}
	return nil
}

func (t *Tree) nearestKnownRoot(path []uint32) (*KnownRoot, int) {
	for depth := len(path); depth >= 0; depth-- {
		if r, ok := t.roots[pathKey(path[:depth])]; ok {
			return r, depth
		}
	}
	return nil, 0
}

// ResolveNodeRoots computes the resolved BIP32 node for every branch's
// leaf, deriving from the nearest known ancestor root. A leaf is absent
// from the returned map (not an error) when the nearest known root is
// public-only and the remaining path to the leaf contains a hardened
// step — spec.md §4.G's public-root limitation.
func (t *Tree) ResolveNodeRoots() (map[BranchID]*derivation.Node, error) {
	paths, err := t.ResolvePaths()
	if err != nil {
		return nil, err
	}
	out := make(map[BranchID]*derivation.Node, len(paths))
	for id, path := range paths {
		node, ok, err := t.resolveAlongPath(path)
		if err != nil {
			return nil, err
		}
		if ok {
			out[id] = node
		}
	}
	return out, nil
}

func (t *Tree) resolveAlongPath(path []uint32) (*derivation.Node, bool, error) {
	root, depth := t.nearestKnownRoot(path)
	if root == nil {
		return nil, false, ErrNoKnownRoot
	}
	cur := root.node
	for _, idx := range path[depth:] {
		if derivation.IsHardened(idx) && cur.PrivKey == nil {
			return nil, false, nil
		}
		var err error
		if cur.PrivKey != nil {
			cur, err = cur.DerivePrivate(idx)
		} else {
			cur, err = cur.DerivePublic(idx)
		}
		if err != nil {
			return nil, false, err
		}
	}
	return cur, true, nil
}
