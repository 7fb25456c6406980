package dtree

import "sort"

// trieNode is a throwaway intermediate structure used only to find the
// divergence points among a set of absolute paths before linearizing
// them into Tree branches.
type trieNode struct {
	children map[uint32]*trieNode
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[uint32]*trieNode)}
}

// BuildFromPaths constructs the minimal tree containing every path in
// paths, sharing common prefixes on one branch and forking exactly once
// per divergence. Paths that are themselves a strict prefix of another
// supplied path are absorbed into the longer branch and do not get a
// distinct terminal branch of their own — in practice the wallet-chain
// paths this builds from (external/internal chains under one or more
// accounts) are disjoint equal-depth leaves, so this does not arise.
func BuildFromPaths(paths [][]uint32) *Tree {
	root := newTrieNode()
	for _, p := range paths {
		cur := root
		for _, idx := range p {
			next, ok := cur.children[idx]
			if !ok {
				next = newTrieNode()
				cur.children[idx] = next
			}
			cur = next
		}
	}

	t := New()
	linearize(t, RootBranch, root)
	return t
}

// linearize walks a chain of single-child trie nodes onto branch id's
// own node list, forking a new branch for every additional child at a
// divergence point.
func linearize(t *Tree, id BranchID, n *trieNode) {
	for len(n.children) > 0 {
		if len(n.children) == 1 {
			for idx, next := range n.children {
				t.AppendNode(id, idx)
				n = next
			}
			continue
		}

		keys := make([]uint32, 0, len(n.children))
		for k := range n.children {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

		for _, k := range keys[1:] {
			forkID, err := t.ForkFromBranch(id)
			if err != nil {
				// id has no nodes yet (the paths diverge at their first
				// index), so there is no prefix to fork from: k starts
				// an independent branch instead.
				forkID = t.nextID
				t.nextID++
				t.branches[forkID] = &branch{}
			}
			t.AppendNode(forkID, k)
			linearize(t, forkID, n.children[k])
		}

		t.AppendNode(id, keys[0])
		n = n.children[keys[0]]
	}
}
