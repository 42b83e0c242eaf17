// Package merkle builds the binary SHA-256 tree committed when an election
// closes and produces and checks per-ballot inclusion proofs.
//
// Leaves are LeafHash(tag) in the order given. Adjacent nodes are paired left
// to right; when a level has an odd number of nodes the last one is promoted
// to the next level unchanged, it is never paired with a copy of itself. An
// empty tree has root hash.EmptyRoot and a single leaf is its own root.
package merkle

import (
	"slices"

	"github.com/vocdoni/votecommit/crypto/hash"
)

// Tree is an immutable Merkle tree. levels[0] holds the leaves and the last
// level holds the root.
type Tree struct {
	levels [][]hash.Digest
	index  map[hash.Digest]int
}

// Build returns the tree over tags in the given order. The caller decides the
// order; storage returns ballots sorted by tag.
func Build(tags []string) *Tree {
	t := &Tree{index: make(map[hash.Digest]int, len(tags))}
	if len(tags) == 0 {
		return t
	}
	leaves := make([]hash.Digest, len(tags))
	for i, tag := range tags {
		leaves[i] = hash.LeafHash(tag)
		if _, ok := t.index[leaves[i]]; !ok {
			t.index[leaves[i]] = i
		}
	}
	t.levels = append(t.levels, leaves)
	for level := leaves; len(level) > 1; {
		next := make([]hash.Digest, 0, (len(level)+1)/2)
		for i := 0; i+1 < len(level); i += 2 {
			next = append(next, hash.NodeHash(level[i], level[i+1]))
		}
		if len(level)%2 == 1 {
			next = append(next, level[len(level)-1])
		}
		t.levels = append(t.levels, next)
		level = next
	}
	return t
}

// BuildSorted sorts a copy of tags ascending and builds the tree over it.
func BuildSorted(tags []string) *Tree {
	sorted := slices.Clone(tags)
	slices.Sort(sorted)
	return Build(sorted)
}

// Root returns the root digest.
func (t *Tree) Root() hash.Digest {
	if len(t.levels) == 0 {
		return hash.EmptyRoot
	}
	return t.levels[len(t.levels)-1][0]
}

// Size returns the number of leaves.
func (t *Tree) Size() int {
	if len(t.levels) == 0 {
		return 0
	}
	return len(t.levels[0])
}

// Depth returns the number of hashing levels above the leaves, which bounds
// the length of every proof.
func (t *Tree) Depth() int {
	if len(t.levels) == 0 {
		return 0
	}
	return len(t.levels) - 1
}

// Leaves returns a copy of the leaf digests.
func (t *Tree) Leaves() []hash.Digest {
	if len(t.levels) == 0 {
		return nil
	}
	return slices.Clone(t.levels[0])
}

// LeafIndex returns the position of tag's leaf, or false if tag is not in the
// tree. Repeated tags resolve to their first position.
func (t *Tree) LeafIndex(tag string) (int, bool) {
	i, ok := t.index[hash.LeafHash(tag)]
	return i, ok
}
