// Package merkle provides the merkle tree used to commit a block's
// transaction set into its header.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"errors"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Hashable represents the behavior concrete data must exhibit to be used in
// the merkle tree.
type Hashable[T any] interface {
	Hash() ([]byte, error)
}

// HashFunc combines two child hashes into a parent hash.
type HashFunc func(left, right []byte) []byte

// Sha256d is the default strategy: double SHA-256 over the concatenated
// children, matching the transaction identifier scheme.
func Sha256d(left, right []byte) []byte {
	first := sha256.Sum256(append(append([]byte{}, left...), right...))
	second := sha256.Sum256(first[:])
	return second[:]
}

// =============================================================================

// Tree represents a merkle tree over values of some type T. A tree with a
// single leaf has that leaf's hash as its root; a level with an odd number
// of nodes pairs its last node with itself.
type Tree[T Hashable[T]] struct {
	root    []byte
	leaves  [][]byte
	values  []T
	combine HashFunc
}

// WithHashStrategy changes the default sha256d combine strategy.
func WithHashStrategy[T Hashable[T]](combine HashFunc) func(t *Tree[T]) {
	return func(t *Tree[T]) {
		t.combine = combine
	}
}

// NewTree constructs a merkle tree from the ordered set of values.
func NewTree[T Hashable[T]](values []T, options ...func(t *Tree[T])) (*Tree[T], error) {
	if len(values) == 0 {
		return nil, errors.New("cannot construct tree with no content")
	}

	t := Tree[T]{
		combine: Sha256d,
		values:  values,
	}
	for _, option := range options {
		option(&t)
	}

	for _, value := range values {
		hash, err := value.Hash()
		if err != nil {
			return nil, err
		}
		t.leaves = append(t.leaves, hash)
	}

	level := t.leaves
	for len(level) > 1 {
		var next [][]byte
		for i := 0; i < len(level); i += 2 {
			right := level[i]
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, t.combine(level[i], right))
		}
		level = next
	}
	t.root = level[0]

	return &t, nil
}

// Root returns the merkle root hash.
func (t *Tree[T]) Root() []byte {
	return t.root
}

// RootHex returns the merkle root hash in hex with a 0x prefix.
func (t *Tree[T]) RootHex() string {
	return hexutil.Encode(t.root)
}

// Values returns the values the tree was built from, in leaf order.
func (t *Tree[T]) Values() []T {
	return t.values
}

// Contains reports whether the given value's hash is one of the leaves.
func (t *Tree[T]) Contains(value T) (bool, error) {
	hash, err := value.Hash()
	if err != nil {
		return false, err
	}
	for _, leaf := range t.leaves {
		if bytes.Equal(leaf, hash) {
			return true, nil
		}
	}
	return false, nil
}
