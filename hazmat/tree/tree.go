// Package tree implements the BLAKE3 Merkle tree: the lazily-merging chaining-value stack
// that composes chunk CVs into parent CVs during streaming updates, tree finalization, and
// the hazmat subtree-merging entry points for advanced callers.
//
// The lazy-merge rule is grounded on the same "buffer until more than one leaf, then fold"
// shape as a KT128-style tree hash: merging the top two stack entries is deferred until the
// next chunk's CV is known, so that ROOT is never applied to an internal node.
package tree

import (
	"math/bits"

	"github.com/codahale/b3tree/hazmat/compress"
)

// Stack is the right-edge chaining-value stack of an in-progress BLAKE3 tree. Its depth
// never exceeds 54 (enough for 2^54 chunks) because each push immediately folds any
// completed subtrees per the popcount rule.
type Stack struct {
	entries   [][8]uint32
	key       [8]uint32
	baseFlags uint32
}

// NewStack returns an empty Stack for a tree keyed by key and carrying baseFlags (the
// hasher's mode flags, without PARENT or ROOT).
func NewStack(key [8]uint32, baseFlags uint32) *Stack {
	return &Stack{key: key, baseFlags: baseFlags}
}

// Len returns the current stack depth.
func (s *Stack) Len() int { return len(s.entries) }

// Clone returns an independent copy of the stack: mutating one does not affect the other.
func (s *Stack) Clone() *Stack {
	return &Stack{
		entries:   append([][8]uint32(nil), s.entries...),
		key:       s.key,
		baseFlags: s.baseFlags,
	}
}

// ParentCV compresses the 64-byte block left||right as a non-root parent node.
func ParentCV(key [8]uint32, baseFlags uint32, left, right [8]uint32) [8]uint32 {
	block := joinBlock(left, right)
	return compress.ChainingValue(&key, &block, 0, compress.BlockLen, baseFlags|compress.Parent)
}

// Push merges cv into the stack as the CV of the totalChunks-th completed chunk (1-based).
// It pops and merges while the stack is taller than popcount(totalChunks), then pushes the
// (possibly now-merged) result. This is the compact expression of "lazy merging": the top
// of the stack is never finalized with ROOT because merges only happen once the next
// chunk's CV confirms the prior ones were not the end of the input.
func (s *Stack) Push(cv [8]uint32, totalChunks uint64) {
	target := bits.OnesCount64(totalChunks)
	for len(s.entries) >= target {
		left := s.entries[len(s.entries)-1]
		s.entries = s.entries[:len(s.entries)-1]
		cv = ParentCV(s.key, s.baseFlags, left, cv)
	}
	s.entries = append(s.entries, cv)
}

// Finalize folds the stack, from the top down, against the current chunk's own Output
// record and returns the final (still non-root) Output: the caller applies ROOT (or, for a
// subtree CV, does not) by reading it through an output reader or ChainingValue().
func (s *Stack) Finalize(current compress.Output) compress.Output {
	output := current
	for i := len(s.entries) - 1; i >= 0; i-- {
		block := joinBlock(s.entries[i], output.ChainingValue())
		output = compress.Output{
			InputCV:    s.key,
			BlockWords: block,
			Counter:    0,
			BlockLen:   compress.BlockLen,
			Flags:      s.baseFlags | compress.Parent,
		}
	}
	return output
}

// MaxSubtreeLen returns the maximum number of chunks a subtree starting at chunk index
// startChunk may contain, per the hazmat API's alignment rule: 2^trailing_zeros(startChunk)
// chunks. For startChunk == 0 (the whole input) there is no bound; ok is false.
func MaxSubtreeLen(startChunk uint64) (maxChunks uint64, ok bool) {
	if startChunk == 0 {
		return 0, false
	}
	return uint64(1) << bits.TrailingZeros64(startChunk), true
}

// MergeSubtreesNonRoot performs a parent compression of two child subtree CVs, producing
// another non-root subtree CV. key and baseFlags select the mode (Hash: compress.IV, 0;
// KeyedHash: the 32-byte key as words, compress.KeyedHash; DeriveKeyMaterial: the context
// key produced by hashing the context string in DERIVE_KEY_CONTEXT mode, compress.DeriveKeyMaterial).
func MergeSubtreesNonRoot(key [8]uint32, baseFlags uint32, left, right [8]uint32) [8]uint32 {
	return ParentCV(key, baseFlags, left, right)
}

// MergeSubtreesRoot performs the root parent compression of the two top-level child CVs
// and returns the 32-byte hash.
func MergeSubtreesRoot(key [8]uint32, baseFlags uint32, left, right [8]uint32) [8]uint32 {
	block := joinBlock(left, right)
	return compress.ChainingValue(&key, &block, 0, compress.BlockLen, baseFlags|compress.Parent|compress.Root)
}

// MergeSubtreesXOF returns the Output record of the root parent node without compressing
// it and without the ROOT flag; its RootState method applies ROOT and produces each 64-byte
// block of extended output.
func MergeSubtreesXOF(key [8]uint32, baseFlags uint32, left, right [8]uint32) compress.Output {
	return compress.Output{
		InputCV:    key,
		BlockWords: joinBlock(left, right),
		Counter:    0,
		BlockLen:   compress.BlockLen,
		Flags:      baseFlags | compress.Parent,
	}
}

func joinBlock(left, right [8]uint32) (block [16]uint32) {
	copy(block[:8], left[:])
	copy(block[8:], right[:])
	return
}
