// Package b3tree implements BLAKE3, a cryptographic hash function built from a binary tree
// of a single compression function. Every node of the tree, leaf or internal, is keyed by
// the same 32-byte value and the same 32-bit flag word (seven defined bits) distinguishes chunk-start,
// chunk-end, parent, root, keyed-hash, and key-derivation nodes from one another.
//
// BLAKE3 has three modes: plain hashing (New), keyed hashing with a 32-byte key
// (NewKeyed), and key derivation from a context string (NewDeriveKey / HashDeriveKeyContext).
// All three share the same tree structure and differ only in their initial chaining value
// and base flags.
//
// Output is extendable: Finalize returns the first 32 bytes, and FinalizeXOF returns an
// OutputReader that can produce any number of bytes, deterministically, from the same root
// node.
//
// See the hazmat subpackages for the non-default-safe building blocks this package is
// composed from: hazmat/compress (the compression function and SIMD dispatch),
// hazmat/chunk (per-chunk absorption), and hazmat/tree (the CV stack and subtree API).
package b3tree

import (
	"encoding/binary"
	"errors"

	"github.com/codahale/b3tree/hazmat/chunk"
	"github.com/codahale/b3tree/hazmat/compress"
	"github.com/codahale/b3tree/hazmat/tree"
	"github.com/codahale/b3tree/internal/join"
)

// Size is the default output length in bytes returned by Finalize.
const Size = compress.OutLen

// KeyLen is the required length in bytes of the key passed to NewKeyed.
const KeyLen = compress.KeyLen

// ErrKeyLen is returned by NewKeyed when its key argument is not exactly KeyLen bytes.
var ErrKeyLen = errors.New("b3tree: key must be 32 bytes")

// wideSplitThreshold is the chunk count at and above which Update recursively splits an even
// number of chunks in half using a join.Hook instead of hashing them as one flat batch; odd
// counts are always hashed as one flat batch. Below this,
// the overhead of splitting exceeds whatever parallelism it could buy.
const wideSplitThreshold = 1 << 10

// Hasher incrementally computes a BLAKE3 hash. The zero value is not usable; construct one
// with New, NewKeyed, or NewDeriveKey.
type Hasher struct {
	key       [8]uint32
	baseFlags uint32

	stack  *tree.Stack
	cur    *chunk.State
	chunks uint64 // completed (CHUNK_END'd) chunks, plus the chunk offset set by SetInputOffset
	hook   join.Hook
}

// New returns a Hasher in the default (unkeyed) hashing mode.
func New() *Hasher {
	return newHasher(compress.IV, 0)
}

// NewKeyed returns a Hasher in keyed-hashing mode. key must be exactly KeyLen bytes.
func NewKeyed(key []byte) (*Hasher, error) {
	if len(key) != KeyLen {
		return nil, ErrKeyLen
	}
	var k [KeyLen]byte
	copy(k[:], key)
	return newHasher(compress.KeyWords(&k), compress.KeyedHash), nil
}

// NewDeriveKey returns a Hasher in key-derivation mode that derives a key from key material
// under context. The caller MUST feed exactly one message (the key material to derive from) via
// Update and then call Finalize or FinalizeXOF; context is not streamed, it is hashed
// immediately.
//
// NewDeriveKey corresponds to the reference algorithm's derive_key(context, key_material):
// it folds the two-step "hash the context, then use that hash as the key for a second
// hash of the key material" construction into a single constructor so that the resulting
// Hasher is ready to absorb key material directly.
func NewDeriveKey(context string) *Hasher {
	contextKey := HashDeriveKeyContext([]byte(context))
	return newHasher(compress.KeyWords(&contextKey), compress.DeriveKeyMaterial)
}

// HashDeriveKeyContext hashes a context string in DERIVE_KEY_CONTEXT mode and returns the
// resulting 32-byte context key. Advanced callers that want to reuse a context key across
// many DeriveKeyMaterial hashes (the hazmat "key derivation" building block) should call
// this once and drive NewFromContextKey themselves.
func HashDeriveKeyContext(context []byte) [32]byte {
	h := newHasher(compress.IV, compress.DeriveKeyContext)
	h.Update(context)
	var out [32]byte
	h.Finalize(out[:0])
	return out
}

// NewFromContextKey returns a Hasher in key-derivation mode using a context key already
// produced by HashDeriveKeyContext, skipping the context-hashing step. contextKey must be
// exactly KeyLen bytes.
func NewFromContextKey(contextKey []byte) (*Hasher, error) {
	if len(contextKey) != KeyLen {
		return nil, ErrKeyLen
	}
	var k [KeyLen]byte
	copy(k[:], contextKey)
	return newHasher(compress.KeyWords(&k), compress.DeriveKeyMaterial), nil
}

func newHasher(key [8]uint32, baseFlags uint32) *Hasher {
	h := &Hasher{
		key:       key,
		baseFlags: baseFlags,
		stack:     tree.NewStack(key, baseFlags),
		hook:      join.Sequential{},
	}
	h.cur = chunk.New(key, 0, baseFlags)
	return h
}

// SetJoinHook overrides the fan-out strategy Update uses for wide inputs. The default is
// sequential; pass a join.WorkStealing to parallelize large updates across goroutines.
func (h *Hasher) SetJoinHook(hook join.Hook) {
	h.hook = hook
}

// Count returns the total number of bytes absorbed by Update since construction, the last
// Reset, or the last SetInputOffset (added to that offset).
func (h *Hasher) Count() uint64 {
	return h.chunks*chunk.Len + uint64(h.cur.Len())
}

// SetInputOffset repositions a freshly constructed Hasher (one that has not yet absorbed
// any data) so that its first chunk is counted as if offsetBytes of input preceded it. This
// is the hazmat "set_input_offset" building block used to hash adjacent spans of a single
// logical input independently and merge their CVs later with the hazmat subtree API;
// offsetBytes must be a multiple of chunk.Len.
func (h *Hasher) SetInputOffset(offsetBytes uint64) {
	if offsetBytes%chunk.Len != 0 {
		panic("b3tree: SetInputOffset must be a multiple of the chunk length")
	}
	if h.chunks != 0 || h.stack.Len() != 0 || h.cur.Len() != 0 {
		panic("b3tree: SetInputOffset requires a fresh Hasher with no absorbed input")
	}
	counter := offsetBytes / chunk.Len
	h.chunks = counter
	h.cur = chunk.New(h.key, counter, h.baseFlags)
}

// Update absorbs more data into the hash state. It never returns an error and may be
// called any number of times before Finalize, FinalizeXOF, or FinalizeNonRoot.
func (h *Hasher) Update(data []byte) {
	for len(data) > 0 {
		if h.cur.Len() == chunk.Len {
			h.completeCurrentChunk()
		}

		want := chunk.Len - h.cur.Len()
		if h.cur.Len() == 0 && len(data) > want {
			n := h.updateWide(data)
			data = data[n:]
			continue
		}

		n := min(want, len(data))
		h.cur.Update(data[:n])
		data = data[n:]
	}
}

// completeCurrentChunk pushes the current chunk's CV onto the stack and starts a new one.
// It withholds ROOT: the stack never knows whether the chunk it just pushed was the last
// one in the whole input.
func (h *Hasher) completeCurrentChunk() {
	out := h.cur.Output()
	h.chunks++
	h.stack.Push(out.ChainingValue(), h.chunks)
	h.cur = chunk.New(h.key, h.chunks, h.baseFlags)
}

// updateWide consumes as many complete, non-final chunks of data as possible in one batch,
// using hash_many (and, above wideSplitThreshold chunks, a recursive join.Hook split) to
// compress them in parallel. It withholds between one byte and one full chunk of input at
// the end so the true last chunk of the whole input is never compressed here: Update must
// always leave ROOT eligibility to Finalize.
func (h *Hasher) updateWide(data []byte) int {
	nFullChunks := (len(data) - 1) / chunk.Len
	if nFullChunks == 0 {
		return 0
	}

	cvs := h.hashChunks(data[:nFullChunks*chunk.Len], h.chunks)
	for _, cv := range cvs {
		h.chunks++
		h.stack.Push(cv, h.chunks)
	}
	h.cur = chunk.New(h.key, h.chunks, h.baseFlags)

	return nFullChunks * chunk.Len
}

// hashChunks compresses nFullChunks complete chunks of data (counters startCounter..) into
// their CVs, using a flat hash_many batch below wideSplitThreshold chunks and an optional
// recursive two-way join.Hook split above it.
func (h *Hasher) hashChunks(data []byte, startCounter uint64) [][8]uint32 {
	n := len(data) / chunk.Len

	if n >= wideSplitThreshold && n%2 == 0 {
		mid := n / 2
		var left, right [][8]uint32
		err := h.hook.Join([]func() error{
			func() error { left = h.hashChunks(data[:mid*chunk.Len], startCounter); return nil },
			func() error {
				right = h.hashChunks(data[mid*chunk.Len:], startCounter+uint64(mid))
				return nil
			},
		})
		if err != nil {
			panic(err) // unreachable: neither closure returns an error
		}
		return append(left, right...)
	}

	return h.hashChunksFlat(data, startCounter)
}

func (h *Hasher) hashChunksFlat(data []byte, startCounter uint64) [][8]uint32 {
	n := len(data) / chunk.Len
	inputs := make([][]byte, n)
	for i := range inputs {
		inputs[i] = data[i*chunk.Len : (i+1)*chunk.Len]
	}

	out := make([]byte, n*compress.OutLen)
	compress.HashMany(inputs, &h.key, startCounter, true, h.baseFlags, compress.ChunkStart, compress.ChunkEnd, out)

	cvs := make([][8]uint32, n)
	for i := range cvs {
		cvs[i] = cvWords(out[i*compress.OutLen : (i+1)*compress.OutLen])
	}
	return cvs
}

func cvWords(b []byte) (words [8]uint32) {
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return
}

// root returns the finalized, still-unsqueezed Output for the root node: the current
// chunk's own output folded up through the stack. A single-chunk input (stack empty) is
// its own root node; this is what makes chunk-start and chunk-end coincide in that case.
func (h *Hasher) root() compress.Output {
	return h.stack.Finalize(h.cur.Output())
}

// Finalize appends the first Size bytes of output to dst and returns the resulting slice.
func (h *Hasher) Finalize(dst []byte) []byte {
	out := h.root()
	state := out.RootState(0)
	return compress.WordsToBytes(dst, state[:8])
}

// FinalizeTo writes exactly len(out) bytes of extended output to out, equivalent to
// FinalizeXOF().Fill(out).
func (h *Hasher) FinalizeTo(out []byte) {
	h.FinalizeXOF().Fill(out)
}

// FinalizeXOF returns an OutputReader over this hash's extendable output. The Hasher may
// continue to be updated and finalized again afterward; each finalization is independent.
func (h *Hasher) FinalizeXOF() *OutputReader {
	out := h.root()
	return &OutputReader{out: out}
}

// FinalizeNonRoot returns this Hasher's chaining value without applying ROOT: the hazmat
// "non-root subtree hash" building block, used when this Hasher covers a subtree that is
// known not to be the whole input and whose CV will be merged with others via
// hazmat/tree.MergeSubtreesNonRoot or .../Root or .../XOF.
//
// The caller is responsible for ensuring this Hasher's span is a valid subtree per the
// hazmat alignment rule (see hazmat/tree.MaxSubtreeLen): a power-of-two number of chunks,
// starting at a multiple of that count. It panics if no input has been absorbed.
func (h *Hasher) FinalizeNonRoot() [8]uint32 {
	if h.cur.Len() == 0 {
		panic("b3tree: FinalizeNonRoot requires at least one absorbed byte")
	}
	out := h.root()
	return out.ChainingValue()
}

// Reset restores the Hasher to its initial state, ready to hash new input with the same
// key and mode.
func (h *Hasher) Reset() {
	h.stack = tree.NewStack(h.key, h.baseFlags)
	h.cur = chunk.New(h.key, 0, h.baseFlags)
	h.chunks = 0
}

// Clone returns an independent copy of the Hasher, sharing no mutable state with it. This
// is the cheap way to compute the hash of several inputs that share a long common prefix:
// hash the prefix once, Clone, then diverge.
func (h *Hasher) Clone() *Hasher {
	clone := *h
	cur := *h.cur
	clone.cur = &cur
	clone.stack = h.stack.Clone()
	return &clone
}
