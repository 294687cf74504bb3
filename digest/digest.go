// Package digest adapts b3tree.Hasher to the standard hash.Hash interface, for code that
// expects a crypto/sha256-shaped API rather than Update/Finalize.
package digest

import (
	"hash"

	"github.com/codahale/b3tree"
	"github.com/codahale/b3tree/internal/mem"
)

// Size is the size, in bytes, of the digest returned by Sum.
const Size = b3tree.Size

// BlockSize is the size, in bytes, of a BLAKE3 message block.
const BlockSize = 64

// New returns a new hash.Hash instance using BLAKE3's default (unkeyed) mode.
func New() hash.Hash {
	d := &digest{new: func() *b3tree.Hasher { return b3tree.New() }}
	d.Reset()
	return d
}

// NewKeyed returns a new hash.Hash instance using BLAKE3's keyed mode. key must be exactly
// b3tree.KeyLen bytes.
func NewKeyed(key []byte) (hash.Hash, error) {
	keyCopy := append([]byte(nil), key...)
	if _, err := b3tree.NewKeyed(keyCopy); err != nil {
		return nil, err
	}
	d := &digest{new: func() *b3tree.Hasher {
		h, _ := b3tree.NewKeyed(keyCopy)
		return h
	}}
	d.Reset()
	return d, nil
}

// NewDeriveKey returns a new hash.Hash instance using BLAKE3's key-derivation mode: Write
// feeds the key material, and Sum returns the derived key.
func NewDeriveKey(context string) hash.Hash {
	d := &digest{new: func() *b3tree.Hasher { return b3tree.NewDeriveKey(context) }}
	d.Reset()
	return d
}

type digest struct {
	new func() *b3tree.Hasher
	h   *b3tree.Hasher
}

func (d *digest) Write(p []byte) (n int, err error) {
	d.h.Update(p)
	return len(p), nil
}

func (d *digest) Sum(b []byte) []byte {
	head, tail := mem.SliceForAppend(b, Size)
	d.h.Clone().FinalizeTo(tail)
	return head
}

func (d *digest) Reset() {
	d.h = d.new()
}

func (d *digest) Size() int {
	return Size
}

func (d *digest) BlockSize() int {
	return BlockSize
}

var _ hash.Hash = (*digest)(nil)
