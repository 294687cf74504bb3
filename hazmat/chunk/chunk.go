// Package chunk implements per-chunk streaming compression: absorbing up to 16 blocks
// of a single 1024-byte BLAKE3 chunk and producing the unfinalized Output record for it.
package chunk

import "github.com/codahale/b3tree/hazmat/compress"

const (
	// Len is the canonical BLAKE3 chunk size in bytes. Interoperable implementations MUST
	// use 1024; an experimental 2048-byte variant appears in an early draft of the
	// reference implementation and must not be used.
	Len = 1024

	// MaxBlocks is the number of BlockLen-byte blocks absorbed by one full chunk.
	MaxBlocks = Len / compress.BlockLen
)

// State absorbs bytes for a single chunk, compressing each full 64-byte block as it
// fills and buffering a short final block.
type State struct {
	cv               [8]uint32
	counter          uint64
	buf              [compress.BlockLen]byte
	bufLen           int
	blocksCompressed uint8
	flags            uint32
}

// New returns a State ready to absorb the chunk at the given counter, keyed by key and
// carrying the hasher's base flags (KEYED_HASH / DERIVE_KEY_CONTEXT / DERIVE_KEY_MATERIAL,
// or 0 for plain Hash mode).
func New(key [8]uint32, counter uint64, flags uint32) *State {
	s := &State{flags: flags}
	s.Reset(key, counter)
	return s
}

// Reset restarts the State for a new chunk at the given counter, keeping its flags.
func (s *State) Reset(key [8]uint32, counter uint64) {
	s.cv = key
	s.counter = counter
	s.bufLen = 0
	s.blocksCompressed = 0
}

// Counter returns the chunk's counter (its 0-based index within the whole input, offset
// by the hasher's initial_chunk_counter).
func (s *State) Counter() uint64 { return s.counter }

// Len returns the number of bytes absorbed so far, in the range [0, Len].
func (s *State) Len() int {
	return compress.BlockLen*int(s.blocksCompressed) + s.bufLen
}

// Update absorbs data into the chunk. The caller MUST NOT pass more bytes than
// Len(s)+len(data) <= Len; chunk-boundary splitting is the caller's responsibility.
func (s *State) Update(data []byte) {
	for len(data) > 0 {
		if s.bufLen == compress.BlockLen {
			s.compressBuffered()
		}

		n := min(compress.BlockLen-s.bufLen, len(data))
		copy(s.buf[s.bufLen:], data[:n])
		s.bufLen += n
		data = data[n:]
	}
}

// compressBuffered compresses a full block buffer as a non-final block of the chunk.
func (s *State) compressBuffered() {
	words := compress.BytesToWords(&s.buf)
	flags := s.flags
	if s.blocksCompressed == 0 {
		flags |= compress.ChunkStart
	}
	s.cv = compress.ChainingValue(&s.cv, &words, s.counter, compress.BlockLen, flags)
	s.blocksCompressed++
	s.bufLen = 0
}

// Output returns the chunk's (non-finalized) Output record: the CHUNK_END block, ready to
// be turned into a non-root chaining value or, at the root, XOF output bytes. It may be
// called at any point, including with a partial or even empty final block (an empty chunk
// is only valid when it is also the entire input).
func (s *State) Output() compress.Output {
	var block [compress.BlockLen]byte
	copy(block[:], s.buf[:s.bufLen])

	flags := s.flags | compress.ChunkEnd
	if s.blocksCompressed == 0 {
		flags |= compress.ChunkStart
	}

	return compress.Output{
		InputCV:    s.cv,
		BlockWords: compress.BytesToWords(&block),
		Counter:    s.counter,
		BlockLen:   uint32(s.bufLen),
		Flags:      flags,
	}
}
