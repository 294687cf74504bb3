// Package compress implements the BLAKE3 compression function, its seven-round
// permutation, and the SIMD-parallel hash_many dispatch used to compress many
// independent, equally-sized inputs at once.
package compress

import "encoding/binary"

const (
	// OutLen is the length in bytes of a chaining value.
	OutLen = 32

	// KeyLen is the length in bytes of a key.
	KeyLen = 32

	// BlockLen is the length in bytes of a message block.
	BlockLen = 64
)

// Flag bits carried in every compression, per the BLAKE3 specification.
const (
	ChunkStart = 1 << iota
	ChunkEnd
	Parent
	Root
	KeyedHash
	DeriveKeyContext
	DeriveKeyMaterial
)

// IV is the initial chaining value: the first 8 words of the SHA-256 IV.
var IV = [8]uint32{
	0x6A09E667, 0xBB67AE85, 0x3C6EF372, 0xA54FF53A,
	0x510E527F, 0x9B05688C, 0x1F83D9AB, 0x5BE0CD19,
}

// MsgSchedule is the fixed 7x16 message-word permutation applied on each round.
var MsgSchedule = [7][16]uint8{
	{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
	{2, 6, 3, 10, 7, 0, 4, 13, 1, 11, 12, 5, 9, 14, 15, 8},
	{3, 4, 10, 12, 13, 2, 7, 14, 6, 5, 9, 0, 11, 15, 8, 1},
	{10, 7, 12, 9, 14, 3, 13, 15, 4, 0, 11, 2, 5, 8, 1, 6},
	{12, 13, 9, 11, 15, 10, 14, 8, 7, 2, 5, 3, 0, 1, 6, 4},
	{9, 14, 11, 5, 8, 12, 15, 1, 13, 3, 0, 10, 2, 6, 4, 7},
	{11, 15, 5, 0, 1, 9, 8, 6, 14, 10, 2, 12, 3, 4, 7, 13},
}

// WordsToBytes encodes every word of words as little-endian bytes, appending to dst.
func WordsToBytes(dst []byte, words []uint32) []byte {
	for _, w := range words {
		dst = binary.LittleEndian.AppendUint32(dst, w)
	}
	return dst
}

// BytesToWords decodes a little-endian 64-byte block into 16 message words.
func BytesToWords(block *[BlockLen]byte) (words [16]uint32) {
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(block[i*4:])
	}
	return
}

// Compress runs the seven-round BLAKE3 permutation and returns the 16-word extended
// state: the lower 8 words are the next chaining value, the upper 8 are the XOF block
// used for root/output compressions.
//
// cv is the input chaining value (the hasher's key_words, which are the IV in Hash mode,
// for the first block of a chunk and for parent nodes; the previous block's CV for later
// blocks of a chunk). block holds the 16 message words. counter and blockLen
// are the BLAKE3 t and d fields; flags is the OR of the Flag bits above.
func Compress(cv *[8]uint32, block *[16]uint32, counter uint64, blockLen uint32, flags uint32) [16]uint32 {
	return compressPortable(cv, block, counter, blockLen, flags)
}

// ChainingValue runs Compress and returns only the lower 8 words (the next CV).
func ChainingValue(cv *[8]uint32, block *[16]uint32, counter uint64, blockLen uint32, flags uint32) [8]uint32 {
	out := compressPortable(cv, block, counter, blockLen, flags)
	return [8]uint32{out[0], out[1], out[2], out[3], out[4], out[5], out[6], out[7]}
}

func g(state *[16]uint32, a, b, c, d int, mx, my uint32) {
	state[a] = state[a] + state[b] + mx
	state[d] = rotr32(state[d]^state[a], 16)
	state[c] = state[c] + state[d]
	state[b] = rotr32(state[b]^state[c], 12)
	state[a] = state[a] + state[b] + my
	state[d] = rotr32(state[d]^state[a], 8)
	state[c] = state[c] + state[d]
	state[b] = rotr32(state[b]^state[c], 7)
}

func rotr32(x uint32, n uint) uint32 {
	return x>>n | x<<(32-n)
}

// round applies the eight G mixers of a single round, columns then diagonals, selecting
// message words through MsgSchedule[r].
func round(state *[16]uint32, msg *[16]uint32, r int) {
	sched := &MsgSchedule[r]

	g(state, 0, 4, 8, 12, msg[sched[0]], msg[sched[1]])
	g(state, 1, 5, 9, 13, msg[sched[2]], msg[sched[3]])
	g(state, 2, 6, 10, 14, msg[sched[4]], msg[sched[5]])
	g(state, 3, 7, 11, 15, msg[sched[6]], msg[sched[7]])

	g(state, 0, 5, 10, 15, msg[sched[8]], msg[sched[9]])
	g(state, 1, 6, 11, 12, msg[sched[10]], msg[sched[11]])
	g(state, 2, 7, 8, 13, msg[sched[12]], msg[sched[13]])
	g(state, 3, 4, 9, 14, msg[sched[14]], msg[sched[15]])
}

// compressPortable is the scalar reference kernel: initializes the 16-word state from
// cv/IV/counter/blockLen/flags, runs seven rounds, and feeds the state forward.
func compressPortable(cv *[8]uint32, block *[16]uint32, counter uint64, blockLen uint32, flags uint32) [16]uint32 {
	state := [16]uint32{
		cv[0], cv[1], cv[2], cv[3], cv[4], cv[5], cv[6], cv[7],
		IV[0], IV[1], IV[2], IV[3],
		uint32(counter), uint32(counter >> 32),
		blockLen, flags,
	}

	for r := range 7 {
		round(&state, block, r)
	}

	for i := range 8 {
		state[i] ^= state[i+8]
		state[i+8] ^= cv[i]
	}

	return state
}
