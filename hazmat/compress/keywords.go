package compress

import "encoding/binary"

// KeyWords decodes a 32-byte key into 8 little-endian words, the form every compression
// takes its chaining value input in.
func KeyWords(key *[KeyLen]byte) (words [8]uint32) {
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(key[i*4:])
	}
	return
}
