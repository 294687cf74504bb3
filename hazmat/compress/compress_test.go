package compress

import (
	"bytes"
	"encoding/hex"
	"testing"
)

// ptn generates the BLAKE3 conformance test pattern: repeating 0x00..0xFA truncated to n
// bytes.
func ptn(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func hexDecode(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex fixture: %v", err)
	}
	return b
}

// compressInputOnBlock is a small harness that runs the full chunk-compression path (one
// CHUNK_START|CHUNK_END block) for a single message no longer than BlockLen, the simplest
// possible exercise of Compress.
func compressInputOnBlock(t *testing.T, msg []byte) [8]uint32 {
	t.Helper()
	if len(msg) > BlockLen {
		t.Fatalf("message too long for a single block: %d", len(msg))
	}
	var block [BlockLen]byte
	copy(block[:], msg)
	words := BytesToWords(&block)
	return ChainingValue(&IV, &words, 0, uint32(len(msg)), ChunkStart|ChunkEnd|Root)
}

func TestEmptyInputHash(t *testing.T) {
	got := compressInputOnBlock(t, nil)
	want := hexDecode(t, "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262")
	gotBytes := WordsToBytes(nil, got[:])
	if !bytes.Equal(gotBytes, want) {
		t.Fatalf("blake3(\"\") first 32 bytes: got %x want %x", gotBytes, want)
	}
}

func TestCompressDeterministic(t *testing.T) {
	msg := ptn(64)
	var block [BlockLen]byte
	copy(block[:], msg)
	words := BytesToWords(&block)

	a := Compress(&IV, &words, 0, BlockLen, ChunkStart|ChunkEnd)
	b := Compress(&IV, &words, 0, BlockLen, ChunkStart|ChunkEnd)
	if a != b {
		t.Fatal("Compress is not deterministic for identical inputs")
	}
}

func TestCompressSensitiveToCounter(t *testing.T) {
	msg := ptn(64)
	var block [BlockLen]byte
	copy(block[:], msg)
	words := BytesToWords(&block)

	a := ChainingValue(&IV, &words, 0, BlockLen, ChunkStart|ChunkEnd)
	b := ChainingValue(&IV, &words, 1, BlockLen, ChunkStart|ChunkEnd)
	if a == b {
		t.Fatal("chaining value must depend on the block counter")
	}
}

func TestCompressSensitiveToFlags(t *testing.T) {
	msg := ptn(64)
	var block [BlockLen]byte
	copy(block[:], msg)
	words := BytesToWords(&block)

	a := ChainingValue(&IV, &words, 0, BlockLen, ChunkStart)
	b := ChainingValue(&IV, &words, 0, BlockLen, ChunkStart|ChunkEnd)
	if a == b {
		t.Fatal("chaining value must depend on the flags word")
	}
}

func TestBytesToWordsRoundTrip(t *testing.T) {
	msg := ptn(BlockLen)
	var block [BlockLen]byte
	copy(block[:], msg)

	words := BytesToWords(&block)
	back := WordsToBytes(nil, words[:])
	if !bytes.Equal(back, msg) {
		t.Fatalf("round trip mismatch: got %x want %x", back, msg)
	}
}

func TestOutputRootStateMatchesChainingValueOnLowWords(t *testing.T) {
	msg := ptn(64)
	var block [BlockLen]byte
	copy(block[:], msg)

	out := Output{
		InputCV:    IV,
		BlockWords: BytesToWords(&block),
		Counter:    0,
		BlockLen:   BlockLen,
		Flags:      ChunkStart | ChunkEnd,
	}

	state := out.RootState(0)
	var low [8]uint32
	copy(low[:], state[:8])

	rootCV := ChainingValue(&out.InputCV, &out.BlockWords, out.Counter, out.BlockLen, out.Flags|Root)
	if low != rootCV {
		t.Fatal("RootState's low words must equal the root-flagged chaining value")
	}
}

func TestKeyWords(t *testing.T) {
	var key [KeyLen]byte
	for i := range key {
		key[i] = byte(i)
	}
	words := KeyWords(&key)
	back := WordsToBytes(nil, words[:])
	if !bytes.Equal(back, key[:]) {
		t.Fatalf("KeyWords round trip mismatch: got %x want %x", back, key[:])
	}
}
