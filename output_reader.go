package b3tree

import "github.com/codahale/b3tree/hazmat/compress"

// OutputReader squeezes an arbitrary number of bytes from a finalized BLAKE3 root node.
// Every 64-byte block is an independent compression of the same Output record at an
// increasing output-block counter, so output is seekable and restartable: Fill can be
// called any number of times, in any chunking, and the concatenation of all bytes produced
// is the same as requesting them all from one longer Fill.
//
// The zero value is not usable; obtain one from Hasher.FinalizeXOF.
type OutputReader struct {
	out     compress.Output
	counter uint64
	buf     [compress.BlockLen]byte
	bufLen  int
	bufOff  int
}

// Fill reads len(p) bytes of extended output into p.
func (r *OutputReader) Fill(p []byte) {
	for len(p) > 0 {
		if r.bufOff == r.bufLen {
			r.refill()
		}
		n := copy(p, r.buf[r.bufOff:r.bufLen])
		r.bufOff += n
		p = p[n:]
	}
}

// Read implements io.Reader, always filling p completely and returning len(p), nil: output
// is unbounded, so there is no notion of EOF.
func (r *OutputReader) Read(p []byte) (int, error) {
	r.Fill(p)
	return len(p), nil
}

func (r *OutputReader) refill() {
	state := r.out.RootState(r.counter)
	r.counter++
	r.buf = wordsToBlock(state)
	r.bufLen = len(r.buf)
	r.bufOff = 0
}

func wordsToBlock(state [16]uint32) (block [compress.BlockLen]byte) {
	b := compress.WordsToBytes(make([]byte, 0, compress.BlockLen), state[:16])
	copy(block[:], b)
	return
}
