package compress

// Output is an unfinalized compression record: the (input_cv, block_words, counter,
// block_len, flags) 5-tuple from which either a non-root chaining value or, at the root,
// arbitrary-length XOF bytes can be produced. It is shared by chunk state (the last block
// of a chunk), the tree builder (every parent compression along finalization), and the
// output reader (which re-compresses it once per 64-byte block read).
type Output struct {
	InputCV    [8]uint32
	BlockWords [16]uint32
	Counter    uint64
	BlockLen   uint32
	Flags      uint32
}

// ChainingValue compresses the record without ROOT and returns the resulting CV. This is
// what every non-root use of an Output (chunk CVs, parent CVs) consumes.
func (o Output) ChainingValue() [8]uint32 {
	return ChainingValue(&o.InputCV, &o.BlockWords, o.Counter, o.BlockLen, o.Flags)
}

// RootState compresses the record with ROOT set and the given output-block counter,
// returning the full 16-word extended state an output reader squeezes bytes from.
func (o *Output) RootState(counter uint64) [16]uint32 {
	return Compress(&o.InputCV, &o.BlockWords, counter, o.BlockLen, o.Flags|Root)
}
