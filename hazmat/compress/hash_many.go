package compress

// HashMany computes the chaining value of each of the equally block-shaped inputs and
// writes them contiguously, OutLen bytes apiece, into out.
//
// Each entry of inputs is a sequence of complete BlockLen-byte blocks (a "chunk-shaped"
// slot of up to 16 blocks, or a "parent-shaped" slot of exactly one block). counter is the
// starting counter value; when incrementCounter is true (chunk compressions) lane i uses
// counter+i, otherwise (parent compressions) every lane uses counter unchanged. flags is
// ORed into every block; flagsStart is additionally ORed into the first block of each
// input and flagsEnd into the last.
//
// Inputs are processed in groups of degree D (the widest of {16, 8, 4, 2, 1} available on
// the host, per Degree) by transposing D inputs into D-lane state. Leftover inputs fall
// back to progressively narrower groups down to a scalar loop. Output ordering matches
// input ordering, and results are bit-for-bit identical to D independent scalar
// compressions, including across the 32-to-64-bit counter carry.
func HashMany(inputs [][]byte, key *[8]uint32, counter uint64, incrementCounter bool, flags, flagsStart, flagsEnd uint32, out []byte) {
	idx := 0
	n := len(inputs)

	for _, d := range []int{16, 8, 4, 2} {
		if d > Degree {
			continue
		}
		for idx+d <= n {
			group := inputs[idx : idx+d]
			groupOut := out[idx*OutLen : (idx+d)*OutLen]
			hashGroup(group, key, laneCounter(counter, incrementCounter, idx), incrementCounter, flags, flagsStart, flagsEnd, groupOut)
			idx += d
		}
	}

	for idx < n {
		groupOut := out[idx*OutLen : (idx+1)*OutLen]
		hashGroup(inputs[idx:idx+1], key, laneCounter(counter, incrementCounter, idx), incrementCounter, flags, flagsStart, flagsEnd, groupOut)
		idx++
	}
}

func laneCounter(counter uint64, incrementCounter bool, idx int) uint64 {
	if incrementCounter {
		return counter + uint64(idx)
	}
	return counter
}

// hashGroup compresses a D-wide transposed group of chunk/parent-shaped inputs. The loop
// nesting (block index outer, lane index inner) mirrors the transposed-state layout a
// vectorized kernel would use: every lane advances through the same block index together,
// which is what lets a real SIMD kernel execute all D lanes with one vector instruction
// per BLAKE3 round. This portable form executes the lanes sequentially but preserves that
// structure so it can be swapped for a true assembly kernel without changing callers.
func hashGroup(group [][]byte, key *[8]uint32, baseCounter uint64, incrementCounter bool, flags, flagsStart, flagsEnd uint32, out []byte) {
	d := len(group)
	cvs := make([][8]uint32, d)
	for lane := range cvs {
		cvs[lane] = *key
	}

	nBlocks := len(group[0]) / BlockLen

	for b := range nBlocks {
		blockFlags := flags
		if b == 0 {
			blockFlags |= flagsStart
		}
		if b == nBlocks-1 {
			blockFlags |= flagsEnd
		}

		for lane := 0; lane < d; lane++ {
			var blockBytes [BlockLen]byte
			copy(blockBytes[:], group[lane][b*BlockLen:(b+1)*BlockLen])
			words := BytesToWords(&blockBytes)

			ctr := baseCounter
			if incrementCounter {
				ctr = baseCounter + uint64(lane)
			}

			cvs[lane] = ChainingValue(&cvs[lane], &words, ctr, BlockLen, blockFlags)
		}
	}

	for lane := 0; lane < d; lane++ {
		copy(out[lane*OutLen:(lane+1)*OutLen], wordsToCVBytes(cvs[lane]))
	}
}

func wordsToCVBytes(words [8]uint32) []byte {
	return WordsToBytes(make([]byte, 0, OutLen), words[:])
}
