package tree

import (
	"testing"

	"github.com/codahale/b3tree/hazmat/chunk"
	"github.com/codahale/b3tree/hazmat/compress"
)

// FuzzTreeComposition checks that splitting an input into an arbitrary number of chunks and
// folding them through a Stack always agrees with the plain recursive reference, regardless
// of how many chunks make up the input.
func FuzzTreeComposition(f *testing.F) {
	f.Add(1)
	f.Add(2)
	f.Add(3)
	f.Add(16)
	f.Add(33)

	f.Fuzz(func(t *testing.T, n int) {
		if n <= 0 || n > 64 {
			t.Skip()
		}

		data := ptn(n * chunk.Len)

		s := chunk.New(compress.IV, 0, 0)
		stack := NewStack(compress.IV, 0)
		for i := 0; i < n; i++ {
			s.Reset(compress.IV, uint64(i))
			s.Update(data[i*chunk.Len : (i+1)*chunk.Len])
			if i < n-1 {
				stack.Push(s.Output().ChainingValue(), uint64(i+1))
			}
		}
		got := stack.Finalize(s.Output()).ChainingValue()
		want := referenceHash(data)

		if got != want {
			t.Fatalf("n=%d: stack %x != reference %x", n, got, want)
		}
	})
}
