package b3tree

import (
	"testing"

	"github.com/codahale/b3tree/internal/testdata"
)

func BenchmarkHash(b *testing.B) {
	for _, size := range testdata.Sizes {
		b.Run(size.Name, func(b *testing.B) {
			data := ptn(size.N)
			out := make([]byte, Size)
			b.SetBytes(int64(size.N))
			b.ReportAllocs()
			for b.Loop() {
				h := New()
				h.Update(data)
				h.Finalize(out[:0])
			}
		})
	}
}

func BenchmarkKeyedHash(b *testing.B) {
	key := make([]byte, KeyLen)
	for _, size := range testdata.Sizes {
		b.Run(size.Name, func(b *testing.B) {
			data := ptn(size.N)
			out := make([]byte, Size)
			b.SetBytes(int64(size.N))
			b.ReportAllocs()
			for b.Loop() {
				h, _ := NewKeyed(key)
				h.Update(data)
				h.Finalize(out[:0])
			}
		})
	}
}

func BenchmarkFinalizeXOF(b *testing.B) {
	for _, size := range testdata.Sizes {
		b.Run(size.Name, func(b *testing.B) {
			data := ptn(4096)
			out := make([]byte, size.N)
			b.SetBytes(int64(size.N))
			b.ReportAllocs()
			for b.Loop() {
				h := New()
				h.Update(data)
				h.FinalizeXOF().Fill(out)
			}
		})
	}
}
