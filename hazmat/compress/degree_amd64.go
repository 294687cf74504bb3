//go:build amd64 && !purego

package compress

import "github.com/klauspost/cpuid/v2"

// Degree is the widest hash_many lane count the host CPU supports: 16 for AVX-512,
// 8 for AVX2, 4 for SSE4.1/SSE2, 1 otherwise. Real SSE2/SSE4.1/AVX2/AVX-512 kernels
// would transpose this many inputs into vector registers; see hash_many.go for why
// this build instead executes the lanes of a group sequentially.
var Degree = detectDegree()

func detectDegree() int {
	switch {
	case cpuid.CPU.Has(cpuid.AVX512F) && cpuid.CPU.Has(cpuid.AVX512VL):
		return 16
	case cpuid.CPU.Has(cpuid.AVX2):
		return 8
	case cpuid.CPU.Has(cpuid.SSE41) || cpuid.CPU.Has(cpuid.SSE2):
		return 4
	default:
		return 1
	}
}
