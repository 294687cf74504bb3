//go:build arm64 && !purego

package compress

import "github.com/klauspost/cpuid/v2"

// Degree is the widest hash_many lane count the host CPU supports: 8 when four-wide
// NEON pairs can be executed back-to-back, 1 otherwise. A real kernel would run two
// NEON 4-lane compressions per round; see hash_many.go for why this build instead
// executes the lanes of a group sequentially.
var Degree = detectDegree()

func detectDegree() int {
	if cpuid.CPU.Has(cpuid.ASIMD) {
		return 8
	}
	return 1
}
