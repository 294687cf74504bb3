//go:build (!amd64 && !arm64) || purego

package compress

// Degree is 1 on platforms without a detected SIMD kernel: hash_many falls back to a
// scalar loop, one compression at a time.
var Degree = 1
