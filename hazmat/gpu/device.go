// Package gpu implements the host side of BLAKE3's optional GPU offload path: a control
// uniform format, a Device seam a real compute-shader backend would implement, and a
// pure-Go host driver that pipelines submissions across it and falls back to the CPU path
// whenever no accelerator is present.
package gpu

import (
	"encoding/binary"
	"errors"
)

// ControlUniformSize is the byte size of a marshaled ControlUniform. The driver asserts
// this has no padding at init time, since the layout is shared verbatim with the device.
const ControlUniformSize = 8*4 + 2*4 + 4

func init() {
	var c ControlUniform
	if len(c.Bytes()) != ControlUniformSize {
		panic("gpu: control uniform size mismatch")
	}
}

// ControlUniform is the per-submission record telling a compute shader which subtree of
// the BLAKE3 tree to compress: the keying chaining value, the starting chunk counter
// (split into low/high 32-bit halves), and the mode flags.
type ControlUniform struct {
	Key       [8]uint32
	CounterLo uint32
	CounterHi uint32
	Flags     uint32
}

// NewControlUniform builds a ControlUniform for a submission starting at chunk counter.
func NewControlUniform(key [8]uint32, counter uint64, flags uint32) ControlUniform {
	return ControlUniform{
		Key:       key,
		CounterLo: uint32(counter),
		CounterHi: uint32(counter >> 32),
		Flags:     flags,
	}
}

// Bytes returns the little-endian wire encoding of the uniform. Host and device must agree
// on endianness; a real backend running on a big-endian host would need to byte-swap this
// buffer the same way the output buffer is swapped.
func (c ControlUniform) Bytes() []byte {
	b := make([]byte, 0, ControlUniformSize)
	for _, w := range c.Key {
		b = binary.LittleEndian.AppendUint32(b, w)
	}
	b = binary.LittleEndian.AppendUint32(b, c.CounterLo)
	b = binary.LittleEndian.AppendUint32(b, c.CounterHi)
	b = binary.LittleEndian.AppendUint32(b, c.Flags)
	return b
}

// Fence is an opaque handle to a submitted command buffer that a Device can wait on.
type Fence interface{}

// ErrDeviceUnavailable is returned by Device methods, and by NewDevice, when no GPU
// backend is compiled in or the backend has reported an unrecoverable error (device loss,
// out-of-memory, shader compile failure, queue submission failure). It is a single opaque
// signal: Driver.HashChunks returns it along with the number of bytes already consumed, and
// the caller hashes the rest on the CPU. The driver keeps no disabled state; a later
// HashChunks call uses the device again.
var ErrDeviceUnavailable = errors.New("gpu: device unavailable")

// Device is the seam a real Vulkan or WebGPU backend implements. Submit enqueues a chunk
// or parent compute-shader dispatch over input (a multiple of buffer_size-aligned byte
// range) and returns a Fence; Wait blocks until that submission's fence signals and
// returns the raw output buffer in the device's native word order.
type Device interface {
	// Submit dispatches a compute shader pass over input; which device queue runs it is
	// up to the implementation.
	Submit(control ControlUniform, input []byte) (Fence, error)

	// Wait blocks on fence and returns the output buffer it produced.
	Wait(fence Fence) ([]byte, error)

	// Close releases device resources. It waits for any in-flight submissions first.
	Close() error
}

// NewDevice returns the best available Device: a compiled-in GPU backend when cgo built
// one and it reports itself available, or ErrDeviceUnavailable otherwise. Callers that get
// an error should proceed with CPU-only hashing; this is not a fatal condition.
func NewDevice() (Device, error) {
	return newPlatformDevice()
}
