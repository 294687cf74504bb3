package gpu

import (
	"testing"

	"github.com/codahale/b3tree/hazmat/chunk"
	"github.com/codahale/b3tree/hazmat/compress"
	"github.com/codahale/b3tree/hazmat/tree"
	"github.com/codahale/b3tree/internal/join"
)

func ptn(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

// cpuFenceDevice is a Device fake that computes its output immediately with
// compress.HashMany instead of dispatching to real hardware, letting the driver's
// pipelining and UpdateFromGPU logic be exercised without a GPU.
type cpuFenceDevice struct{}

type cpuFence struct {
	output []byte
}

func (cpuFenceDevice) Submit(control ControlUniform, input []byte) (Fence, error) {
	n := len(input) / chunkLen
	inputs := make([][]byte, n)
	for i := range inputs {
		inputs[i] = input[i*chunkLen : (i+1)*chunkLen]
	}

	out := make([]byte, n*compress.OutLen)
	counter := uint64(control.CounterLo) | uint64(control.CounterHi)<<32
	compress.HashMany(inputs, &control.Key, counter, true, control.Flags, compress.ChunkStart, compress.ChunkEnd, out)

	return cpuFence{output: out}, nil
}

func (cpuFenceDevice) Wait(fence Fence) ([]byte, error) {
	return fence.(cpuFence).output, nil
}

func (cpuFenceDevice) Close() error { return nil }

func TestDriverMatchesCPUPath(t *testing.T) {
	const testBufferSize = 4 * chunkLen // small enough to keep the test fast
	const chunksPerTask = testBufferSize / chunkLen
	nChunks := chunksPerTask * 5 // 5 tasks' worth: the driver must reserve the last one
	data := ptn(nChunks * chunkLen)

	d := &Driver{
		dev:        cpuFenceDevice{},
		key:        compress.IV,
		bufferSize: testBufferSize,
		nTasks:     2,
		join:       join.Sequential{},
	}
	stack := tree.NewStack(compress.IV, 0)

	consumed, err := d.HashChunks(data, 0, stack)
	if err != nil {
		t.Fatalf("HashChunks: %v", err)
	}
	if consumed != len(data)-testBufferSize {
		t.Fatalf("consumed %d bytes, want %d (all but the reserved tail)", consumed, len(data)-testBufferSize)
	}

	// The CPU finishes the reserved tail chunk by chunk, exactly as a plain Hasher would.
	tail := data[consumed:]
	counter := uint64(consumed / chunkLen)
	var finalOut compress.Output
	for len(tail) > 0 {
		s := chunk.New(compress.IV, counter, 0)
		s.Update(tail[:chunkLen])
		out := s.Output()
		if len(tail) == chunkLen {
			finalOut = out
		} else {
			stack.Push(out.ChainingValue(), counter+1)
		}
		tail = tail[chunkLen:]
		counter++
	}

	got := stack.Finalize(finalOut).ChainingValue()

	want := referenceStackCV(data)

	if got != want {
		t.Fatalf("GPU-driver path diverged from CPU path:\ngot  %x\nwant %x", got, want)
	}
}

// referenceStackCV hashes data entirely on the CPU, one chunk at a time through a plain
// Stack, independent of the GPU driver under test.
func referenceStackCV(data []byte) [8]uint32 {
	n := len(data) / chunkLen
	stack := tree.NewStack(compress.IV, 0)
	var finalOut compress.Output
	for i := 0; i < n; i++ {
		s := chunk.New(compress.IV, uint64(i), 0)
		s.Update(data[i*chunkLen : (i+1)*chunkLen])
		out := s.Output()
		if i == n-1 {
			finalOut = out
		} else {
			stack.Push(out.ChainingValue(), uint64(i+1))
		}
	}
	return stack.Finalize(finalOut).ChainingValue()
}

func TestUpdateFromGPURejectsNonPowerOfTwo(t *testing.T) {
	stack := tree.NewStack(compress.IV, 0)
	parents := make([]byte, 3*compress.OutLen)
	err := UpdateFromGPU(stack, compress.IV, 0, 3, 0, parents)
	if err == nil {
		t.Fatal("expected an error for a non-power-of-two chunk count")
	}
}

func TestUpdateFromGPURejectsMisalignedCounter(t *testing.T) {
	stack := tree.NewStack(compress.IV, 0)
	parents := make([]byte, 4*compress.OutLen)
	err := UpdateFromGPU(stack, compress.IV, 0, 4, 6, parents)
	if err == nil {
		t.Fatal("expected an error for a misaligned chunk_counter")
	}
}

func TestUpdateFromGPURejectsTooFewCVs(t *testing.T) {
	stack := tree.NewStack(compress.IV, 0)
	parents := make([]byte, 2*compress.OutLen)
	err := UpdateFromGPU(stack, compress.IV, 0, 2, 0, parents)
	if err == nil {
		t.Fatal("expected an error when only 2 CVs are supplied")
	}
}

func TestNewDeviceDoesNotPanicWithoutBackend(t *testing.T) {
	_, err := NewDevice()
	if err != nil && err != ErrDeviceUnavailable {
		t.Fatalf("unexpected error: %v", err)
	}
}
