package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"

	"github.com/codahale/b3tree/hazmat/compress"
	"github.com/codahale/b3tree/hazmat/tree"
	"github.com/codahale/b3tree/internal/join"
)

// BufferSize is the default per-task input staging buffer size. MinOffloadSize, four times
// this, is the smallest input worth offloading; the driver itself does not check it.
const BufferSize = 32 << 20

// MinOffloadSize is the smallest input length worth offloading to Driver.HashChunks at
// all; callers should compare against it before bothering to open a Device.
const MinOffloadSize = 4 * BufferSize

// ErrMisalignedUpdate is returned by UpdateFromGPU when its chunk_count or chunk_counter
// arguments violate the subtree-alignment preconditions. This is a programmer error, not a
// transient device condition: the caller should treat it the same as any other hazmat
// precondition violation and halt.
var ErrMisalignedUpdate = errors.New("gpu: misaligned update_from_gpu call")

// task tracks one outstanding submission: the chunk range it covers and the fence the
// driver will eventually wait on to collect its output.
type task struct {
	fence      Fence
	counter    uint64
	chunkCount uint64
}

// Driver pipelines chunk-shader submissions across a small pool of concurrent device
// tasks, double-buffering so that the device can work on one task's input while the host
// is still packing the next. It falls back to no-op (report unavailable) use whenever its
// Device is nil, which happens whenever NewDevice found no backend.
type Driver struct {
	dev        Device
	key        [8]uint32
	baseFlags  uint32
	bufferSize int
	nTasks     int
	join       join.Hook
	bigEndian  bool
}

// NewDriver returns a Driver using dev (which may be nil, meaning "no GPU available") to
// hash input keyed by key under baseFlags, with nTasks concurrent in-flight submissions
// (spec recommends 3) and hook used to parallelize the endianness byte-swap pass.
func NewDriver(dev Device, key [8]uint32, baseFlags uint32, nTasks int, hook join.Hook) *Driver {
	if nTasks <= 0 {
		nTasks = 3
	}
	if hook == nil {
		hook = join.Sequential{}
	}
	return &Driver{
		dev:        dev,
		key:        key,
		baseFlags:  baseFlags,
		bufferSize: BufferSize,
		nTasks:     nTasks,
		join:       hook,
		bigEndian:  isBigEndianHost(),
	}
}

// Available reports whether this Driver has a usable Device.
func (d *Driver) Available() bool { return d.dev != nil }

// HashChunks offloads hashing of data (a whole number of bufferSize-aligned chunk-shaped
// spans, except possibly its final, short "tail" span) to the GPU, pushing the resulting
// subtree CVs onto stack as it goes, and returns the number of leading bytes it consumed.
// The final span, whether short or a full buffer, is left unconsumed for the caller to hash
// on the CPU, per the "no more GPU submissions after the tail" rule.
func (d *Driver) HashChunks(data []byte, startCounter uint64, stack *tree.Stack) (consumed int, err error) {
	if d.dev == nil {
		return 0, ErrDeviceUnavailable
	}

	chunksPerTask := d.bufferSize / chunkLen
	pending := make([]*task, 0, d.nTasks)
	counter := startCounter
	offset := 0

	flush := func() error {
		for _, t := range pending {
			if err := d.collect(t, stack); err != nil {
				return err
			}
		}
		pending = pending[:0]
		return nil
	}

	for offset < len(data) {
		remaining := data[offset:]
		if len(remaining) <= d.bufferSize {
			// Reserve the last span, even a full buffer's worth, for the CPU: the
			// stack must never be finalized from GPU pushes alone, since nothing
			// here knows whether this span contains the whole input's true last
			// chunk.
			break
		}

		span := remaining[:d.bufferSize]
		ctl := NewControlUniform(d.key, counter, d.baseFlags)

		fence, err := d.dev.Submit(ctl, span)
		if err != nil {
			return offset, ErrDeviceUnavailable
		}

		pending = append(pending, &task{fence: fence, counter: counter, chunkCount: uint64(chunksPerTask)})
		counter += uint64(chunksPerTask)
		offset += d.bufferSize

		if len(pending) == d.nTasks {
			if err := flush(); err != nil {
				return offset, err
			}
		}
	}

	if err := flush(); err != nil {
		return offset, err
	}

	return offset, nil
}

// collect waits on t's fence, byte-swaps its output if the host is big-endian, and applies
// it via UpdateFromGPU.
func (d *Driver) collect(t *task, stack *tree.Stack) error {
	output, err := d.dev.Wait(t.fence)
	if err != nil {
		return ErrDeviceUnavailable
	}

	d.fixEndianness(output)

	return UpdateFromGPU(stack, d.key, d.baseFlags, t.chunkCount, t.counter, output)
}

// fixEndianness byte-swaps each 4-byte CV word of output in place when the host is
// big-endian; the shader produces words in the host's native byte order, and UpdateFromGPU
// decodes them as little-endian. On little-endian hosts
// (the overwhelming majority) this is a no-op. Large buffers are split across the join
// hook so the swap itself doesn't become the bottleneck.
func (d *Driver) fixEndianness(output []byte) {
	if !d.bigEndian {
		return
	}

	const splitThreshold = 1 << 20
	if len(output) <= splitThreshold {
		swapWords(output)
		return
	}

	mid := (len(output) / 2) &^ 3
	_ = d.join.Join([]func() error{
		func() error { swapWords(output[:mid]); return nil },
		func() error { swapWords(output[mid:]); return nil },
	})
}

func swapWords(b []byte) {
	for i := 0; i+4 <= len(b); i += 4 {
		b[i], b[i+1], b[i+2], b[i+3] = b[i+3], b[i+2], b[i+1], b[i]
	}
}

// UpdateFromGPU validates and absorbs a batch of chunk CVs produced by a GPU submission
// covering chunkCount chunks starting at chunkCounter, reducing them to a pair of subtree
// CVs and pushing both onto stack. It is exported standalone (not just as a Driver method)
// so a caller wiring up its own submission loop can drive the same reduction.
func UpdateFromGPU(stack *tree.Stack, key [8]uint32, baseFlags uint32, chunkCount, chunkCounter uint64, parents []byte) error {
	if bits.OnesCount64(chunkCount) != 1 {
		return fmt.Errorf("%w: chunk_count %d is not a power of two", ErrMisalignedUpdate, chunkCount)
	}
	if chunkCount > 1<<32 {
		return fmt.Errorf("%w: chunk_count %d exceeds 2^32", ErrMisalignedUpdate, chunkCount)
	}
	if chunkCounter%chunkCount != 0 {
		return fmt.Errorf("%w: chunk_counter %d is not a multiple of chunk_count %d", ErrMisalignedUpdate, chunkCounter, chunkCount)
	}
	if len(parents)%compress.OutLen != 0 {
		return fmt.Errorf("%w: parents length %d is not a multiple of %d", ErrMisalignedUpdate, len(parents), compress.OutLen)
	}
	n := len(parents) / compress.OutLen
	if n <= 2 {
		return fmt.Errorf("%w: need more than 2 CVs to reduce, got %d", ErrMisalignedUpdate, n)
	}

	cvs := make([][8]uint32, n)
	for i := range cvs {
		cvs[i] = wordsFromBytes(parents[i*compress.OutLen : (i+1)*compress.OutLen])
	}

	mid := n / 2
	left := reducePair(cvs[:mid], key, baseFlags)
	right := reducePair(cvs[mid:], key, baseFlags)

	stack.Push(left, chunkCounter+chunkCount/2)
	stack.Push(right, chunkCounter+chunkCount)

	return nil
}

// reducePair folds a power-of-two-sized run of chunk CVs down to the single CV of their
// subtree root, via repeated pairwise parent compression.
func reducePair(cvs [][8]uint32, key [8]uint32, baseFlags uint32) [8]uint32 {
	for len(cvs) > 1 {
		next := make([][8]uint32, len(cvs)/2)
		for i := range next {
			next[i] = tree.ParentCV(key, baseFlags, cvs[2*i], cvs[2*i+1])
		}
		cvs = next
	}
	return cvs[0]
}

func wordsFromBytes(b []byte) (words [8]uint32) {
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return
}

const chunkLen = 1024

func isBigEndianHost() bool {
	return binary.NativeEndian.Uint16([]byte{0, 1}) == 1
}
