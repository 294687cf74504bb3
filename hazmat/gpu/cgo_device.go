//go:build cgo

package gpu

/*
#cgo LDFLAGS: -lb3compute

#include <stdlib.h>

// b3compute_available reports whether a usable Vulkan or Metal compute device was found
// at process start. b3compute_submit enqueues one compute-shader dispatch and returns an
// opaque fence handle (0 on failure); b3compute_wait blocks on a fence and copies its
// output buffer into out, returning the number of bytes written (negative on device loss).
// These symbols are provided by a native compute backend outside this module; a host
// without one linked simply never selects the cgo build tag's import path in practice.
extern int b3compute_available(void);
extern unsigned long b3compute_submit(const void *control, unsigned long control_len, const void *input, unsigned long input_len);
extern long b3compute_wait(unsigned long fence, void *out, unsigned long out_len);
extern void b3compute_close(void);
*/
import "C"

import (
	"sync"
	"unsafe"
)

var (
	availableOnce sync.Once
	available     bool
)

func checkAvailable() bool {
	availableOnce.Do(func() {
		available = C.b3compute_available() != 0
	})
	return available
}

type cgoFence C.ulong

type cgoDevice struct {
	outBufSize int
}

func newPlatformDevice() (Device, error) {
	if !checkAvailable() {
		return nil, ErrDeviceUnavailable
	}
	return &cgoDevice{outBufSize: 32 << 20}, nil
}

func (d *cgoDevice) Submit(control ControlUniform, input []byte) (Fence, error) {
	cb := control.Bytes()
	fence := C.b3compute_submit(
		unsafe.Pointer(&cb[0]), C.ulong(len(cb)),
		unsafe.Pointer(&input[0]), C.ulong(len(input)),
	)
	if fence == 0 {
		return nil, ErrDeviceUnavailable
	}
	return cgoFence(fence), nil
}

func (d *cgoDevice) Wait(fence Fence) ([]byte, error) {
	f, ok := fence.(cgoFence)
	if !ok {
		return nil, ErrDeviceUnavailable
	}

	out := make([]byte, d.outBufSize)
	n := C.b3compute_wait(C.ulong(f), unsafe.Pointer(&out[0]), C.ulong(len(out)))
	if n < 0 {
		return nil, ErrDeviceUnavailable
	}
	return out[:n], nil
}

func (d *cgoDevice) Close() error {
	C.b3compute_close()
	return nil
}
