//go:build !cgo

package gpu

// newPlatformDevice reports no device when the module is built without cgo, which is the
// common case: the host driver falls back to CPU hashing transparently.
func newPlatformDevice() (Device, error) {
	return nil, ErrDeviceUnavailable
}
