// Package mem provides small byte-slice helpers for the module's packages.
package mem

// SliceForAppend takes a slice and a requested number of bytes. It returns a slice with the contents of the given
// slice followed by that many bytes and a second slice that aliases the appended bytes.
func SliceForAppend(in []byte, n int) (head, tail []byte) {
	if total := len(in) + n; cap(in) >= total {
		head = in[:total]
	} else {
		head = make([]byte, total)
		copy(head, in)
	}
	tail = head[len(in):]
	return
}
