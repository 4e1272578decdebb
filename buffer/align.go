package buffer

import "unsafe"

// uintptrOf returns the address of b's backing array, used by
// AlignedPolicy to compute the padding needed to reach an aligned
// offset. Mirrors internal/bitm's direct use of unsafe.Sizeof for
// low-level layout arithmetic.
func uintptrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
