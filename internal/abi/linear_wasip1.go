//go:build wasip1

package abi

import "unsafe"

// MaxTotalAllocations is the most memory Allocate pins at any one time.
const MaxTotalAllocations = 100 * 1024 * 1024 // 100 MB

var pinned = newPinTable(MaxTotalAllocations)

// LinearMemory is the guest's own linear memory as seen through the buffers
// Allocate has handed to the host. Regions outside a live allocation are
// rejected rather than dereferenced, so a bad pointer from the host yields
// an error code instead of a trap.
type LinearMemory struct{}

// Read returns a window of byteCount bytes at offset.
func (LinearMemory) Read(offset, byteCount uint32) ([]byte, bool) {
	if offset == 0 {
		return nil, false
	}
	return pinned.window(offset, byteCount)
}

// Write copies v into memory at offset.
func (m LinearMemory) Write(offset uint32, v []byte) bool {
	dst, ok := m.Read(offset, uint32(len(v)))
	if !ok {
		return false
	}
	copy(dst, v)
	return true
}

// Allocate reserves size bytes of guest memory for the host and returns the
// offset, or 0 when size is zero or the limit would be exceeded.
func Allocate(size uint32) uint32 {
	if size == 0 || !pinned.fits(size) {
		return 0
	}

	buf := make([]byte, size)
	//nolint:gosec // G103: offsets into wasm linear memory
	ptr := uint32(uintptr(unsafe.Pointer(&buf[0])))
	if !pinned.add(ptr, buf) {
		return 0
	}
	return ptr
}

// Deallocate releases a buffer returned by Allocate. Unknown pointers are
// ignored; the stored length is used for accounting, not size.
func Deallocate(ptr uint32, _ uint32) {
	pinned.remove(ptr)
}
