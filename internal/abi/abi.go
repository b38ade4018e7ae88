// Package abi provides bounds-checked access to caller-owned regions of a
// wasm linear memory.
//
// A region is described by a pointer and a length, both uint32 offsets into
// the memory shared between a guest module and its host. The memory itself is
// owned by the caller; a View never outlives the call that created it.
package abi

import (
	"errors"
	"fmt"
)

var (
	// ErrNullRegion is returned for a null pointer or a zero length.
	ErrNullRegion = errors.New("abi: null or empty region")

	// ErrOutOfBounds is returned when a region extends past the end of memory.
	ErrOutOfBounds = errors.New("abi: region out of bounds")

	// ErrRegionTooSmall is returned when data does not fit a region.
	ErrRegionTooSmall = errors.New("abi: region too small")
)

// Memory is a wasm linear memory.
//
// Read returns a window aliasing the memory: writes through the slice are
// visible to the guest. wazero's api.Memory satisfies this interface.
type Memory interface {
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, v []byte) bool
}

// Region is a pointer/length pair.
type Region struct {
	Ptr uint32
	Len uint32
}

func (r Region) String() string {
	return fmt.Sprintf("[0x%x+%d]", r.Ptr, r.Len)
}

// Validate reports whether the region may be used at all.
func (r Region) Validate() error {
	if r.Ptr == 0 || r.Len == 0 {
		return ErrNullRegion
	}
	return nil
}

// View is a validated region of a Memory.
type View struct {
	region Region
	window []byte
}

// NewView validates ptr/length against mem and returns a view over it.
func NewView(mem Memory, ptr, length uint32) (View, error) {
	region := Region{Ptr: ptr, Len: length}
	if err := region.Validate(); err != nil {
		return View{}, err
	}

	window, ok := mem.Read(ptr, length)
	if !ok {
		return View{}, fmt.Errorf("%w: %s", ErrOutOfBounds, region)
	}

	return View{region: region, window: window}, nil
}

// Region returns the pointer/length pair the view covers.
func (v View) Region() Region {
	return v.region
}

// Bytes returns the window into memory. The slice must not be retained.
func (v View) Bytes() []byte {
	return v.window
}

// Copy returns an owned copy of the region's contents.
func (v View) Copy() []byte {
	out := make([]byte, len(v.window))
	copy(out, v.window)
	return out
}

// Put writes data at the start of the region. Nothing is written when data
// is longer than the region.
func (v View) Put(data []byte) (int, error) {
	if len(data) > len(v.window) {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrRegionTooSmall, len(data), len(v.window))
	}
	return copy(v.window, data), nil
}
