package abi

import (
	"cmp"
	"slices"
	"sync"
)

// PageSize is the size of a wasm memory page: 64KiB.
const PageSize = 64 * 1024

// DefaultMaxTotalAllocations bounds the memory an Arena hands out.
const DefaultMaxTotalAllocations = 16 * 1024 * 1024 // 16 MB

// FlatMemory is a fixed-size, bounds-checked Memory backed by a byte slice.
type FlatMemory struct {
	buf []byte
}

// NewFlatMemory creates a zeroed memory of the given number of pages.
func NewFlatMemory(pages uint32) *FlatMemory {
	return &FlatMemory{buf: make([]byte, int(pages)*PageSize)}
}

// Size returns the memory size in bytes.
func (m *FlatMemory) Size() uint32 {
	return uint32(len(m.buf))
}

// Read returns a window of byteCount bytes at offset.
func (m *FlatMemory) Read(offset, byteCount uint32) ([]byte, bool) {
	if !m.inBounds(offset, byteCount) {
		return nil, false
	}
	return m.buf[offset : offset+byteCount : offset+byteCount], true
}

// Write copies v into memory at offset.
func (m *FlatMemory) Write(offset uint32, v []byte) bool {
	if !m.inBounds(offset, uint32(len(v))) {
		return false
	}
	copy(m.buf[offset:], v)
	return true
}

func (m *FlatMemory) inBounds(offset, byteCount uint32) bool {
	return uint64(offset)+uint64(byteCount) <= uint64(len(m.buf))
}

// Arena hands out regions of a FlatMemory the way a guest's allocate and
// deallocate exports do. Offset 0 is never handed out so that a zero pointer
// always means "no allocation".
type Arena struct {
	mu sync.Mutex

	mem      *FlatMemory
	next     uint32
	free     []span            // released blocks, sorted by ptr
	live     map[uint32]uint32 // ptr -> block size
	total    int
	maxTotal int
}

// ArenaOption configures an Arena.
type ArenaOption func(*Arena)

// WithMaxTotalAllocations bounds the bytes live at any one time.
// Non-positive values are ignored.
func WithMaxTotalAllocations(limit int) ArenaOption {
	return func(a *Arena) {
		if limit > 0 {
			a.maxTotal = limit
		}
	}
}

// NewArena creates an allocator over mem.
func NewArena(mem *FlatMemory, opts ...ArenaOption) *Arena {
	a := &Arena{
		mem:      mem,
		next:     alignment,
		live:     make(map[uint32]uint32),
		maxTotal: DefaultMaxTotalAllocations,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

const alignment = 8

// Allocate reserves size bytes and returns their offset, or 0 when size is
// zero or the arena is exhausted.
func (a *Arena) Allocate(size uint32) uint32 {
	if size == 0 || size > a.mem.Size() {
		return 0
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	block := align(size)
	if a.total+int(block) > a.maxTotal {
		return 0
	}

	// First fit among released blocks, lowest address first.
	for i, free := range a.free {
		if free.size >= block {
			a.free = slices.Delete(a.free, i, i+1)
			a.live[free.ptr] = free.size
			a.total += int(free.size)
			clear(a.mem.buf[free.ptr : free.ptr+free.size])
			return free.ptr
		}
	}

	if uint64(a.next)+uint64(block) > uint64(a.mem.Size()) {
		return 0
	}

	ptr := a.next
	a.next += block
	a.live[ptr] = block
	a.total += int(block)
	return ptr
}

// Free releases the block at ptr. Unknown pointers are ignored.
func (a *Arena) Free(ptr uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	block, ok := a.live[ptr]
	if !ok {
		return
	}
	delete(a.live, ptr)
	i, _ := slices.BinarySearchFunc(a.free, ptr, func(s span, ptr uint32) int {
		return cmp.Compare(s.ptr, ptr)
	})
	a.free = slices.Insert(a.free, i, span{ptr: ptr, size: block})
	a.total -= int(block)
}

// span is a released block.
type span struct {
	ptr  uint32
	size uint32
}

// Stats returns the number of live allocations and their total size.
func (a *Arena) Stats() (count int, totalBytes int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.live), a.total
}

func align(size uint32) uint32 {
	return (size + alignment - 1) &^ (alignment - 1)
}
