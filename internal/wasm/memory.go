package wasm

import (
	"context"
	"errors"

	"github.com/woxQAQ/memory-registry/internal/abi"
)

var errNoMemory = errors.New("module has no linear memory")

// Allocator reserves and releases regions of guest memory.
type Allocator interface {
	Allocate(ctx context.Context, size uint32) (uint32, error)
	Free(ctx context.Context, ptr, size uint32) error
}

// Memory provides safe memory operations for Wasm module interaction.
//
// Guest memory is owned by the guest's allocator: the host asks the guest for
// a region, writes into it, passes the pointer/length pair to an export, and
// frees the region when the call returns.
type Memory struct {
	mem   abi.Memory
	alloc Allocator
}

// NewMemory creates a memory helper. mem may be nil for modules without
// linear memory; every operation then fails.
func NewMemory(mem abi.Memory, alloc Allocator) *Memory {
	return &Memory{mem: mem, alloc: alloc}
}

// ReadString reads a null-terminated string from Wasm memory.
func (m *Memory) ReadString(ptr uint32, maxLen uint32) (string, bool) {
	buf, ok := m.ReadBytes(ptr, maxLen)
	if !ok {
		return "", false
	}

	end := len(buf)
	for i, b := range buf {
		if b == 0 {
			end = i
			break
		}
	}

	return string(buf[:end]), true
}

// ReadBytes copies length bytes out of Wasm memory.
func (m *Memory) ReadBytes(ptr uint32, length uint32) ([]byte, bool) {
	if m.mem == nil {
		return nil, false
	}
	buf, ok := m.mem.Read(ptr, length)
	if !ok {
		return nil, false
	}
	return append([]byte(nil), buf...), true
}

// Alloc reserves size bytes of guest memory, e.g. for an output buffer.
func (m *Memory) Alloc(ctx context.Context, size uint32) (uint32, error) {
	if m.mem == nil {
		return 0, &MemoryAccessError{Operation: "alloc", Length: size, Err: errNoMemory}
	}
	return m.alloc.Allocate(ctx, size)
}

// WriteBytes copies data into freshly allocated guest memory and returns
// its pointer and length. The caller frees it with Free.
func (m *Memory) WriteBytes(ctx context.Context, data []byte) (uint32, uint32, error) {
	if len(data) == 0 {
		return 0, 0, nil
	}

	length := uint32(len(data))
	ptr, err := m.Alloc(ctx, length)
	if err != nil {
		return 0, 0, err
	}

	if !m.mem.Write(ptr, data) {
		_ = m.alloc.Free(ctx, ptr, length)
		return 0, 0, &MemoryAccessError{Operation: "write", Address: ptr, Length: length, Err: abi.ErrOutOfBounds}
	}
	return ptr, length, nil
}

// WriteString writes a string to Wasm memory.
func (m *Memory) WriteString(ctx context.Context, s string) (uint32, uint32, error) {
	return m.WriteBytes(ctx, []byte(s))
}

// Free releases a region obtained from Alloc or WriteBytes. Null regions
// are ignored.
func (m *Memory) Free(ctx context.Context, ptr, length uint32) error {
	if ptr == 0 {
		return nil
	}
	return m.alloc.Free(ctx, ptr, length)
}
