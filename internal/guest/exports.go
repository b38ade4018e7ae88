// Package guest implements the memory-registry export surface against an
// abi.Memory, independent of how the module is hosted.
//
// The wasip1 command wires these methods to //go:wasmexport functions; the
// in-process fallback calls them directly over an abi.FlatMemory.
package guest

import (
	"github.com/woxQAQ/memory-registry/internal/abi"
	"github.com/woxQAQ/memory-registry/internal/registry"
	"github.com/woxQAQ/memory-registry/pkg/protocol"
)

// Exports owns one registry store and the memory its callers exchange
// bytes through. No method panics; failures are negative return codes.
type Exports struct {
	store *registry.Store
	mem   abi.Memory
}

// New binds a store to a memory.
func New(store *registry.Store, mem abi.Memory) *Exports {
	return &Exports{store: store, mem: mem}
}

// Version implements memory_registry_version.
func (e *Exports) Version() uint32 {
	return protocol.InterfaceVersion
}

// SubmitMemory implements submit_memory.
func (e *Exports) SubmitMemory(ptr, length uint32) int32 {
	view, err := abi.NewView(e.mem, ptr, length)
	if err != nil {
		return protocol.SubmitInvalidArgument
	}
	return registry.SubmitCode(e.store.Submit(view.Bytes()))
}

// MemoryCount implements get_memory_count.
func (e *Exports) MemoryCount() uint32 {
	return e.store.Count()
}

// MemoryByIndex implements get_memory_by_index.
func (e *Exports) MemoryByIndex(index, outPtr, outMaxLen uint32) int32 {
	view, err := abi.NewView(e.mem, outPtr, outMaxLen)
	if err != nil {
		return protocol.ReadInvalidArgument
	}
	return registry.ReadCode(e.store.Read(index, view.Bytes()))
}

// MemoryLen implements get_memory_len.
func (e *Exports) MemoryLen(index uint32) int32 {
	return registry.ReadCode(e.store.Len(index))
}

// Ping implements wasm_test_ping.
func (e *Exports) Ping() uint32 {
	return protocol.PingMagic
}

// Add implements the stateless add demo. Overflow wraps like i32.add.
func Add(a, b int32) int32 {
	return a + b
}
