//go:build wasip1

// Command memory-registry is the registry wasm artifact.
//
// Build with:
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o memory-registry.wasm ./cmd/memory-registry
//
// The store is held in this instance's memory only and is lost when the
// module is reloaded. A real deployment must keep it in host storage.
package main

import (
	"github.com/woxQAQ/memory-registry/internal/abi"
	"github.com/woxQAQ/memory-registry/internal/guest"
	"github.com/woxQAQ/memory-registry/internal/registry"
)

var exports = guest.New(registry.NewStore(), abi.LinearMemory{})

//go:wasmexport memory_registry_version
func memoryRegistryVersion() uint32 {
	return exports.Version()
}

//go:wasmexport submit_memory
func submitMemory(cidPtr, cidLen uint32) int32 {
	return exports.SubmitMemory(cidPtr, cidLen)
}

//go:wasmexport get_memory_count
func getMemoryCount() uint32 {
	return exports.MemoryCount()
}

//go:wasmexport get_memory_by_index
func getMemoryByIndex(index, outPtr, outMaxLen uint32) int32 {
	return exports.MemoryByIndex(index, outPtr, outMaxLen)
}

//go:wasmexport get_memory_len
func getMemoryLen(index uint32) int32 {
	return exports.MemoryLen(index)
}

//go:wasmexport wasm_test_ping
func wasmTestPing() uint32 {
	return exports.Ping()
}

// allocate and deallocate let the host place call arguments in guest memory.

//go:wasmexport allocate
func allocate(size uint32) uint32 {
	return abi.Allocate(size)
}

//go:wasmexport deallocate
func deallocate(ptr, size uint32) {
	abi.Deallocate(ptr, size)
}

func main() {}
