package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/woxQAQ/memory-registry/internal/abi"
	"github.com/woxQAQ/memory-registry/internal/guest"
	"github.com/woxQAQ/memory-registry/internal/registry"
	"github.com/woxQAQ/memory-registry/internal/wasm"
	"github.com/woxQAQ/memory-registry/pkg/protocol"
)

var errArenaExhausted = errors.New("local arena exhausted")

// localArity maps each export to its parameter count.
var localArity = map[string]int{
	protocol.ExportVersion:     0,
	protocol.ExportSubmit:      2,
	protocol.ExportCount:       0,
	protocol.ExportReadByIndex: 3,
	protocol.ExportLenByIndex:  1,
	protocol.ExportPing:        0,
	protocol.ExportAllocate:    1,
	protocol.ExportDeallocate:  2,
	protocol.ExportAdd:         2,
}

// Local runs the registry exports in process, over a private flat memory,
// with the same calling convention as a loaded artifact. It is the fallback
// when no usable artifact is available.
type Local struct {
	exports *guest.Exports
	arena   *abi.Arena
	memory  *wasm.Memory
}

// NewLocal creates an in-process guest with its own empty store.
func NewLocal(pages uint32) *Local {
	if pages == 0 {
		pages = 1
	}
	mem := abi.NewFlatMemory(pages)
	l := &Local{
		exports: guest.New(registry.NewStore(), mem),
		arena:   abi.NewArena(mem, abi.WithMaxTotalAllocations(int(mem.Size()))),
	}
	l.memory = wasm.NewMemory(mem, l)
	return l
}

// HasExport reports whether name is part of the local export surface.
func (l *Local) HasExport(name string) bool {
	_, ok := localArity[name]
	return ok
}

// Call dispatches to the export named name.
func (l *Local) Call(_ context.Context, name string, params ...uint64) ([]uint64, error) {
	want, ok := localArity[name]
	if !ok {
		return nil, &wasm.FunctionNotFoundError{ModuleName: "local", FunctionName: name}
	}
	if len(params) != want {
		return nil, &wasm.CallError{
			InstanceID:   "local",
			FunctionName: name,
			Err:          fmt.Errorf("expected %d params, got %d", want, len(params)),
		}
	}

	u32 := func(i int) uint32 { return api.DecodeU32(params[i]) }

	switch name {
	case protocol.ExportVersion:
		return []uint64{api.EncodeU32(l.exports.Version())}, nil
	case protocol.ExportSubmit:
		return []uint64{api.EncodeI32(l.exports.SubmitMemory(u32(0), u32(1)))}, nil
	case protocol.ExportCount:
		return []uint64{api.EncodeU32(l.exports.MemoryCount())}, nil
	case protocol.ExportReadByIndex:
		return []uint64{api.EncodeI32(l.exports.MemoryByIndex(u32(0), u32(1), u32(2)))}, nil
	case protocol.ExportLenByIndex:
		return []uint64{api.EncodeI32(l.exports.MemoryLen(u32(0)))}, nil
	case protocol.ExportPing:
		return []uint64{api.EncodeU32(l.exports.Ping())}, nil
	case protocol.ExportAllocate:
		return []uint64{api.EncodeU32(l.arena.Allocate(u32(0)))}, nil
	case protocol.ExportDeallocate:
		l.arena.Free(u32(0))
		return nil, nil
	default: // protocol.ExportAdd
		return []uint64{api.EncodeI32(guest.Add(api.DecodeI32(params[0]), api.DecodeI32(params[1])))}, nil
	}
}

// Memory returns the memory helper over the local flat memory.
func (l *Local) Memory() *wasm.Memory {
	return l.memory
}

// Allocate implements wasm.Allocator.
func (l *Local) Allocate(_ context.Context, size uint32) (uint32, error) {
	ptr := l.arena.Allocate(size)
	if ptr == 0 {
		return 0, &wasm.MemoryAccessError{Operation: protocol.ExportAllocate, Length: size, Err: errArenaExhausted}
	}
	return ptr, nil
}

// Free implements wasm.Allocator.
func (l *Local) Free(_ context.Context, ptr, _ uint32) error {
	l.arena.Free(ptr)
	return nil
}
