package client

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/woxQAQ/memory-registry/internal/wasm"
	"github.com/woxQAQ/memory-registry/pkg/protocol"
)

// Adder calls the stateless add export.
type Adder struct {
	guest Guest
}

// NewAdder wraps a guest exporting add.
func NewAdder(guest Guest) *Adder {
	return &Adder{guest: guest}
}

// Add returns a + b with 32-bit wrapping.
func (a *Adder) Add(ctx context.Context, x, y int32) (int32, error) {
	if !a.guest.HasExport(protocol.ExportAdd) {
		return 0, &wasm.FunctionNotFoundError{ModuleName: "adder", FunctionName: protocol.ExportAdd}
	}
	results, err := a.guest.Call(ctx, protocol.ExportAdd, api.EncodeI32(x), api.EncodeI32(y))
	if err != nil {
		return 0, err
	}
	if len(results) != 1 {
		return 0, &wasm.CallError{FunctionName: protocol.ExportAdd, Err: errResultCount}
	}
	return api.DecodeI32(results[0]), nil
}
