//go:build wasip1

// Command stylus-add is a minimal wasm artifact used to check the build
// pipeline: it exports a single add function and holds no state.
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o stylus-add.wasm ./cmd/stylus-add
package main

import "github.com/woxQAQ/memory-registry/internal/guest"

//go:wasmexport add
func add(a, b int32) int32 {
	return guest.Add(a, b)
}

func main() {}
