// Package wasmtest holds hand-assembled Wasm binaries for tests that need a
// real module without a wasip1 toolchain.
package wasmtest

// Empty is a valid Wasm 1.0 module with no sections.
var Empty = []byte{
	0x00, 0x61, 0x73, 0x6d, // Magic number: \0asm
	0x01, 0x00, 0x00, 0x00, // Version: 1
}

// AddPing exports add(i32, i32) i32 and wasm_test_ping() i32 returning
// 0xF00DBABE. It has no memory.
var AddPing = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// Type section: (i32, i32) -> i32, () -> i32
	0x01, 0x0b, 0x02,
	0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
	0x60, 0x00, 0x01, 0x7f,
	// Function section
	0x03, 0x03, 0x02, 0x00, 0x01,
	// Export section: "add" func 0, "wasm_test_ping" func 1
	0x07, 0x18, 0x02,
	0x03, 'a', 'd', 'd', 0x00, 0x00,
	0x0e, 'w', 'a', 's', 'm', '_', 't', 'e', 's', 't', '_', 'p', 'i', 'n', 'g', 0x00, 0x01,
	// Code section
	0x0a, 0x12, 0x02,
	0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b, // local.get 0, local.get 1, i32.add
	0x08, 0x00, 0x41, 0xbe, 0xf5, 0xb6, 0x80, 0x7f, 0x0b, // i32.const 0xF00DBABE
}

// BadPing is AddPing with wasm_test_ping returning 1.
var BadPing = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x0b, 0x02,
	0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
	0x60, 0x00, 0x01, 0x7f,
	0x03, 0x03, 0x02, 0x00, 0x01,
	0x07, 0x18, 0x02,
	0x03, 'a', 'd', 'd', 0x00, 0x00,
	0x0e, 'w', 'a', 's', 'm', '_', 't', 'e', 's', 't', '_', 'p', 'i', 'n', 'g', 0x00, 0x01,
	0x0a, 0x0e, 0x02,
	0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b,
	0x04, 0x00, 0x41, 0x01, 0x0b, // i32.const 1
}

// Allocator is AddPing plus one page of exported memory, a bump
// allocate(size) i32 starting at offset 1024 and a no-op deallocate.
var Allocator = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// Type section
	0x01, 0x15, 0x04,
	0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f, // (i32, i32) -> i32
	0x60, 0x00, 0x01, 0x7f, // () -> i32
	0x60, 0x01, 0x7f, 0x01, 0x7f, // (i32) -> i32
	0x60, 0x02, 0x7f, 0x7f, 0x00, // (i32, i32) -> ()
	// Function section
	0x03, 0x05, 0x04, 0x00, 0x01, 0x02, 0x03,
	// Memory section: 1 page, no max
	0x05, 0x03, 0x01, 0x00, 0x01,
	// Global section: mutable i32 = 1024
	0x06, 0x07, 0x01, 0x7f, 0x01, 0x41, 0x80, 0x08, 0x0b,
	// Export section
	0x07, 0x39, 0x05,
	0x03, 'a', 'd', 'd', 0x00, 0x00,
	0x0e, 'w', 'a', 's', 'm', '_', 't', 'e', 's', 't', '_', 'p', 'i', 'n', 'g', 0x00, 0x01,
	0x08, 'a', 'l', 'l', 'o', 'c', 'a', 't', 'e', 0x00, 0x02,
	0x0a, 'd', 'e', 'a', 'l', 'l', 'o', 'c', 'a', 't', 'e', 0x00, 0x03,
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
	// Code section
	0x0a, 0x21, 0x04,
	0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b,
	0x08, 0x00, 0x41, 0xbe, 0xf5, 0xb6, 0x80, 0x7f, 0x0b,
	0x0b, 0x00, 0x23, 0x00, 0x23, 0x00, 0x20, 0x00, 0x6a, 0x24, 0x00, 0x0b, // return g; g += size
	0x02, 0x00, 0x0b,
}

// AllocatorBase is the first pointer Allocator hands out.
const AllocatorBase = 1024

// StylusHooks imports vm_hooks.flush, a host module the runtime does not
// provide. It compiles but cannot be instantiated.
var StylusHooks = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// Type section: () -> ()
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
	// Import section: "vm_hooks" "flush" func type 0
	0x02, 0x12, 0x01,
	0x08, 'v', 'm', '_', 'h', 'o', 'o', 'k', 's',
	0x05, 'f', 'l', 'u', 's', 'h',
	0x00, 0x00,
}

// Spin exports wasm_test_ping as a function that never returns.
var Spin = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// Type section: () -> i32
	0x01, 0x05, 0x01, 0x60, 0x00, 0x01, 0x7f,
	// Function section
	0x03, 0x02, 0x01, 0x00,
	// Export section: "wasm_test_ping" func 0
	0x07, 0x12, 0x01,
	0x0e, 'w', 'a', 's', 'm', '_', 't', 'e', 's', 't', '_', 'p', 'i', 'n', 'g',
	0x00, 0x00,
	// Code section: loop br 0 end; i32.const 0
	0x0a, 0x0b, 0x01,
	0x09, 0x00, 0x03, 0x40, 0x0c, 0x00, 0x0b, 0x41, 0x00, 0x0b,
}
