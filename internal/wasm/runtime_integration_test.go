package wasm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/memory-registry/internal/wasm/wasmtest"
	"github.com/woxQAQ/memory-registry/pkg/protocol"
)

func newTestRuntime(t *testing.T) (*Runtime, *ModuleLoader, *InstanceManager) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { runtime.Close(ctx) })

	return runtime, NewModuleLoader(runtime, logger), NewInstanceManager(runtime, logger)
}

// TestLoadModuleFromMemory tests loading a minimal Wasm module from memory.
func TestLoadModuleFromMemory(t *testing.T) {
	ctx := context.Background()
	_, loader, _ := newTestRuntime(t)

	module, err := loader.LoadModuleFromMemory(ctx, "test-module", wasmtest.Empty)
	if err != nil {
		t.Fatalf("Failed to load module: %v", err)
	}

	if module == nil {
		t.Fatal("Module is nil")
	}

	if module.Name != "test-module" {
		t.Errorf("Module name = %s, want 'test-module'", module.Name)
	}

	if len(module.Digest) != 64 {
		t.Errorf("Digest = %q, want 64 hex characters", module.Digest)
	}

	// Test caching - load again should hit cache.
	module2, err := loader.LoadModuleFromMemory(ctx, "test-module", wasmtest.Empty)
	if err != nil {
		t.Fatalf("Failed to load module from cache: %v", err)
	}

	if module2 != module {
		t.Error("Cache should return the same module instance")
	}
}

// TestModuleLoaderFileSource tests the FileModuleSource.
func TestModuleLoaderFileSource(t *testing.T) {
	ctx := context.Background()
	_, loader, _ := newTestRuntime(t)

	wasmFile := filepath.Join(t.TempDir(), "add.wasm")
	if err := os.WriteFile(wasmFile, wasmtest.AddPing, 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	module, err := loader.LoadModuleFromFile(ctx, wasmFile)
	if err != nil {
		t.Fatalf("Failed to load module from file: %v", err)
	}

	if module.SizeBytes != int64(len(wasmtest.AddPing)) {
		t.Errorf("SizeBytes = %d, want %d", module.SizeBytes, len(wasmtest.AddPing))
	}
	if !module.HasExport(protocol.ExportAdd) || !module.HasExport(protocol.ExportPing) {
		t.Error("compiled module should export add and wasm_test_ping")
	}
}

func TestModuleLoaderMissingFile(t *testing.T) {
	ctx := context.Background()
	_, loader, _ := newTestRuntime(t)

	_, err := loader.LoadModuleFromFile(ctx, filepath.Join(t.TempDir(), "missing.wasm"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestModuleLoaderInvalidBinary(t *testing.T) {
	ctx := context.Background()
	_, loader, _ := newTestRuntime(t)

	_, err := loader.LoadModuleFromMemory(ctx, "garbage", []byte("not wasm"))
	var compileErr *CompilationError
	if !errors.As(err, &compileErr) {
		t.Fatalf("expected CompilationError, got %v", err)
	}
	if compileErr.ModuleName != "garbage" {
		t.Errorf("ModuleName = %s, want garbage", compileErr.ModuleName)
	}
}

func TestInstantiateAndCall(t *testing.T) {
	ctx := context.Background()
	runtime, loader, instances := newTestRuntime(t)

	if _, err := loader.LoadModuleFromMemory(ctx, "add-ping", wasmtest.AddPing); err != nil {
		t.Fatal(err)
	}

	instance, err := instances.Instantiate(ctx, &InstanceConfig{ModuleName: "add-ping"})
	if err != nil {
		t.Fatalf("Failed to instantiate: %v", err)
	}

	if instance.ID == "" {
		t.Error("Instance ID should be generated")
	}
	if runtime.InstanceCount() != 1 {
		t.Errorf("InstanceCount() = %d, want 1", runtime.InstanceCount())
	}

	results, err := instance.Call(ctx, protocol.ExportAdd, api.EncodeI32(40), api.EncodeI32(2))
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if got := api.DecodeI32(results[0]); got != 42 {
		t.Errorf("add(40, 2) = %d, want 42", got)
	}

	results, err = instance.Call(ctx, protocol.ExportPing)
	if err != nil {
		t.Fatalf("ping failed: %v", err)
	}
	if got := api.DecodeU32(results[0]); got != protocol.PingMagic {
		t.Errorf("ping = 0x%X, want 0x%X", got, protocol.PingMagic)
	}

	_, err = instance.Call(ctx, protocol.ExportSubmit)
	var notFound *FunctionNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("expected FunctionNotFoundError, got %v", err)
	}

	if err := instance.Close(ctx); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if runtime.InstanceCount() != 0 {
		t.Errorf("InstanceCount() after close = %d, want 0", runtime.InstanceCount())
	}
}

func TestInstantiateUnknownModule(t *testing.T) {
	ctx := context.Background()
	_, _, instances := newTestRuntime(t)

	_, err := instances.Instantiate(ctx, &InstanceConfig{ModuleName: "nope"})
	var notFound *ModuleNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("expected ModuleNotFoundError, got %v", err)
	}
}

func TestInstancesHaveSeparateState(t *testing.T) {
	ctx := context.Background()
	_, loader, instances := newTestRuntime(t)

	if _, err := loader.LoadModuleFromMemory(ctx, "alloc", wasmtest.Allocator); err != nil {
		t.Fatal(err)
	}

	first, err := instances.Instantiate(ctx, &InstanceConfig{ModuleName: "alloc", InstanceID: "first"})
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close(ctx)

	second, err := instances.Instantiate(ctx, &InstanceConfig{ModuleName: "alloc", InstanceID: "second"})
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close(ctx)

	if _, err := first.Allocate(ctx, 64); err != nil {
		t.Fatal(err)
	}

	ptr, err := second.Allocate(ctx, 8)
	if err != nil {
		t.Fatal(err)
	}
	if ptr != wasmtest.AllocatorBase {
		t.Errorf("second instance allocated at %d, want %d", ptr, wasmtest.AllocatorBase)
	}
}

// TestMemoryHelpers writes through the guest allocator and reads back.
func TestMemoryHelpers(t *testing.T) {
	ctx := context.Background()
	_, loader, instances := newTestRuntime(t)

	if _, err := loader.LoadModuleFromMemory(ctx, "memory-test", wasmtest.Allocator); err != nil {
		t.Fatal(err)
	}

	instance, err := instances.Instantiate(ctx, &InstanceConfig{ModuleName: "memory-test"})
	if err != nil {
		t.Fatalf("Failed to instantiate: %v", err)
	}
	defer instance.Close(ctx)

	mem := instance.Memory()

	ptr, length, err := mem.WriteString(ctx, "bafybeih\x00trailing")
	if err != nil {
		t.Fatalf("WriteString failed: %v", err)
	}
	if ptr != wasmtest.AllocatorBase {
		t.Errorf("ptr = %d, want %d", ptr, wasmtest.AllocatorBase)
	}

	s, ok := mem.ReadString(ptr, length)
	if !ok {
		t.Fatal("ReadString failed")
	}
	if s != "bafybeih" {
		t.Errorf("ReadString = %q, want %q", s, "bafybeih")
	}

	data, ok := mem.ReadBytes(ptr, length)
	if !ok || len(data) != int(length) {
		t.Fatalf("ReadBytes = %d bytes, ok=%v", len(data), ok)
	}

	if err := mem.Free(ctx, ptr, length); err != nil {
		t.Errorf("Free failed: %v", err)
	}

	if _, ok := mem.ReadBytes(0xFFFFFF00, 0x200); ok {
		t.Error("out-of-bounds read should fail")
	}
}

func TestMemoryWithoutLinearMemory(t *testing.T) {
	ctx := context.Background()
	_, loader, instances := newTestRuntime(t)

	if _, err := loader.LoadModuleFromMemory(ctx, "add-ping", wasmtest.AddPing); err != nil {
		t.Fatal(err)
	}

	instance, err := instances.Instantiate(ctx, &InstanceConfig{ModuleName: "add-ping"})
	if err != nil {
		t.Fatal(err)
	}
	defer instance.Close(ctx)

	_, _, err = instance.Memory().WriteString(ctx, "cid")
	var memErr *MemoryAccessError
	if !errors.As(err, &memErr) {
		t.Errorf("expected MemoryAccessError, got %v", err)
	}
}

func TestModuleLoaderUnsupportedImport(t *testing.T) {
	ctx := context.Background()
	runtime, loader, _ := newTestRuntime(t)

	_, err := loader.LoadModuleFromMemory(ctx, "stylus", wasmtest.StylusHooks)
	var importErr *UnsupportedImportError
	if !errors.As(err, &importErr) {
		t.Fatalf("expected UnsupportedImportError, got %v", err)
	}
	if importErr.ImportModule != "vm_hooks" || importErr.ImportName != "flush" {
		t.Errorf("import = %s.%s, want vm_hooks.flush", importErr.ImportModule, importErr.ImportName)
	}
	if _, ok := runtime.GetCompiledModule("stylus"); ok {
		t.Error("rejected module should not be cached")
	}
}

func TestCallTimeoutReleasesInstance(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	runtime, err := NewRuntime(ctx, logger, &RuntimeConfig{
		MemoryPages:      16,
		MaxInstances:     1,
		ExecutionTimeout: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { runtime.Close(ctx) })

	loader := NewModuleLoader(runtime, logger)
	manager := NewInstanceManager(runtime, logger)
	if _, err := loader.LoadModuleFromMemory(ctx, "spin", wasmtest.Spin); err != nil {
		t.Fatalf("LoadModuleFromMemory: %v", err)
	}

	instance, err := manager.Instantiate(ctx, &InstanceConfig{ModuleName: "spin"})
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}

	_, err = instance.Call(ctx, protocol.ExportPing)
	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if n := runtime.InstanceCount(); n != 0 {
		t.Errorf("InstanceCount = %d after timeout, want 0", n)
	}

	// The slot is free again under MaxInstances: 1.
	next, err := manager.Instantiate(ctx, &InstanceConfig{ModuleName: "spin"})
	if err != nil {
		t.Fatalf("Instantiate after timeout: %v", err)
	}
	next.Close(ctx)
}
