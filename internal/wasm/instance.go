package wasm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/woxQAQ/memory-registry/internal/abi"
	"github.com/woxQAQ/memory-registry/pkg/protocol"
)

var errAllocationFailed = errors.New("guest allocate returned null")

// InstanceManager creates and manages module instances.
type InstanceManager struct {
	runtime *Runtime
	logger  *zap.Logger
}

// NewInstanceManager creates a new instance manager.
func NewInstanceManager(runtime *Runtime, logger *zap.Logger) *InstanceManager {
	return &InstanceManager{
		runtime: runtime,
		logger:  logger.With(zap.String("component", "wasm-instance")),
	}
}

// InstanceConfig holds configuration for creating instances.
type InstanceConfig struct {
	// Module name to instantiate.
	ModuleName string

	// Instance ID (if empty, generates UUID).
	InstanceID string
}

// Instance represents an instantiated Wasm module.
// Each instance has its own linear memory, so guest state such as the
// registry store is per instance.
type Instance struct {
	// wazero module instance.
	module  api.Module
	runtime *Runtime

	// Instance metadata.
	ID        string
	Name      string
	CreatedAt int64

	// Exported functions (cached for performance).
	exports map[string]api.Function

	timeout time.Duration
	memory  *Memory
	stdout  *GuestOutput
	stderr  *GuestOutput
}

// Instantiate creates a new instance from a compiled module.
func (m *InstanceManager) Instantiate(ctx context.Context, config *InstanceConfig) (*Instance, error) {
	if m.runtime.IsClosed() {
		return nil, fmt.Errorf("wasm runtime is closed")
	}

	compiled, ok := m.runtime.GetCompiledModule(config.ModuleName)
	if !ok {
		return nil, &ModuleNotFoundError{ModuleName: config.ModuleName}
	}

	instanceID := config.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	m.logger.Info("Instantiating Wasm module",
		zap.String("module", config.ModuleName),
		zap.String("instance_id", instanceID),
	)

	stdout := NewGuestOutput(m.logger, "stdout", zapcore.InfoLevel)
	stderr := NewGuestOutput(m.logger, "stderr", zapcore.WarnLevel)

	// Reactor modules (go build -buildmode=c-shared) export _initialize
	// instead of _start; missing start functions are skipped.
	moduleConfig := wazero.NewModuleConfig().
		WithName(instanceID).
		WithStartFunctions(protocol.ExportInitialize).
		WithStdout(stdout).
		WithStderr(stderr).
		WithSysWalltime().
		WithSysNanotime()

	module, err := m.runtime.runtime.InstantiateModule(ctx, compiled.Module, moduleConfig)
	if err != nil {
		stderr.Flush()
		return nil, &InstantiationError{
			ModuleName: config.ModuleName,
			InstanceID: instanceID,
			Err:        err,
		}
	}

	if err := m.runtime.StoreInstance(instanceID, module); err != nil {
		_ = module.Close(ctx)
		return nil, err
	}

	instance := &Instance{
		module:    module,
		runtime:   m.runtime,
		ID:        instanceID,
		Name:      config.ModuleName,
		CreatedAt: time.Now().Unix(),
		exports:   cacheExportedFunctions(module),
		timeout:   m.runtime.config.ExecutionTimeout,
		stdout:    stdout,
		stderr:    stderr,
	}
	// Hosts only touch exported memory; modules without one get a helper
	// whose operations fail.
	var mem abi.Memory
	if len(compiled.Module.ExportedMemories()) > 0 {
		mem = module.Memory()
	}
	instance.memory = NewMemory(mem, instance)

	m.logger.Info("Module instantiated successfully",
		zap.String("instance_id", instanceID),
		zap.Int("exported_functions", len(instance.exports)),
	)

	return instance, nil
}

// cacheExportedFunctions caches references to the exports hosts look up.
func cacheExportedFunctions(module api.Module) map[string]api.Function {
	exports := make(map[string]api.Function)

	for _, name := range protocol.KnownExports {
		if fn := module.ExportedFunction(name); fn != nil {
			exports[name] = fn
		}
	}

	return exports
}

// HasExport reports whether the instance exports a known function.
func (i *Instance) HasExport(name string) bool {
	_, ok := i.exports[name]
	return ok
}

// Call invokes an exported function, bounded by the runtime's execution
// timeout. A call that times out closes the instance.
func (i *Instance) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	fn, ok := i.exports[name]
	if !ok {
		return nil, &FunctionNotFoundError{ModuleName: i.Name, FunctionName: name}
	}

	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	results, err := fn.Call(ctx, params...)
	if err != nil {
		i.stderr.Flush()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			// wazero has already closed the module; stop counting it.
			i.runtime.DeleteInstance(i.ID)
			return nil, &TimeoutError{FunctionName: name, Duration: i.timeout}
		}
		return nil, &CallError{InstanceID: i.ID, FunctionName: name, Err: err}
	}
	return results, nil
}

// Memory returns the memory helper for this instance.
func (i *Instance) Memory() *Memory {
	return i.memory
}

// Allocate reserves size bytes in guest memory through the guest's
// allocate export.
func (i *Instance) Allocate(ctx context.Context, size uint32) (uint32, error) {
	results, err := i.Call(ctx, protocol.ExportAllocate, api.EncodeU32(size))
	if err != nil {
		return 0, err
	}
	if len(results) != 1 {
		return 0, &CallError{
			InstanceID:   i.ID,
			FunctionName: protocol.ExportAllocate,
			Err:          fmt.Errorf("expected 1 result, got %d", len(results)),
		}
	}

	ptr := api.DecodeU32(results[0])
	if ptr == 0 {
		return 0, &MemoryAccessError{Operation: protocol.ExportAllocate, Length: size, Err: errAllocationFailed}
	}
	return ptr, nil
}

// Free releases guest memory obtained from Allocate.
func (i *Instance) Free(ctx context.Context, ptr, size uint32) error {
	_, err := i.Call(ctx, protocol.ExportDeallocate, api.EncodeU32(ptr), api.EncodeU32(size))
	return err
}

// Close closes the instance and releases resources.
func (i *Instance) Close(ctx context.Context) error {
	i.stdout.Flush()
	i.stderr.Flush()
	i.runtime.DeleteInstance(i.ID)
	return i.module.Close(ctx)
}
