// Package client provides typed host bindings for the memory-registry and
// add artifacts.
package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/woxQAQ/memory-registry/internal/registry"
	"github.com/woxQAQ/memory-registry/internal/wasm"
	"github.com/woxQAQ/memory-registry/pkg/protocol"
)

// ErrLenUnsupported is returned by Len when the guest predates get_memory_len.
var ErrLenUnsupported = errors.New("client: guest does not export get_memory_len")

// Guest is a callable module: a *wasm.Instance or a *Local.
type Guest interface {
	HasExport(name string) bool
	Call(ctx context.Context, name string, params ...uint64) ([]uint64, error)
	Memory() *wasm.Memory
}

// Options tunes the registry client.
type Options struct {
	// First buffer size tried by Get when the guest has no length query.
	InitialReadBuffer uint32

	// Largest buffer Get will grow to before giving up.
	MaxReadBuffer uint32

	// Use the in-process registry when the artifact cannot be used.
	Fallback bool

	// Pages of memory for the in-process registry.
	LocalMemoryPages uint32
}

// DefaultOptions returns sensible defaults. A CIDv1 in base32 is 59 bytes.
func DefaultOptions() Options {
	return Options{
		InitialReadBuffer: 64,
		MaxReadBuffer:     64 * 1024,
		Fallback:          false,
		LocalMemoryPages:  16,
	}
}

// VerifyError reports why a guest failed verification.
type VerifyError struct {
	Reason string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("registry verification failed: %s", e.Reason)
}

// Registry drives a memory-registry guest through its exports.
type Registry struct {
	guest  Guest
	opts   Options
	logger *zap.Logger
}

// NewRegistry wraps a guest. Zero-valued buffer options take defaults.
func NewRegistry(guest Guest, logger *zap.Logger, opts Options) *Registry {
	defaults := DefaultOptions()
	if opts.InitialReadBuffer == 0 {
		opts.InitialReadBuffer = defaults.InitialReadBuffer
	}
	if opts.MaxReadBuffer < opts.InitialReadBuffer {
		opts.MaxReadBuffer = max(defaults.MaxReadBuffer, opts.InitialReadBuffer)
	}
	return &Registry{
		guest:  guest,
		opts:   opts,
		logger: logger.With(zap.String("component", "registry-client")),
	}
}

// Guest returns the underlying guest.
func (r *Registry) Guest() Guest {
	return r.guest
}

// Version returns the guest's interface version.
func (r *Registry) Version(ctx context.Context) (uint32, error) {
	res, err := r.call1(ctx, protocol.ExportVersion)
	return api.DecodeU32(res), err
}

// Ping returns the guest's smoke-test value.
func (r *Registry) Ping(ctx context.Context) (uint32, error) {
	res, err := r.call1(ctx, protocol.ExportPing)
	return api.DecodeU32(res), err
}

// Verify checks the guest exports the registry surface, answers the ping
// with the expected magic and speaks a compatible interface version.
func (r *Registry) Verify(ctx context.Context) error {
	var missing []string
	for _, name := range protocol.RegistryExports {
		if !r.guest.HasExport(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &VerifyError{Reason: fmt.Sprintf("missing exports %v", missing)}
	}

	ping, err := r.Ping(ctx)
	if err != nil {
		return err
	}
	if ping != protocol.PingMagic {
		return &VerifyError{Reason: fmt.Sprintf("wasm_test_ping returned 0x%X, want 0x%X", ping, protocol.PingMagic)}
	}

	version, err := r.Version(ctx)
	if err != nil {
		return err
	}
	if version != protocol.InterfaceVersion {
		return &VerifyError{Reason: fmt.Sprintf("interface version %d, want %d", version, protocol.InterfaceVersion)}
	}
	return nil
}

// Submit stores cid and returns its index.
func (r *Registry) Submit(ctx context.Context, cid string) (uint32, error) {
	mem := r.guest.Memory()

	ptr, length, err := mem.WriteString(ctx, cid)
	if err != nil {
		return 0, err
	}
	defer r.free(ctx, ptr, length)

	res, err := r.call1(ctx, protocol.ExportSubmit, api.EncodeU32(ptr), api.EncodeU32(length))
	if err != nil {
		return 0, err
	}

	index, err := registry.SubmitError(api.DecodeI32(res))
	if err != nil {
		return 0, err
	}

	r.logger.Debug("CID submitted", zap.Uint32("index", index), zap.Int("bytes", len(cid)))
	return index, nil
}

// Count returns the number of stored entries.
func (r *Registry) Count(ctx context.Context) (uint32, error) {
	res, err := r.call1(ctx, protocol.ExportCount)
	return api.DecodeU32(res), err
}

// Len returns the byte length of entry index.
func (r *Registry) Len(ctx context.Context, index uint32) (int, error) {
	if !r.guest.HasExport(protocol.ExportLenByIndex) {
		return 0, ErrLenUnsupported
	}
	res, err := r.call1(ctx, protocol.ExportLenByIndex, api.EncodeU32(index))
	if err != nil {
		return 0, err
	}
	return registry.ReadError(protocol.ExportLenByIndex, api.DecodeI32(res))
}

// Get returns entry index. With a length query the buffer is sized exactly;
// otherwise the read is retried with a doubling buffer. Either way no buffer
// larger than MaxReadBuffer is allocated.
func (r *Registry) Get(ctx context.Context, index uint32) (string, error) {
	size, err := r.Len(ctx, index)
	switch {
	case err == nil:
		if uint64(size) > uint64(r.opts.MaxReadBuffer) {
			return "", fmt.Errorf("entry %d is %d bytes, over the %d byte read limit: %w",
				index, size, r.opts.MaxReadBuffer, registry.ErrBufferTooSmall)
		}
		return r.readInto(ctx, index, uint32(size))
	case !errors.Is(err, ErrLenUnsupported):
		return "", err
	}

	capacity := r.opts.InitialReadBuffer
	for {
		cid, err := r.readInto(ctx, index, capacity)
		if !errors.Is(err, registry.ErrBufferTooSmall) || capacity >= r.opts.MaxReadBuffer {
			return cid, err
		}
		capacity = min(capacity*2, r.opts.MaxReadBuffer)
		r.logger.Debug("Read buffer too small, retrying",
			zap.Uint32("index", index),
			zap.Uint32("capacity", capacity),
		)
	}
}

// List returns every entry in index order.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	count, err := r.Count(ctx)
	if err != nil {
		return nil, err
	}

	cids := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		cid, err := r.Get(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("read entry %d: %w", i, err)
		}
		cids = append(cids, cid)
	}
	return cids, nil
}

func (r *Registry) readInto(ctx context.Context, index, capacity uint32) (string, error) {
	mem := r.guest.Memory()

	ptr, err := mem.Alloc(ctx, capacity)
	if err != nil {
		return "", err
	}
	defer r.free(ctx, ptr, capacity)

	res, err := r.call1(ctx, protocol.ExportReadByIndex,
		api.EncodeU32(index), api.EncodeU32(ptr), api.EncodeU32(capacity))
	if err != nil {
		return "", err
	}

	n, err := registry.ReadError(protocol.ExportReadByIndex, api.DecodeI32(res))
	if err != nil {
		return "", err
	}

	data, ok := mem.ReadBytes(ptr, uint32(n))
	if !ok {
		return "", &wasm.MemoryAccessError{Operation: "read", Address: ptr, Length: uint32(n), Err: errShortMemory}
	}
	return string(data), nil
}

var errShortMemory = errors.New("result extends past guest memory")

func (r *Registry) free(ctx context.Context, ptr, length uint32) {
	if err := r.guest.Memory().Free(ctx, ptr, length); err != nil {
		r.logger.Warn("Failed to free guest memory",
			zap.Uint32("ptr", ptr),
			zap.Uint32("length", length),
			zap.Error(err),
		)
	}
}

func (r *Registry) call1(ctx context.Context, name string, params ...uint64) (uint64, error) {
	results, err := r.guest.Call(ctx, name, params...)
	if err != nil {
		return 0, err
	}
	if len(results) != 1 {
		return 0, &wasm.CallError{
			FunctionName: name,
			Err:          fmt.Errorf("expected 1 result, got %d", len(results)),
		}
	}
	return results[0], nil
}
