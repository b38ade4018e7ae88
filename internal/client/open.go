package client

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/woxQAQ/memory-registry/internal/wasm"
	"github.com/woxQAQ/memory-registry/pkg/protocol"
)

var errResultCount = errors.New("unexpected number of results")

// Session is a registry bound to either a loaded artifact or the in-process
// fallback.
type Session struct {
	*Registry

	instance *wasm.Instance

	// Fallback is true when the in-process registry is in use.
	Fallback bool

	// Cause is why the artifact was not used, if Fallback is set.
	Cause error
}

// Open loads the artifact at path, instantiates it and verifies it speaks
// the registry interface. When that fails and opts.Fallback is set, the
// session uses the in-process registry instead.
func Open(ctx context.Context, runtime *wasm.Runtime, logger *zap.Logger, path string, opts Options) (*Session, error) {
	instance, err := openInstance(ctx, runtime, logger, path)
	if err == nil {
		reg := NewRegistry(instance, logger, opts)
		if err = reg.Verify(ctx); err == nil {
			return &Session{Registry: reg, instance: instance}, nil
		}
		_ = instance.Close(ctx)
	}

	if !opts.Fallback {
		return nil, err
	}

	logger.Warn("Wasm registry unavailable, using in-process fallback",
		zap.String("path", path),
		zap.Error(err),
	)
	return &Session{
		Registry: NewRegistry(NewLocal(opts.LocalMemoryPages), logger, opts),
		Fallback: true,
		Cause:    err,
	}, nil
}

// OpenLocal returns a session over a fresh in-process registry.
func OpenLocal(logger *zap.Logger, opts Options) *Session {
	return &Session{
		Registry: NewRegistry(NewLocal(opts.LocalMemoryPages), logger, opts),
		Fallback: true,
	}
}

// Close releases the artifact instance, if any.
func (s *Session) Close(ctx context.Context) error {
	if s.instance == nil {
		return nil
	}
	return s.instance.Close(ctx)
}

func openInstance(ctx context.Context, runtime *wasm.Runtime, logger *zap.Logger, path string) (*wasm.Instance, error) {
	compiled, err := wasm.NewModuleLoader(runtime, logger).LoadModuleFromFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return wasm.NewInstanceManager(runtime, logger).Instantiate(ctx, &wasm.InstanceConfig{ModuleName: compiled.Name})
}

// AdderSession is an adder bound to either a loaded artifact or the
// in-process fallback.
type AdderSession struct {
	*Adder

	instance *wasm.Instance
	Fallback bool
}

// OpenAdder loads the add artifact at path. When it cannot be loaded, or
// does not export add, and fallback is set, the in-process add is used.
func OpenAdder(ctx context.Context, runtime *wasm.Runtime, logger *zap.Logger, path string, fallback bool) (*AdderSession, error) {
	instance, err := openInstance(ctx, runtime, logger, path)
	if err == nil {
		adder := NewAdder(instance)
		if instance.HasExport(protocol.ExportAdd) {
			return &AdderSession{Adder: adder, instance: instance}, nil
		}
		err = &wasm.FunctionNotFoundError{ModuleName: instance.Name, FunctionName: protocol.ExportAdd}
		_ = instance.Close(ctx)
	}

	if !fallback {
		return nil, err
	}

	logger.Warn("Wasm adder unavailable, using in-process fallback",
		zap.String("path", path),
		zap.Error(err),
	)
	return &AdderSession{Adder: NewAdder(NewLocal(1)), Fallback: true}, nil
}

// Close releases the artifact instance, if any.
func (s *AdderSession) Close(ctx context.Context) error {
	if s.instance == nil {
		return nil
	}
	return s.instance.Close(ctx)
}
