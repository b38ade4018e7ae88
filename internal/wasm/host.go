package wasm

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// instantiateHostModules registers the host modules guests import.
// Go wasip1 artifacts import wasi_snapshot_preview1 even when they never
// touch the filesystem, so it is always present.
func (r *Runtime) instantiateHostModules(ctx context.Context) error {
	wasi, err := wasi_snapshot_preview1.Instantiate(ctx, r.runtime)
	if err != nil {
		return fmt.Errorf("failed to instantiate %s: %w", wasi_snapshot_preview1.ModuleName, err)
	}
	r.hostModules = append(r.hostModules, wasi)
	r.hostModuleNames = append(r.hostModuleNames, wasi_snapshot_preview1.ModuleName)
	return nil
}

// checkImports rejects modules importing functions from host modules that
// were never instantiated, e.g. Stylus vm_hooks.
func (r *Runtime) checkImports(name string, compiled wazero.CompiledModule) error {
	for _, fn := range compiled.ImportedFunctions() {
		module, field, _ := fn.Import()
		if !slices.Contains(r.hostModuleNames, module) {
			return &UnsupportedImportError{ModuleName: name, ImportModule: module, ImportName: field}
		}
	}
	return nil
}

// GuestOutput forwards a guest's stdout or stderr to a zap logger, one
// entry per line. The Go runtime writes panics to stderr, so a trapping
// guest leaves its stack trace in the host log.
type GuestOutput struct {
	logger *zap.Logger
	level  zapcore.Level

	mu      sync.Mutex
	pending []byte
}

// NewGuestOutput creates a writer logging complete lines at level.
func NewGuestOutput(logger *zap.Logger, stream string, level zapcore.Level) *GuestOutput {
	return &GuestOutput{
		logger: logger.With(zap.String("component", "wasm-guest"), zap.String("stream", stream)),
		level:  level,
	}
}

// Write implements io.Writer. Partial lines are held until the next newline
// or Flush.
func (g *GuestOutput) Write(p []byte) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.pending = append(g.pending, p...)
	for {
		i := bytes.IndexByte(g.pending, '\n')
		if i < 0 {
			break
		}
		g.emit(g.pending[:i])
		g.pending = g.pending[i+1:]
	}
	return len(p), nil
}

// Flush logs any buffered partial line.
func (g *GuestOutput) Flush() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.pending) > 0 {
		g.emit(g.pending)
		g.pending = nil
	}
}

func (g *GuestOutput) emit(line []byte) {
	line = bytes.TrimRight(line, "\r")
	if len(line) == 0 {
		return
	}
	if ce := g.logger.Check(g.level, string(line)); ce != nil {
		ce.Write()
	}
}
