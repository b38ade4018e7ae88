// Package artifact discovers built wasm artifacts from manifest.yaml
// directories, compiles them and verifies their export surface.
package artifact

import (
	"time"

	"github.com/woxQAQ/memory-registry/internal/wasm"
)

// Artifact represents a loaded artifact with its manifest and compiled Wasm module.
type Artifact struct {
	// Manifest is the parsed artifact metadata
	Manifest *Manifest

	// Compiled is the compiled Wasm module
	Compiled *wasm.CompiledModule

	// LoadedAt is the timestamp when the artifact was loaded
	LoadedAt time.Time
}

// Name returns the artifact name.
func (a *Artifact) Name() string {
	return a.Manifest.Name
}

// Kind returns the export surface the artifact provides.
func (a *Artifact) Kind() Kind {
	return a.Manifest.Kind
}

// Version returns the artifact version.
func (a *Artifact) Version() string {
	return a.Manifest.Version
}

// MissingExports lists required exports the compiled module lacks.
func (a *Artifact) MissingExports() []string {
	var missing []string
	for _, name := range a.Manifest.RequiredExports() {
		if !a.Compiled.HasExport(name) {
			missing = append(missing, name)
		}
	}
	return missing
}
