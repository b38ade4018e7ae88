package artifact

import (
	"os"
	"path/filepath"
	"testing"
)

const adderManifest = `
name: stylus-add
version: 0.1.0
kind: adder
wasm:
  file: add.wasm
  size: 64
`

const registryManifest = `
name: memory-registry
version: 1.0.0
kind: registry
interface_version: 1
wasm:
  file: registry.wasm
`

// writeArtifact creates root/name with a manifest and, if wasm is non-nil,
// the module file named in the manifest.
func writeArtifact(t *testing.T, root, name, manifest, wasmFile string, wasm []byte) string {
	t.Helper()

	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
	if wasm != nil {
		if err := os.WriteFile(filepath.Join(dir, wasmFile), wasm, 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}
