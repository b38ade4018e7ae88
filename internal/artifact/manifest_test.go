package artifact

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/woxQAQ/memory-registry/internal/wasm/wasmtest"
	"github.com/woxQAQ/memory-registry/pkg/protocol"
)

func TestParseManifest_Valid(t *testing.T) {
	dir := writeArtifact(t, t.TempDir(), "add", adderManifest, "add.wasm", wasmtest.AddPing)

	manifest, err := ParseManifest(dir)
	if err != nil {
		t.Fatalf("ParseManifest() failed: %v", err)
	}

	if manifest.Name != "stylus-add" {
		t.Errorf("expected Name 'stylus-add', got '%s'", manifest.Name)
	}

	if manifest.Kind != KindAdder {
		t.Errorf("expected Kind 'adder', got '%s'", manifest.Kind)
	}

	if manifest.Wasm.Size != 64 {
		t.Errorf("expected Wasm.Size 64, got %d", manifest.Wasm.Size)
	}

	if manifest.WasmPath() != filepath.Join(dir, "add.wasm") {
		t.Errorf("unexpected WasmPath %s", manifest.WasmPath())
	}
}

func TestParseManifest_NotFound(t *testing.T) {
	_, err := ParseManifest(filepath.Join(t.TempDir(), "nonexistent"))

	var notFound *ManifestNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("expected ManifestNotFoundError, got %T", err)
	}
}

func TestParseManifest_InvalidYAML(t *testing.T) {
	dir := writeArtifact(t, t.TempDir(), "bad", "name: [unterminated", "", nil)

	_, err := ParseManifest(dir)

	var parseErr *ManifestParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("expected ManifestParseError, got %T", err)
	}
}

func TestParseManifest_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		field    string
	}{
		{
			name:     "missing name",
			manifest: "version: 1.0.0\nkind: adder\nwasm:\n  file: m.wasm\n",
			field:    "name",
		},
		{
			name:     "bad version",
			manifest: "name: x\nversion: latest\nkind: adder\nwasm:\n  file: m.wasm\n",
			field:    "version",
		},
		{
			name:     "unknown kind",
			manifest: "name: x\nversion: 1.0.0\nkind: cache\nwasm:\n  file: m.wasm\n",
			field:    "kind",
		},
		{
			name:     "registry without interface version",
			manifest: "name: x\nversion: 1.0.0\nkind: registry\nwasm:\n  file: m.wasm\n",
			field:    "interface_version",
		},
		{
			name:     "registry with future interface version",
			manifest: "name: x\nversion: 1.0.0\nkind: registry\ninterface_version: 2\nwasm:\n  file: m.wasm\n",
			field:    "interface_version",
		},
		{
			name:     "missing wasm file",
			manifest: "name: x\nversion: 1.0.0\nkind: adder\nwasm:\n  size: 10\n",
			field:    "wasm.file",
		},
		{
			name:     "empty export name",
			manifest: "name: x\nversion: 1.0.0\nkind: adder\nwasm:\n  file: m.wasm\nexports: [\"\"]\n",
			field:    "exports[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeArtifact(t, t.TempDir(), "m", tt.manifest, "m.wasm", wasmtest.Empty)

			_, err := ParseManifest(dir)

			var validationErr *ManifestValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ManifestValidationError, got %T (%v)", err, err)
			}
			if validationErr.Field != tt.field {
				t.Errorf("expected Field '%s', got '%s'", tt.field, validationErr.Field)
			}
		})
	}
}

func TestParseManifest_WasmNotFound(t *testing.T) {
	dir := writeArtifact(t, t.TempDir(), "add", adderManifest, "", nil)

	_, err := ParseManifest(dir)

	var notFound *WasmNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected WasmNotFoundError, got %T", err)
	}
	if notFound.WasmFile != "add.wasm" {
		t.Errorf("expected WasmFile 'add.wasm', got '%s'", notFound.WasmFile)
	}
}

func TestManifest_RequiredExports(t *testing.T) {
	m := &Manifest{Kind: KindRegistry, Exports: []string{protocol.ExportLenByIndex, protocol.ExportPing}}

	got := m.RequiredExports()
	if len(got) != len(protocol.RegistryExports)+1 {
		t.Fatalf("expected %d exports, got %v", len(protocol.RegistryExports)+1, got)
	}
	if got[len(got)-1] != protocol.ExportLenByIndex {
		t.Errorf("declared export should be appended, got %v", got)
	}

	adder := &Manifest{Kind: KindAdder}
	if got := adder.RequiredExports(); len(got) != 1 || got[0] != protocol.ExportAdd {
		t.Errorf("adder exports = %v, want [add]", got)
	}
}

func TestManifestSchema(t *testing.T) {
	data, err := ManifestSchema()
	if err != nil {
		t.Fatalf("ManifestSchema() failed: %v", err)
	}

	var schema struct {
		Title      string                     `json:"title"`
		Properties map[string]json.RawMessage `json:"properties"`
		Required   []string                   `json:"required"`
	}
	if err := json.Unmarshal(data, &schema); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}

	for _, key := range []string{"name", "version", "kind", "interface_version", "wasm", "exports"} {
		if _, ok := schema.Properties[key]; !ok {
			t.Errorf("schema missing property %q", key)
		}
	}

	required := map[string]bool{}
	for _, r := range schema.Required {
		required[r] = true
	}
	if !required["name"] || !required["wasm"] {
		t.Errorf("name and wasm should be required, got %v", schema.Required)
	}
	if required["exports"] {
		t.Error("exports should be optional")
	}
}
