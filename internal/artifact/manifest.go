package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/woxQAQ/memory-registry/pkg/protocol"
)

// ManifestFile is the manifest name inside an artifact directory.
const ManifestFile = "manifest.yaml"

// Kind is the export surface an artifact provides.
type Kind string

const (
	KindRegistry Kind = "registry"
	KindAdder    Kind = "adder"
)

// Manifest represents the artifact manifest.yaml structure.
type Manifest struct {
	Name             string     `yaml:"name" validate:"required" jsonschema:"description=Unique artifact name"`
	Version          string     `yaml:"version" validate:"required,semver" jsonschema:"description=Semantic version of the artifact build"`
	Kind             Kind       `yaml:"kind" validate:"required,oneof=registry adder" jsonschema:"enum=registry,enum=adder"`
	InterfaceVersion uint32     `yaml:"interface_version,omitempty" validate:"required_if=Kind registry" jsonschema:"description=memory_registry_version the artifact reports"`
	Wasm             WasmConfig `yaml:"wasm"`
	Exports          []string   `yaml:"exports,omitempty" validate:"omitempty,dive,required" jsonschema:"description=Extra exports checked by verify"`
	Description      string     `yaml:"description,omitempty"`

	// Internal fields
	dir string // Directory containing manifest
}

// WasmConfig holds Wasm module configuration.
type WasmConfig struct {
	File string `yaml:"file" validate:"required" jsonschema:"description=Module path relative to the manifest"`
	Size int    `yaml:"size,omitempty" validate:"gte=0" jsonschema:"description=Size budget in KB"` // KB
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseManifest reads and parses manifest.yaml from a directory.
func ParseManifest(dir string) (*Manifest, error) {
	manifestPath := filepath.Join(dir, ManifestFile)

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, &ManifestNotFoundError{
			Path: manifestPath,
			Err:  err,
		}
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ManifestParseError{
			Path: manifestPath,
			Err:  err,
		}
	}

	m.dir = dir

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest fields and that the Wasm file exists.
func (m *Manifest) Validate() error {
	if err := validate.Struct(m); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return m.fieldError(fieldErrs[0])
		}
		return &ManifestValidationError{Path: m.Path(), Message: err.Error()}
	}

	if m.Kind == KindRegistry && m.InterfaceVersion != protocol.InterfaceVersion {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "interface_version",
			Message: fmt.Sprintf("unsupported interface version %d (host speaks %d)", m.InterfaceVersion, protocol.InterfaceVersion),
		}
	}

	if _, err := os.Stat(m.WasmPath()); os.IsNotExist(err) {
		return &WasmNotFoundError{
			ManifestPath: m.Path(),
			WasmFile:     m.Wasm.File,
		}
	}

	return nil
}

func (m *Manifest) fieldError(fe validator.FieldError) error {
	// Namespace is "Manifest.wasm.file"; drop the type name.
	_, field, _ := strings.Cut(fe.Namespace(), ".")

	var msg string
	switch fe.Tag() {
	case "required", "required_if":
		msg = field + " is required"
	case "oneof":
		msg = fmt.Sprintf("unsupported %s: %v (must be one of: %s)", field, fe.Value(), fe.Param())
	case "semver":
		msg = fmt.Sprintf("%s must be a semantic version, got %v", field, fe.Value())
	default:
		msg = fmt.Sprintf("%s failed '%s' check", field, fe.Tag())
	}

	return &ManifestValidationError{Path: m.Path(), Field: field, Message: msg}
}

// RequiredExports returns the exports verify checks for: the kind's
// surface plus any extra exports the manifest declares.
func (m *Manifest) RequiredExports() []string {
	var base []string
	switch m.Kind {
	case KindRegistry:
		base = protocol.RegistryExports
	case KindAdder:
		base = protocol.AdderExports
	}

	out := append([]string(nil), base...)
	for _, name := range m.Exports {
		if !contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Path returns the manifest file path.
func (m *Manifest) Path() string {
	return filepath.Join(m.dir, ManifestFile)
}

// WasmPath returns the path to the Wasm file.
func (m *Manifest) WasmPath() string {
	return filepath.Join(m.dir, m.Wasm.File)
}

// Dir returns the directory containing the manifest.
func (m *Manifest) Dir() string {
	return m.dir
}
