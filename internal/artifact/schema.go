package artifact

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// ManifestSchema returns the JSON Schema for manifest.yaml.
func ManifestSchema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		FieldNameTag:   "yaml",
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(&Manifest{})
	schema.Title = "memory-registry artifact manifest"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}
