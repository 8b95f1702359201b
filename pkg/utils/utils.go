package utils

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// GetSchemaFromConfig returns the indented JSON schema of v. Nested structs
// land in $defs and unknown properties are rejected.
func GetSchemaFromConfig(v any) (string, error) {
	r := new(jsonschema.Reflector)
	r.AllowAdditionalProperties = false

	doc, err := json.MarshalIndent(r.Reflect(v), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal schema: %w", err)
	}

	return string(doc), nil
}
