// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

package descriptor

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"

	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
)

// SchemaID is the $id of the descriptor schema.
const SchemaID = "https://terraplug.dev/schemas/plugin.schema.json"

// compiledSchema compiles the generated schema once per process.
var compiledSchema = sync.OnceValues(compileSchema)

// GenerateSchema generates the JSON Schema of plugin descriptors from the
// Info struct.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&pluginpkg.Info{})

	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "terraplug plugin descriptor"
	schema.Description = "Schema for plugin descriptor files (JSON or YAML)"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Wrapf(err, "marshal schema")
	}
	return data, nil
}

// ValidateSchema validates a decoded descriptor document against the schema.
// doc must hold JSON types (map[string]any, []any, string, float64, bool).
func ValidateSchema(doc any) error {
	sch, err := compiledSchema()
	if err != nil {
		return oops.Wrapf(err, "compile schema")
	}
	if err := sch.Validate(doc); err != nil {
		return oops.Code(pluginpkg.CodeInvalidDescriptor).Wrapf(err, "schema validation failed")
	}
	return nil
}

func compileSchema() (*jschema.Schema, error) {
	schemaBytes, err := GenerateSchema()
	if err != nil {
		return nil, err
	}

	var schemaData any
	if err := json.Unmarshal(schemaBytes, &schemaData); err != nil {
		return nil, oops.Wrapf(err, "parse schema JSON")
	}

	c := jschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaData); err != nil {
		return nil, oops.Wrapf(err, "add schema resource")
	}
	return c.Compile("schema.json")
}

// toJSONTypes converts YAML-decoded data to the types encoding/json produces.
func toJSONTypes(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[k] = toJSONTypes(v)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[fmt.Sprint(k)] = toJSONTypes(v)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, v := range val {
			out[i] = toJSONTypes(v)
		}
		return out
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	case string, float64, bool, nil:
		return val
	default:
		if b, err := json.Marshal(val); err == nil {
			var out any
			if err := json.Unmarshal(b, &out); err == nil {
				return out
			}
		}
		return val
	}
}

// FormatSchemaError strips the validation prefix from err for display.
func FormatSchemaError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if i := strings.Index(msg, "schema validation failed: "); i >= 0 {
		msg = msg[i+len("schema validation failed: "):]
	}
	return msg
}
