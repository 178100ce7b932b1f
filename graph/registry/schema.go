package registry

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// CompileSchema turns a JSON-Schema document (as a decoded map, the form a
// GraphSpec or FunctionSpec would carry) into a reusable validator. A nil
// schema compiles to an always-valid "any object" schema.
func CompileSchema(schema map[string]interface{}) (*jsonschema.Schema, error) {
	if schema == nil {
		schema = map[string]interface{}{
			"type": "object",
		}
	}
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("function.json", strings.NewReader(string(b))); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile("function.json")
}

// ValidateAgainst checks value against a compiled schema, returning nil when
// s is nil — the JSON-Schema validation named in the domain stack is
// optional per function node, not mandatory.
func ValidateAgainst(s *jsonschema.Schema, value map[string]interface{}) error {
	if s == nil {
		return nil
	}
	return s.Validate(value)
}
