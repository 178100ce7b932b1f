package registry

import "testing"

func TestCompileSchema_NilCompilesToAnyObject(t *testing.T) {
	s, err := CompileSchema(nil)
	if err != nil {
		t.Fatalf("CompileSchema(nil): %v", err)
	}
	if err := ValidateAgainst(s, map[string]interface{}{"anything": "goes"}); err != nil {
		t.Fatalf("expected a nil schema to validate any object, got %v", err)
	}
}

func TestCompileSchema_EnforcesRequiredFields(t *testing.T) {
	schema := map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"name"},
		"properties": map[string]interface{}{
			"name": map[string]interface{}{"type": "string"},
		},
	}
	s, err := CompileSchema(schema)
	if err != nil {
		t.Fatalf("CompileSchema: %v", err)
	}

	if err := ValidateAgainst(s, map[string]interface{}{"name": "ok"}); err != nil {
		t.Fatalf("expected valid object to pass, got %v", err)
	}
	if err := ValidateAgainst(s, map[string]interface{}{}); err == nil {
		t.Fatal("expected missing required field to fail validation")
	}
}

func TestCompileSchema_TypeMismatchFails(t *testing.T) {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"count": map[string]interface{}{"type": "integer"},
		},
	}
	s, err := CompileSchema(schema)
	if err != nil {
		t.Fatalf("CompileSchema: %v", err)
	}
	if err := ValidateAgainst(s, map[string]interface{}{"count": "not-a-number"}); err == nil {
		t.Fatal("expected a type mismatch to fail validation")
	}
}

func TestValidateAgainst_NilSchemaAlwaysPasses(t *testing.T) {
	if err := ValidateAgainst(nil, map[string]interface{}{"x": 1}); err != nil {
		t.Fatalf("expected nil schema to always validate, got %v", err)
	}
}

func TestCompileSchema_InvalidSchemaErrors(t *testing.T) {
	schema := map[string]interface{}{
		"type": "not-a-real-type",
	}
	if _, err := CompileSchema(schema); err == nil {
		t.Fatal("expected an invalid JSON Schema document to fail to compile")
	}
}
