// Package structured provides schema-constrained generation on top of any
// llm.Provider. A reply that cannot be parsed into the requested schema
// surfaces a SCHEMA_VIOLATION error; there is no silent defaulting.
package structured

import (
	"fmt"
	"reflect"
	"strings"
)

// JSONSchema is the subset of JSON Schema the engine emits and validates:
// objects, arrays, primitives, required fields and string enums.
type JSONSchema struct {
	Type        string                 `json:"type,omitempty"`
	Description string                 `json:"description,omitempty"`
	Properties  map[string]*JSONSchema `json:"properties,omitempty"`
	Required    []string               `json:"required,omitempty"`
	Items       *JSONSchema            `json:"items,omitempty"`
	Enum        []string               `json:"enum,omitempty"`
}

// SchemaFor generates a JSONSchema from a Go type using reflection.
// Struct fields use the "json" tag for naming and the "jsonschema" tag for
// constraints:
//
//   - required: mark the field as required
//   - enum=a,b,c: allowed string values
//   - description=...: field description
func SchemaFor(t reflect.Type) (*JSONSchema, error) {
	if t == nil {
		return nil, fmt.Errorf("cannot generate schema for nil type")
	}
	if t.Kind() == reflect.Ptr {
		return SchemaFor(t.Elem())
	}

	switch t.Kind() {
	case reflect.String:
		return &JSONSchema{Type: "string"}, nil
	case reflect.Bool:
		return &JSONSchema{Type: "boolean"}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &JSONSchema{Type: "integer"}, nil
	case reflect.Float32, reflect.Float64:
		return &JSONSchema{Type: "number"}, nil
	case reflect.Slice, reflect.Array:
		items, err := SchemaFor(t.Elem())
		if err != nil {
			return nil, fmt.Errorf("failed to generate schema for array element: %w", err)
		}
		return &JSONSchema{Type: "array", Items: items}, nil
	case reflect.Struct:
		return structSchema(t)
	default:
		return nil, fmt.Errorf("unsupported type: %s", t.Kind())
	}
}

func structSchema(t reflect.Type) (*JSONSchema, error) {
	schema := &JSONSchema{Type: "object", Properties: map[string]*JSONSchema{}}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := jsonFieldName(field)
		if name == "-" {
			continue
		}

		fieldSchema, err := SchemaFor(field.Type)
		if err != nil {
			return nil, fmt.Errorf("failed to generate schema for field %s: %w", field.Name, err)
		}

		opts := parseTagOptions(field.Tag.Get("jsonschema"))
		if desc, ok := opts["description"]; ok {
			fieldSchema.Description = desc
		}
		if enum, ok := opts["enum"]; ok {
			for _, v := range strings.Split(enum, ",") {
				fieldSchema.Enum = append(fieldSchema.Enum, strings.TrimSpace(v))
			}
		}
		if _, ok := opts["required"]; ok {
			schema.Required = append(schema.Required, name)
		}

		schema.Properties[name] = fieldSchema
	}
	return schema, nil
}

func jsonFieldName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" {
		return field.Name
	}
	name := strings.Split(tag, ",")[0]
	if name == "" {
		return field.Name
	}
	return name
}

// parseTagOptions splits a jsonschema tag into options. Commas inside an
// enum or description value belong to that value; a new option only starts
// at a segment that is itself a known option key.
func parseTagOptions(tag string) map[string]string {
	options := make(map[string]string)
	if tag == "" {
		return options
	}

	var key, value string
	flush := func() {
		if key != "" {
			options[key] = strings.TrimSpace(value)
		}
	}

	for _, part := range strings.Split(tag, ",") {
		trimmed := strings.TrimSpace(part)
		switch {
		case trimmed == "required":
			flush()
			key, value = "required", ""
		case strings.HasPrefix(trimmed, "enum="), strings.HasPrefix(trimmed, "description="):
			flush()
			idx := strings.Index(trimmed, "=")
			key, value = trimmed[:idx], trimmed[idx+1:]
		default:
			// Continuation of the previous value.
			if key != "" && value != "" {
				value += "," + part
			} else if key != "" {
				value = part
			}
		}
	}
	flush()
	return options
}
