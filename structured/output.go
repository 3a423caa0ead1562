package structured

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/eidoslabs/eidos/llm"
	"github.com/eidoslabs/eidos/types"
)

var codeFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// Output is a schema-constrained generation handler for values of type T.
// The schema is generated once from T and embedded into a system
// instruction on every call.
type Output[T any] struct {
	schema      *JSONSchema
	provider    llm.Provider
	model       string
	temperature float32
}

// New creates an Output handler for T bound to a provider and model.
func New[T any](provider llm.Provider, model string, temperature float32) (*Output[T], error) {
	if provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	var zero T
	schema, err := SchemaFor(reflect.TypeOf(zero))
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema for type %T: %w", zero, err)
	}
	return &Output[T]{schema: schema, provider: provider, model: model, temperature: temperature}, nil
}

// Schema returns the generated JSON Schema.
func (o *Output[T]) Schema() *JSONSchema { return o.schema }

// Generate requests a completion constrained to T's schema and parses the
// reply. Parse or validation failure returns SCHEMA_VIOLATION.
func (o *Output[T]) Generate(ctx context.Context, messages []llm.Message) (*T, error) {
	schemaJSON, err := json.MarshalIndent(o.schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	systemMsg := llm.NewSystemMessage(fmt.Sprintf(
		"You must respond with valid JSON that conforms to the following JSON Schema:\n%s\n\nRespond only with the JSON object, no additional text.",
		schemaJSON,
	))
	allMessages := append([]llm.Message{systemMsg}, messages...)

	resp, err := o.provider.Completion(ctx, &llm.ChatRequest{
		Model:       o.model,
		Messages:    allMessages,
		Temperature: o.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("provider completion failed: %w", err)
	}

	raw := resp.Text()
	if strings.TrimSpace(raw) == "" {
		return nil, types.NewError(types.ErrSchemaViolation, "provider returned an empty reply")
	}

	value, err := o.parse(raw)
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (o *Output[T]) parse(raw string) (*T, error) {
	jsonStr := extractJSON(raw)

	var value T
	if err := json.Unmarshal([]byte(jsonStr), &value); err != nil {
		return nil, types.NewError(types.ErrSchemaViolation,
			fmt.Sprintf("reply did not parse as JSON: %s", snippet(raw))).WithCause(err)
	}
	if err := o.validate(jsonStr); err != nil {
		return nil, err
	}
	return &value, nil
}

// validate checks required fields and enum membership against the schema.
func (o *Output[T]) validate(jsonStr string) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsonStr), &fields); err != nil {
		// Non-object top level: nothing further to check here.
		return nil
	}

	for _, req := range o.schema.Required {
		if _, ok := fields[req]; !ok {
			return types.NewError(types.ErrSchemaViolation,
				fmt.Sprintf("required field %q missing from reply", req))
		}
	}

	for name, prop := range o.schema.Properties {
		rawField, ok := fields[name]
		if !ok || len(prop.Enum) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(rawField, &s); err != nil {
			return types.NewError(types.ErrSchemaViolation,
				fmt.Sprintf("field %q is not a string", name)).WithCause(err)
		}
		if s == "" && !contains(o.schema.Required, name) {
			continue
		}
		if !contains(prop.Enum, s) {
			return types.NewError(types.ErrSchemaViolation,
				fmt.Sprintf("field %q value %q not in enum %v", name, s, prop.Enum))
		}
	}
	return nil
}

// extractJSON pulls a JSON object or array out of a free-form reply,
// handling markdown code fences and surrounding prose.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	if strings.Contains(response, "```") {
		if matches := codeFenceRe.FindStringSubmatch(response); len(matches) > 1 {
			return strings.TrimSpace(matches[1])
		}
	}

	if start, end := strings.Index(response, "{"), strings.LastIndex(response, "}"); start >= 0 && end > start {
		return response[start : end+1]
	}
	if start, end := strings.Index(response, "["), strings.LastIndex(response, "]"); start >= 0 && end > start {
		return response[start : end+1]
	}
	return response
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
