package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CleanJSONResponse strips markdown code fences that some models wrap around
// JSON output.
func CleanJSONResponse(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ValidateAgainstSchema checks a raw JSON payload against a schema map:
// valid JSON, top-level type, and required properties down the tree. A
// failure here is a SchemaViolation and must not be retried.
func ValidateAgainstSchema(schemaName string, schema map[string]interface{}, raw []byte) error {
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return &Error{
			Kind: KindSchemaViolation,
			Op:   "complete",
			Err:  fmt.Errorf("response for %s is not valid JSON: %w", schemaName, err),
		}
	}

	if err := checkValue(schema, value, "$"); err != nil {
		return &Error{
			Kind: KindSchemaViolation,
			Op:   "complete",
			Err:  fmt.Errorf("response for %s does not match schema: %w", schemaName, err),
		}
	}

	return nil
}

func checkValue(schema map[string]interface{}, value interface{}, path string) error {
	if schema == nil || value == nil {
		return nil
	}

	typeStr, _ := schema["type"].(string)

	switch typeStr {
	case "object":
		obj, ok := value.(map[string]interface{})
		if !ok {
			return fmt.Errorf("%s: expected object", path)
		}
		for _, name := range requiredNames(schema) {
			if _, present := obj[name]; !present {
				return fmt.Errorf("%s: missing required property %q", path, name)
			}
		}
		props, _ := schema["properties"].(map[string]interface{})
		for name, raw := range obj {
			propSchema, ok := props[name].(map[string]interface{})
			if !ok {
				continue
			}
			if err := checkValue(propSchema, raw, path+"."+name); err != nil {
				return err
			}
		}
	case "array":
		arr, ok := value.([]interface{})
		if !ok {
			return fmt.Errorf("%s: expected array", path)
		}
		itemSchema, ok := schema["items"].(map[string]interface{})
		if !ok {
			return nil
		}
		for i, item := range arr {
			if err := checkValue(itemSchema, item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("%s: expected string", path)
		}
	case "number", "integer":
		if _, ok := value.(float64); !ok {
			return fmt.Errorf("%s: expected number", path)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%s: expected boolean", path)
		}
	}

	return nil
}

func requiredNames(schema map[string]interface{}) []string {
	if names, ok := schema["required"].([]string); ok {
		return names
	}
	raw, ok := schema["required"].([]interface{})
	if !ok {
		return nil
	}
	names := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			names = append(names, s)
		}
	}
	return names
}
