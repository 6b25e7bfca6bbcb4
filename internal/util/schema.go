package util

import (
	"fmt"
	"reflect"
	"strings"
)

// Param describes a single declared capability parameter.
type Param struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// Violation represents a single parameter validation failure.
type Violation struct {
	Field   string `json:"field"`   // Field that failed validation
	Value   any    `json:"value"`   // Value that was provided
	Message string `json:"message"` // Human-readable error message
}

// String renders the violation for inclusion in error messages.
func (v Violation) String() string {
	return fmt.Sprintf("field '%s': %s", v.Field, v.Message)
}

// ParamsFromStruct derives a parameter list from a Go struct using reflection.
// Exported fields become parameters; the json tag supplies the name, pointer
// or omitempty fields are optional. This is a convenience for capability
// providers that already model their arguments as structs.
func ParamsFromStruct(structType any) []Param {
	t := reflect.TypeOf(structType)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return nil
	}

	params := make([]Param, 0, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		fieldName := field.Name
		if jsonTag != "" {
			parts := strings.Split(jsonTag, ",")
			if parts[0] != "" {
				fieldName = parts[0]
			}
		}

		params = append(params, Param{
			Name:     fieldName,
			Type:     jsonType(field.Type),
			Required: !hasOmitEmpty(field.Tag.Get("json")) && field.Type.Kind() != reflect.Ptr,
		})
	}

	return params
}

// ValidateParameters checks args against the declared parameter list and
// returns every violation found, not just the first. A nil return means the
// arguments are valid. Unknown extra fields are allowed.
func ValidateParameters(args map[string]any, params []Param) []Violation {
	var violations []Violation

	for _, p := range params {
		value, exists := args[p.Name]
		if !exists {
			if p.Required {
				violations = append(violations, Violation{
					Field:   p.Name,
					Message: "required parameter is missing",
				})
			}
			continue
		}

		if !isValidType(value, p.Type) {
			violations = append(violations, Violation{
				Field:   p.Name,
				Value:   value,
				Message: fmt.Sprintf("expected type %s, got %T", p.Type, value),
			})
		}
	}

	return violations
}

// jsonType returns the JSON-ish type name for a given Go type.
func jsonType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Ptr:
		return jsonType(t.Elem())
	default:
		return "string"
	}
}

// hasOmitEmpty checks if a JSON tag has the "omitempty" option.
func hasOmitEmpty(tag string) bool {
	parts := strings.Split(tag, ",")
	for _, part := range parts[1:] {
		if strings.TrimSpace(part) == "omitempty" {
			return true
		}
	}
	return false
}

// isValidType checks if a value matches the expected declared type. An empty
// expected type accepts anything.
func isValidType(value any, expectedType string) bool {
	if value == nil || expectedType == "" {
		return true
	}

	switch expectedType {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64: // JSON unmarshaling often produces float64 for numbers
			return v == float64(int64(v))
		}
		return false
	case "number":
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
			float32, float64:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		if _, ok := value.([]any); ok {
			return true
		}
		return reflect.TypeOf(value).Kind() == reflect.Slice
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}
