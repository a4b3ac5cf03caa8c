package schema

import "github.com/jonathan/churn-predictor/internal/types"

// JSONSchema renders the field table as a JSON Schema (draft-07) document
// describing the prediction request body.
func JSONSchema() map[string]any {
	properties := make(map[string]any, len(fields))
	for _, f := range fields {
		switch {
		case f.Kind == types.Categorical:
			properties[f.Name] = map[string]any{"type": "string", "enum": f.Allowed}
		case f.Flag:
			properties[f.Name] = map[string]any{"type": "integer", "enum": []int{0, 1}}
		case f.Integer:
			properties[f.Name] = map[string]any{"type": "integer", "minimum": 0}
		default:
			properties[f.Name] = map[string]any{"type": "number", "minimum": 0}
		}
	}

	return map[string]any{
		"$schema":    "http://json-schema.org/draft-07/schema#",
		"title":      "CustomerRecord",
		"type":       "object",
		"required":   Names(),
		"properties": properties,
	}
}
