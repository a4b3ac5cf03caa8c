package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/churn-predictor/internal/types"
)

var validate = validator.New()

// Validate converts a raw field→value mapping into a CustomerRecord.
// Every schema field must be present and valid; the first offending field in
// canonical order is reported. Keys outside the schema are ignored.
func Validate(raw map[string]any) (types.CustomerRecord, error) {
	var record types.CustomerRecord
	for _, f := range fields {
		rawValue, ok := raw[f.Name]
		if !ok || rawValue == nil {
			return types.CustomerRecord{}, &ValidationError{Field: f.Name, Reason: "field required"}
		}
		value, err := f.parse(rawValue)
		if err != nil {
			return types.CustomerRecord{}, err
		}
		f.set(&record, value)
	}
	return record, nil
}

// ValidateRecord checks an already typed record against the schema rules.
func ValidateRecord(record types.CustomerRecord) error {
	for _, f := range fields {
		v := f.Get(record)
		var raw any = v.Num
		if f.Kind == types.Categorical {
			raw = v.Cat
		}
		if _, err := f.parse(raw); err != nil {
			return err
		}
	}
	return nil
}

// ToMap serializes a record back into the raw mapping accepted by Validate.
func ToMap(record types.CustomerRecord) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		v := f.Get(record)
		switch {
		case f.Kind == types.Categorical:
			out[f.Name] = v.Cat
		case f.Integer:
			out[f.Name] = int(v.Num)
		default:
			out[f.Name] = v.Num
		}
	}
	return out
}

// parse checks one raw value against the field's rules.
func (f Field) parse(raw any) (types.Value, error) {
	if f.Kind == types.Categorical {
		label, ok := raw.(string)
		if !ok {
			return types.Value{}, &ValidationError{Field: f.Name, Value: raw, Reason: "must be a string"}
		}
		if err := validate.Var(label, f.tag()); err != nil {
			return types.Value{}, &ValidationError{Field: f.Name, Value: raw, Reason: f.rule()}
		}
		return types.CategoricalValue(label), nil
	}

	num, err := toFloat(raw)
	if err != nil {
		return types.Value{}, &ValidationError{Field: f.Name, Value: raw, Reason: "must be a number"}
	}
	if math.IsNaN(num) || math.IsInf(num, 0) {
		return types.Value{}, &ValidationError{Field: f.Name, Value: raw, Reason: "must be finite"}
	}

	if f.Integer {
		if num != math.Trunc(num) || math.Abs(num) > math.MaxInt32 {
			return types.Value{}, &ValidationError{Field: f.Name, Value: raw, Reason: "must be an integer"}
		}
		if err := validate.Var(int(num), f.tag()); err != nil {
			return types.Value{}, &ValidationError{Field: f.Name, Value: raw, Reason: f.rule()}
		}
		return types.NumericValue(num), nil
	}

	if err := validate.Var(num, f.tag()); err != nil {
		return types.Value{}, &ValidationError{Field: f.Name, Value: raw, Reason: f.rule()}
	}
	return types.NumericValue(num), nil
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", raw)
	}
}
