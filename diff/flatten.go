package diff

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Flatten turns any JSON-marshalable record into field name -> string values.
// Null fields are left out, nested objects are flattened with dotted names and
// arrays keep their element order.
func Flatten(record any) (map[string][]string, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("record is not a JSON object: %w", err)
	}

	out := make(map[string][]string, len(fields))
	if err := flattenInto(out, "", fields); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenInto(out map[string][]string, prefix string, fields map[string]any) error {
	for name, v := range fields {
		if prefix != "" {
			name = prefix + "." + name
		}
		if nested, ok := v.(map[string]any); ok {
			if err := flattenInto(out, name, nested); err != nil {
				return err
			}
			continue
		}
		if v == nil {
			continue
		}
		values, err := AssertStringSlice(v)
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		out[name] = values
	}
	return nil
}

// AssertStringSlice converts a value decoded by encoding/json, a scalar or an
// array of scalars, to strings.
func AssertStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case []any:
		result := make([]string, len(val))
		for i, item := range val {
			str, err := scalarString(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			result[i] = str
		}
		return result, nil

	default:
		str, err := scalarString(v)
		if err != nil {
			return nil, err
		}
		return []string{str}, nil
	}
}

func scalarString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
	case json.Number:
		return val.String(), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("expected scalar, got %T", v)
	}
}
