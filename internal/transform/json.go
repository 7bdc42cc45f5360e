package transform

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/topicstore/internal/broker"
)

func jsonText(v any) (string, error) {
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case []byte:
		s = string(val)
	default:
		return "", fmt.Errorf("%w: %T", ErrNotJSON, v)
	}
	if !gjson.Valid(s) {
		return "", ErrNotJSON
	}
	return s, nil
}

// JSONField replaces a JSON payload with the value at path (gjson syntax).
// Payloads without the field are dropped.
func JSONField(path string) broker.TransformFunc {
	return func(v any) (any, error) {
		s, err := jsonText(v)
		if err != nil {
			return nil, err
		}
		res := gjson.Get(s, path)
		if !res.Exists() {
			return nil, broker.ErrDrop
		}
		return res.Value(), nil
	}
}

// JSONSet sets the field at path (sjson syntax) of a JSON payload to value
// and returns the rewritten document as a string.
func JSONSet(path string, value any) broker.TransformFunc {
	return func(v any) (any, error) {
		s, err := jsonText(v)
		if err != nil {
			return nil, err
		}
		out, err := sjson.Set(s, path, value)
		if err != nil {
			return nil, fmt.Errorf("set %s: %w", path, err)
		}
		return out, nil
	}
}
