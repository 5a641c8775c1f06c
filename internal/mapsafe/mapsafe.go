// Package mapsafe reads typed values out of loosely typed JSON objects.
package mapsafe

import (
	"encoding/json"
	"math"
)

// Get retrieves a typed value from m. Numbers decoded as float64 or json.Number are
// converted to int when they are integral. If the key is missing, null, or holds a value
// that cannot be converted, it returns the default value.
func Get[T any](m map[string]any, key string, defaultValue T) T {
	val, ok := m[key]
	if !ok || val == nil {
		return defaultValue
	}

	switch any(defaultValue).(type) {
	case int:
		if n, ok := toInt(val); ok {
			return any(n).(T)
		}
	case float64:
		if f, ok := toFloat(val); ok {
			return any(f).(T)
		}
	default:
		if v, ok := val.(T); ok {
			return v
		}
	}
	return defaultValue
}

func toInt(val any) (int, bool) {
	switch x := val.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case json.Number:
		n, err := x.Int64()
		return int(n), err == nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return int(x), true
	}
	return 0, false
}

func toFloat(val any) (float64, bool) {
	switch x := val.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}
