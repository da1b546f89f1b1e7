package alerts

import (
	"fmt"
	"strings"
)

// RawRecord is one decoded source record: arbitrary string keys mapped to
// scalar (or nested map) values. Field access goes through ordered
// alias-list lookup only; there is no reflection-based discovery.
type RawRecord map[string]interface{}

// Lookup returns the first non-empty value found by trying each alias in
// order. Aliases may use dot notation for nested maps (e.g. "location.city").
func (r RawRecord) Lookup(aliases []string) (string, bool) {
	for _, alias := range aliases {
		if v, ok := r.get(alias); ok {
			s := stringify(v)
			if s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func (r RawRecord) get(path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	current := interface{}(map[string]interface{}(r))
	for _, part := range parts {
		switch v := current.(type) {
		case map[string]interface{}:
			next, ok := v[part]
			if !ok {
				return nil, false
			}
			current = next
		case map[string]string:
			next, ok := v[part]
			if !ok {
				return nil, false
			}
			current = next
		default:
			return nil, false
		}
	}
	if current == nil {
		return nil, false
	}
	return current, true
}

// stringify renders a scalar record value as a string. Floats that carry
// integral values (the common case after JSON decoding) drop the ".0".
func stringify(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	case bool:
		return fmt.Sprintf("%t", val)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}
