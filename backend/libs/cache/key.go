package cache

import (
	"encoding/json"
	"reflect"
	"strings"
)

// Key builds a deterministic cache key from a prefix and query parameters. Nil values, empty
// strings, empty slices/maps and nil pointers are dropped, pointers are dereferenced, and the
// remaining parameters are JSON encoded with sorted keys, so logically identical queries map to
// the same key whatever order their fields were set in.
func Key(prefix string, params map[string]interface{}) string {
	normalized := normalizeMap(params)
	data, err := json.Marshal(normalized)
	if err != nil {
		// only reachable with unsupported values such as channels; fall back to a key that
		// never matches a stored entry from a different query
		return prefix + "!invalid"
	}
	return prefix + string(data)
}

func normalizeMap(params map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		if nv, ok := normalizeValue(v); ok {
			out[k] = nv
		}
	}
	return out
}

func normalizeValue(v interface{}) (interface{}, bool) {
	if v == nil {
		return nil, false
	}
	switch tv := v.(type) {
	case string:
		tv = strings.TrimSpace(tv)
		if tv == "" {
			return nil, false
		}
		return tv, true
	case map[string]interface{}:
		m := normalizeMap(tv)
		if len(m) == 0 {
			return nil, false
		}
		return m, true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil, false
		}
		return normalizeValue(rv.Elem().Interface())
	case reflect.Slice, reflect.Map:
		if rv.IsNil() || rv.Len() == 0 {
			return nil, false
		}
	}
	return v, true
}
