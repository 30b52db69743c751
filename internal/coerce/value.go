// Package coerce turns parsed-but-untrusted JSON trees into typed domain
// values. Every function here is total: wrong or missing fields become
// defaults, never errors.
package coerce

import (
	"strconv"
	"strings"
)

// Field returns v[key] when v is an object, otherwise nil.
func Field(v interface{}, key string) interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return m[key]
	}
	return nil
}

// AsString renders scalars as strings. nil, objects and arrays yield def.
func AsString(v interface{}, def string) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return def
	}
}

// AsOptionalString returns v only when it is already a string.
func AsOptionalString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// AsNumber returns v only when it is already a number.
func AsNumber(v interface{}) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

// AsBool applies truthiness: strings parse as booleans when they can and are
// otherwise true when non-blank; numbers are true when non-zero.
func AsBool(v interface{}, def bool) bool {
	switch t := v.(type) {
	case nil:
		return def
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return b
		}
		return strings.TrimSpace(t) != ""
	default:
		return true
	}
}

// AsArray returns v when it is an array, otherwise an empty slice.
func AsArray(v interface{}) []interface{} {
	if a, ok := v.([]interface{}); ok {
		return a
	}
	return []interface{}{}
}

// IsArray reports whether v is an array.
func IsArray(v interface{}) bool {
	_, ok := v.([]interface{})
	return ok
}

// AsObject returns v when it is an object, otherwise an empty map.
func AsObject(v interface{}) map[string]interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

// AsStrings coerces every element of an array; non-arrays yield an empty slice.
func AsStrings(v interface{}) []string {
	items := AsArray(v)
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, AsString(item, ""))
	}
	return out
}
