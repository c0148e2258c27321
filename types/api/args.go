// Package api holds the JSON shapes exchanged with clients.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

// Args is a parsed JSON object with typed accessors. Numbers are kept as
// json.Number so integers survive without float rounding.
type Args map[string]any

// ErrNotObject is returned when a body is valid JSON but not an object.
var ErrNotObject = errors.New("request body is not a JSON object")

// ParseArgs decodes body into Args.
func ParseArgs(body []byte) (Args, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON object")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return Args(obj), nil
}

// Has reports whether key is present and not null.
func (a Args) Has(key string) bool {
	v, ok := a[key]
	return ok && v != nil
}

func (a Args) String(key string) (string, bool) {
	s, ok := a[key].(string)
	return s, ok
}

// Int returns an integral number. Fractions and strings are rejected.
func (a Args) Int(key string) (int64, bool) { return integer(a[key]) }

func integer(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

func (a Args) Bool(key string) (bool, bool) {
	b, ok := a[key].(bool)
	return b, ok
}

// Object returns a nested object.
func (a Args) Object(key string) (Args, bool) {
	switch o := a[key].(type) {
	case map[string]any:
		return Args(o), true
	case Args:
		return o, true
	}
	return nil, false
}

func (a Args) Array(key string) ([]any, bool) {
	arr, ok := a[key].([]any)
	return arr, ok
}

// Strings returns an array whose elements are all strings.
func (a Args) Strings(key string) ([]string, bool) {
	arr, ok := a.Array(key)
	if !ok {
		return nil, false
	}
	out := make([]string, len(arr))
	for i, v := range arr {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		out[i] = s
	}
	return out, true
}

// Ints returns an array whose elements are all integral numbers.
func (a Args) Ints(key string) ([]int64, bool) {
	arr, ok := a.Array(key)
	if !ok {
		return nil, false
	}
	out := make([]int64, len(arr))
	for i, v := range arr {
		n, ok := integer(v)
		if !ok {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}

// StringMap returns an object whose values are all strings, such as a set of
// translations.
func (a Args) StringMap(key string) (map[string]string, bool) {
	obj, ok := a.Object(key)
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		out[k] = s
	}
	return out, true
}

// DateLayouts are the accepted date argument formats.
var DateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// Time parses a date string in one of DateLayouts, returned in UTC.
func (a Args) Time(key string) (time.Time, bool) {
	s, ok := a.String(key)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Missing returns the keys that are absent or null.
func (a Args) Missing(keys ...string) []string {
	var out []string
	for _, k := range keys {
		if !a.Has(k) {
			out = append(out, k)
		}
	}
	return out
}
