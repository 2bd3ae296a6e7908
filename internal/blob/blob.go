// Package blob locates and decodes the JSON payload embedded in a log entry.
//
// Decoded values are kept as the generic JSON tree (map[string]any, []any,
// string, float64, bool, nil). Envelope fields whose values are themselves
// JSON-encoded strings are unwrapped recursively, with a depth bound to
// guarantee termination on pathological input.
package blob

import (
	"encoding/json"
	"strconv"
	"strings"
)

// maxUnwrapDepth bounds envelope recursion. Real messages nest at most a
// handful of levels; anything deeper is treated as opaque.
const maxUnwrapDepth = 8

// envelopeKeys are field names whose string values may themselves be
// JSON-encoded messages.
var envelopeKeys = [...]string{"payload", "Payload", "request"}

// Object is a decoded JSON object.
type Object map[string]any

// Extract finds the first '[' or '{' in text, decodes one JSON value from
// that offset and unwraps nested envelopes. It returns the result and true
// only when the final value is object-shaped; anything else is dropped.
func Extract(text string) (Object, bool) {
	i := strings.IndexAny(text, "[{")
	if i < 0 {
		return nil, false
	}
	v, err := decodeOne(text[i:])
	if err != nil {
		return nil, false
	}
	v = unwrap(v, 0)
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	return Object(obj), true
}

// decodeOne decodes a single leading JSON value, ignoring trailing text.
func decodeOne(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func unwrap(v any, depth int) any {
	obj, ok := v.(map[string]any)
	if !ok || depth >= maxUnwrapDepth {
		return v
	}
	// Client-to-match-service messages carry a payload the session layer
	// must see in its enclosing shape.
	if _, ok := obj["clientToMatchServiceMessageType"]; ok {
		return v
	}
	for _, key := range envelopeKeys {
		inner, present := obj[key]
		if !present {
			continue
		}
		if s, isStr := inner.(string); isStr {
			decoded, err := decodeOne(s)
			if err != nil {
				// Not an encoded envelope after all; keep the raw string.
				return s
			}
			return unwrap(decoded, depth+1)
		}
		return unwrap(inner, depth+1)
	}
	return v
}

// TimestampValue returns the raw timestamp field of a payload, searching the
// top level and the known nesting paths used by the client.
func TimestampValue(o Object) (any, bool) {
	if v, ok := o["timestamp"]; ok {
		return v, true
	}
	if v, ok := o.Object("payloadObject")["timestamp"]; ok {
		return v, true
	}
	if v, ok := o.Object("params", "payloadObject")["timestamp"]; ok {
		return v, true
	}
	return nil, false
}

// Has reports whether key is present.
func (o Object) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// Str returns the string at key, or "" when absent or not a string.
func (o Object) Str(key string) string {
	s, _ := o[key].(string)
	return s
}

// Int returns the integer at key. JSON numbers and numeric strings both
// resolve; ok is false otherwise.
func (o Object) Int(key string) (int, bool) {
	return AsInt(o[key])
}

// Object returns the nested object at the given key path, or an empty
// Object when any step is absent or not an object. The result is always
// safe to index.
func (o Object) Object(path ...string) Object {
	cur := o
	for _, key := range path {
		next, ok := cur[key].(map[string]any)
		if !ok {
			return Object{}
		}
		cur = Object(next)
	}
	return cur
}

// List returns the slice at key, or nil.
func (o Object) List(key string) []any {
	l, _ := o[key].([]any)
	return l
}

// Matches reports whether the value nested at path equals expect.
func (o Object) Matches(expect any, path ...string) bool {
	var cur any = map[string]any(o)
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return false
		}
		cur, ok = m[key]
		if !ok {
			return false
		}
	}
	return cur == expect
}

// AsInt coerces a JSON value (float64, json string, int) to an int.
func AsInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		out, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return out, true
	default:
		return 0, false
	}
}

// IntList coerces a JSON array into ints, skipping non-numeric elements.
func IntList(l []any) []int {
	out := make([]int, 0, len(l))
	for _, v := range l {
		if n, ok := AsInt(v); ok {
			out = append(out, n)
		}
	}
	return out
}
