package archive

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// object is a JSON object that keeps keys in insertion order.
type object struct {
	keys []string
	vals map[string]any
}

func newObject() *object {
	return &object{vals: map[string]any{}}
}

func (o *object) set(key string, v any) {
	if _, ok := o.vals[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = v
}

func (o *object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := marshalValue(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := marshalValue(o.vals[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// fields is a decoded JSON object whose keys are consumed as they are read,
// so the leftovers can be reported.
type fields map[string]any

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case json.Number, float64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return "unknown"
}

func typeError(key, want string, got any) error {
	return loadErrorf("'%s': expected %s, got %s", key, want, jsonType(got))
}

func (f fields) pop(key string) (any, bool) {
	v, ok := f[key]
	delete(f, key)
	return v, ok
}

func (f fields) popString(key string) (string, bool, error) {
	v, ok := f.pop(key)
	if !ok {
		return "", false, nil
	}
	s, isStr := v.(string)
	if !isStr {
		return "", true, typeError(key, "a string", v)
	}
	return s, true, nil
}

// popText accepts a string or an array of strings, which is concatenated.
func (f fields) popText(key string) (string, bool, error) {
	v, ok := f.pop(key)
	if !ok {
		return "", false, nil
	}
	switch v := v.(type) {
	case string:
		return v, true, nil
	case []any:
		var b strings.Builder
		for _, item := range v {
			s, isStr := item.(string)
			if !isStr {
				return "", true, loadErrorf("'%s': expected an array of strings, got an array containing %s", key, jsonType(item))
			}
			b.WriteString(s)
		}
		return b.String(), true, nil
	}
	return "", true, typeError(key, "a string or an array of strings", v)
}

func (f fields) popStrings(key string) ([]string, bool, error) {
	v, ok := f.pop(key)
	if !ok {
		return nil, false, nil
	}
	items, isList := v.([]any)
	if !isList {
		return nil, true, typeError(key, "an array of strings", v)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, isStr := item.(string)
		if !isStr {
			return nil, true, loadErrorf("'%s': expected an array of strings, got an array containing %s", key, jsonType(item))
		}
		out = append(out, s)
	}
	return out, true, nil
}

func (f fields) popBool(key string) (bool, bool, error) {
	v, ok := f.pop(key)
	if !ok {
		return false, false, nil
	}
	b, isBool := v.(bool)
	if !isBool {
		return false, true, typeError(key, "a boolean", v)
	}
	return b, true, nil
}

func (f fields) popObject(key string) (map[string]any, bool, error) {
	v, ok := f.pop(key)
	if !ok {
		return nil, false, nil
	}
	m, isObj := v.(map[string]any)
	if !isObj {
		return nil, true, typeError(key, "an object", v)
	}
	return m, true, nil
}

func (f fields) rest() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyFields(m map[string]any) fields {
	f := make(fields, len(m))
	for k, v := range m {
		f[k] = v
	}
	return f
}
