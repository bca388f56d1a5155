package types

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Extensions holds the JSON members a typed structure does not model, in the order
// they were decoded. Values are kept as raw JSON and written back verbatim, so fields
// of the public API that this package does not know about are never dropped.
//
// When a structure is serialized its typed members are written first and the
// extensions are overlaid afterwards: a key present in both places takes the
// extension's value.
type Extensions struct {
	keys   []string
	values map[string]json.RawMessage
}

// Set stores value under key. A new key is appended; an existing key keeps its position.
func (e *Extensions) Set(key string, value json.RawMessage) {
	if e.values == nil {
		e.values = make(map[string]json.RawMessage)
	}
	if _, ok := e.values[key]; !ok {
		e.keys = append(e.keys, key)
	}
	e.values[key] = value
}

// Get returns the raw value stored under key.
func (e Extensions) Get(key string) (json.RawMessage, bool) {
	v, ok := e.values[key]
	return v, ok
}

// Delete removes key from the bag.
func (e *Extensions) Delete(key string) {
	if _, ok := e.values[key]; !ok {
		return
	}
	delete(e.values, key)
	for i, k := range e.keys {
		if k == key {
			e.keys = append(e.keys[:i:i], e.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (e Extensions) Keys() []string {
	return append([]string(nil), e.keys...)
}

// Len returns the number of members.
func (e Extensions) Len() int {
	return len(e.keys)
}

// Clone returns a copy that shares no mutable state with e. Raw values are immutable
// by convention and are shared.
func (e Extensions) Clone() Extensions {
	if len(e.keys) == 0 {
		return Extensions{}
	}
	c := Extensions{
		keys:   append([]string(nil), e.keys...),
		values: make(map[string]json.RawMessage, len(e.values)),
	}
	for k, v := range e.values {
		c.values[k] = v
	}
	return c
}

// MarshalJSON writes the bag as a standalone JSON object.
func (e Extensions) MarshalJSON() ([]byte, error) {
	return e.applyTo([]byte("{}"))
}

// UnmarshalJSON reads every member of a JSON object into the bag.
func (e *Extensions) UnmarshalJSON(data []byte) error {
	*e = Extensions{}
	if !eachMember(data, func(key string, value gjson.Result) {
		e.Set(key, json.RawMessage(value.Raw))
	}) {
		return fmt.Errorf("%w: extensions", ErrNotObject)
	}
	return nil
}

// applyTo overlays the members onto obj, which must hold a JSON object. Members that
// already exist in obj are replaced in place, new ones are appended.
func (e Extensions) applyTo(obj []byte) ([]byte, error) {
	var err error
	for _, key := range e.keys {
		value := e.values[key]
		if key == "" {
			// sjson cannot address the empty key.
			obj, err = appendMember(obj, key, value)
		} else {
			obj, err = sjson.SetRawBytes(obj, gjson.Escape(key), value)
		}
		if err != nil {
			return nil, fmt.Errorf("set member %q: %w", key, err)
		}
	}
	return obj, nil
}

// appendMember adds key:value before the closing brace of obj.
func appendMember(obj []byte, key string, value json.RawMessage) ([]byte, error) {
	obj = bytes.TrimRight(obj, " \t\r\n")
	if len(obj) < 2 || obj[len(obj)-1] != '}' {
		return nil, ErrNotObject
	}
	k, err := json.Marshal(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(obj)+len(k)+len(value)+2)
	out = append(out, obj[:len(obj)-1]...)
	if len(bytes.TrimSpace(obj[1:len(obj)-1])) > 0 {
		out = append(out, ',')
	}
	out = append(out, k...)
	out = append(out, ':')
	out = append(out, value...)
	return append(out, '}'), nil
}
