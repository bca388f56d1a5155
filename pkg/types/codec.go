package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"

	"github.com/tidwall/gjson"
)

// ErrNotObject is returned when a value that must be a JSON object is something else.
var ErrNotObject = errors.New("types: value is not a JSON object")

// member is one typed key/value pair of an object being serialized.
type member struct {
	key   string
	value any
}

// marshalObject writes the typed members in order and overlays extra on top.
func marshalObject(members []member, extra Extensions) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range members {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(m.key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(m.value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return extra.applyTo(buf.Bytes())
}

// eachMember calls fn once per distinct key of the JSON object in data, in order of
// first appearance. A key that appears more than once gets its last value, as
// JSON.parse does. It reports false, without calling fn, when data is not an object.
func eachMember(data []byte, fn func(key string, value gjson.Result)) bool {
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return false
	}
	var keys []string
	values := make(map[string]gjson.Result)
	root.ForEach(func(key, value gjson.Result) bool {
		k := key.String()
		if _, seen := values[k]; !seen {
			keys = append(keys, k)
		}
		values[k] = value
		return true
	})
	for _, k := range keys {
		fn(k, values[k])
	}
	return true
}

func raw(value gjson.Result) json.RawMessage {
	return json.RawMessage(value.Raw)
}

func asString(value gjson.Result) (string, bool) {
	if value.Type != gjson.String {
		return "", false
	}
	return value.String(), true
}

func asFloat(value gjson.Result) (float64, bool) {
	if value.Type != gjson.Number {
		return 0, false
	}
	f, err := strconv.ParseFloat(value.Raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// asInt accepts integral numbers that fit in an int, including ones written with a
// fraction or exponent such as 40.0 or 1e3.
func asInt(value gjson.Result) (int, bool) {
	if value.Type != gjson.Number {
		return 0, false
	}
	if n, err := strconv.ParseInt(value.Raw, 10, 0); err == nil {
		return int(n), true
	}
	f, ok := asFloat(value)
	if !ok || f != math.Trunc(f) || f < float64(math.MinInt) || f >= -float64(math.MinInt) {
		return 0, false
	}
	return int(f), true
}

// notObject copies data for use as a passthrough value.
func notObject(data []byte) json.RawMessage {
	return append(json.RawMessage(nil), bytes.TrimSpace(data)...)
}
