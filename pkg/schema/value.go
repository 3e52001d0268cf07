package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/cast"

	"github.com/aretw0/strata/pkg/core"
)

// ValueType is the semantic type of a declared field.
type ValueType string

const (
	String     ValueType = "string"
	Number     ValueType = "number"
	Boolean    ValueType = "boolean"
	Raw        ValueType = "raw"
	Opaque     ValueType = "opaque"
	Mapping    ValueType = "mapping"
	Collection ValueType = "collection"
)

// Valid reports whether t is a known value type.
func (t ValueType) Valid() bool {
	switch t {
	case String, Number, Boolean, Raw, Opaque, Mapping, Collection:
		return true
	}
	return false
}

// Coerce converts v to the in-memory representation of t.
// Nil is always accepted and means "unset".
func (t ValueType) Coerce(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	var (
		out any
		err error
	)
	switch t {
	case String:
		out, err = cast.ToStringE(v)
	case Number:
		out, err = cast.ToFloat64E(v)
	case Boolean:
		out, err = cast.ToBoolE(v)
	case Mapping:
		out, err = toMapping(v)
	case Collection:
		out, err = toCollection(v)
	default:
		return v, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: cannot use %T as %s: %v", core.ErrInvalidValue, v, t, err)
	}
	return out, nil
}

// Encode converts an in-memory value to its stored representation.
// Only opaque values change shape: they are stored as a JSON string.
func (t ValueType) Encode(v any) (any, error) {
	if t != Opaque || v == nil {
		return v, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: opaque value not serializable: %v", core.ErrInvalidValue, err)
	}
	return string(data), nil
}

// Decode converts a stored value back to its in-memory representation.
func (t ValueType) Decode(v any) (any, error) {
	if t != Opaque {
		return t.Coerce(v)
	}

	var data []byte
	switch raw := v.(type) {
	case string:
		data = []byte(raw)
	case []byte:
		data = raw
	default:
		return v, nil
	}

	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: stored opaque value is not valid JSON: %v", core.ErrInvalidValue, err)
	}
	return out, nil
}

func toMapping(v any) (map[string]any, error) {
	if m, err := cast.ToStringMapE(v); err == nil {
		return m, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("not a mapping")
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, nil
}

func toCollection(v any) ([]any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("not a collection")
	}
	out := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		item := rv.Index(i).Interface()
		if !isScalar(item) {
			return nil, fmt.Errorf("element %d (%T) is not a scalar", i, item)
		}
		out = append(out, item)
	}
	return out, nil
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, time.Time:
		return true
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Func, reflect.Chan:
		return false
	}
	return true
}
