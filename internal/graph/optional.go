package graph

import (
	"bytes"
	"encoding/json"
)

// Optional carries one field of a partial payload. It distinguishes three
// cases that a plain value cannot: absent (not provided), explicit null, and
// a provided value (which may itself be a zero value).
//
// The zero Optional is absent. When decoded from JSON, a key that is present
// marks the field as provided; a literal null marks it as null.
type Optional[T any] struct {
	value T
	set   bool
	null  bool
}

// Some returns a provided Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// Null returns a provided Optional holding an explicit null.
func Null[T any]() Optional[T] {
	return Optional[T]{set: true, null: true}
}

// Provided reports whether the field was present, including explicit null.
func (o Optional[T]) Provided() bool { return o.set }

// IsNull reports whether the field was provided as an explicit null.
func (o Optional[T]) IsNull() bool { return o.set && o.null }

// Get returns the value and whether a non-null value was provided.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set && !o.null
}

// Or returns the provided non-null value, or def.
func (o Optional[T]) Or(def T) T {
	if v, ok := o.Get(); ok {
		return v
	}
	return def
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.null = true
		var zero T
		o.value = zero
		return nil
	}
	o.null = false
	return json.Unmarshal(data, &o.value)
}

// MarshalJSON implements json.Marshaler. Absent and null both encode as null.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if v, ok := o.Get(); ok {
		return json.Marshal(v)
	}
	return []byte("null"), nil
}
