package model

import (
	"bytes"
	"encoding/json"
)

// Optional distinguishes a field that was omitted from a payload, a field
// sent as an explicit null, and a field carrying a value.
type Optional[T any] struct {
	Value T
	Set   bool
	Null  bool
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

// HasValue reports whether the field was sent with a non-null value.
func (o Optional[T]) HasValue() bool {
	return o.Set && !o.Null
}

// IsNull reports whether the field was sent as an explicit null.
func (o Optional[T]) IsNull() bool {
	return o.Set && o.Null
}

func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.HasValue()
}

func (o Optional[T]) OrElse(fallback T) T {
	if o.HasValue() {
		return o.Value
	}
	return fallback
}

// ValidationValue exposes the wrapped value to the request validator as a
// pointer, so a present zero value is still checked. Absent and null fields
// yield nil and "omitempty" rules skip them.
func (o Optional[T]) ValidationValue() any {
	if !o.HasValue() {
		return nil
	}
	v := o.Value
	return &v
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		o.Value = zero
		o.Null = true
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.HasValue() {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// IsZero lets `omitzero` drop absent fields when encoding.
func (o Optional[T]) IsZero() bool {
	return !o.Set
}
