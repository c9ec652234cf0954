// Package optional provides a value that is either present or absent.
// JSON null and a missing JSON field both decode to an absent value.
package optional

import (
	"bytes"
	"encoding/json"
)

// Maybe is the type-erased view of a Value, used by code that only needs
// to know whether something was supplied.
type Maybe interface {
	IsPresent() bool
	Any() any
}

// Value holds either a T or nothing.
type Value[T any] struct {
	v  T
	ok bool
}

// Some returns a present value.
func Some[T any](v T) Value[T] {
	return Value[T]{v: v, ok: true}
}

// None returns an absent value.
func None[T any]() Value[T] {
	return Value[T]{}
}

// Get returns the value and whether it is present.
func (o Value[T]) Get() (T, bool) {
	return o.v, o.ok
}

// IsPresent reports whether a value was supplied.
func (o Value[T]) IsPresent() bool {
	return o.ok
}

// Any returns the held value, or nil when absent.
func (o Value[T]) Any() any {
	if !o.ok {
		return nil
	}
	return o.v
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Value[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Value[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// MarshalJSON implements json.Marshaler. Absent values encode as null.
func (o Value[T]) MarshalJSON() ([]byte, error) {
	if !o.ok {
		return []byte("null"), nil
	}
	return json.Marshal(o.v)
}
