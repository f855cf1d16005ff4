package habits

import (
	"bytes"
	"encoding/json"
)

// Optional is a request field that distinguishes "absent", "null" and a value.
//
// Set is true when the key was present in the request body. Null is true when
// it was present with a JSON null.
type Optional[T any] struct {
	Set  bool
	Null bool
	V    T
}

// Some returns a present, non-null Optional.
func Some[T any](v T) Optional[T] { return Optional[T]{Set: true, V: v} }

// Null returns a present Optional holding JSON null.
func Null[T any]() Optional[T] { return Optional[T]{Set: true, Null: true} }

// Has reports a present, non-null value.
func (o Optional[T]) Has() bool { return o.Set && !o.Null }

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Null = true
		return nil
	}
	return json.Unmarshal(b, &o.V)
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Has() {
		return []byte("null"), nil
	}
	return json.Marshal(o.V)
}
