package dto

import "encoding/json"

// Optional records whether a JSON field was present in a payload.
// An explicit null counts as present and leaves Value at its zero value.
type Optional[T any] struct {
	Set   bool
	Value T
}

// Some returns a present Optional
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		var zero T
		o.Value = zero
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}
