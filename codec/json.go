package codec

import (
	"bytes"
	"encoding/json"
)

// JSON serializes values with encoding/json. The zero value is ready to use.
//
// Strict decoding rejects unknown fields and anything after the first value,
// so an asset written for a newer schema fails to load instead of loading
// half-filled.
type JSON[V any] struct {
	Strict bool
}

// Encode marshals v.
func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }

// Decode unmarshals b into a fresh V.
func (c JSON[V]) Decode(b []byte) (V, error) {
	var v V
	if !c.Strict {
		err := json.Unmarshal(b, &v)
		return v, err
	}
	d := json.NewDecoder(bytes.NewReader(b))
	d.DisallowUnknownFields()
	if err := d.Decode(&v); err != nil {
		return v, err
	}
	if d.More() {
		var zero V
		return zero, ErrTrailingData
	}
	return v, nil
}
