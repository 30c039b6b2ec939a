package codec

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// Msgpack serializes values with vmihailenco/msgpack/v5. The zero value is
// ready to use and reads `msgpack:"name"` tags.
type Msgpack[V any] struct {
	// Tag names another struct tag to take field names from ("json" lets
	// one struct serve both formats). Empty keeps msgpack's own tag.
	Tag string
	// CompactInts writes integers in the smallest msgpack type that holds them.
	CompactInts bool
}

// Encode marshals v.
func (c Msgpack[V]) Encode(v V) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if c.Tag != "" {
		enc.SetCustomStructTag(c.Tag)
	}
	enc.UseCompactInts(c.CompactInts)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode unmarshals b into a fresh V.
func (c Msgpack[V]) Decode(b []byte) (V, error) {
	var v V
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	if c.Tag != "" {
		dec.SetCustomStructTag(c.Tag)
	}
	err := dec.Decode(&v)
	return v, err
}
