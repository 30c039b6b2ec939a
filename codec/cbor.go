package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// CBOROptions configures NewCBOR. The zero value encodes in preferred,
// unsorted form and decodes with fxamacker's default limits.
type CBOROptions struct {
	// Deterministic selects RFC 8949 Core Deterministic encoding: equal
	// values give equal bytes.
	Deterministic bool

	// MaxNestedLevels caps nesting depth on decode, in [4, 65535]; 0 keeps
	// the library default.
	MaxNestedLevels int
	// MaxMapPairs caps entries per map on decode, at least 16; 0 keeps the
	// library default.
	MaxMapPairs int
	// RejectDupKeys fails Decode on maps with repeated keys.
	RejectDupKeys bool
}

// CBOR serializes values with fxamacker/cbor. Times are written as
// RFC3339Nano strings. Construct with NewCBOR or MustCBOR; the zero value
// is not usable.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

// NewCBOR builds the encode and decode modes for o. Out-of-range limits are
// reported here rather than on first use.
func NewCBOR[V any](o CBOROptions) (CBOR[V], error) {
	eo := cbor.PreferredUnsortedEncOptions()
	if o.Deterministic {
		eo = cbor.CoreDetEncOptions()
	}
	eo.Time = cbor.TimeRFC3339Nano
	em, err := eo.EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}

	do := cbor.DecOptions{
		MaxNestedLevels: o.MaxNestedLevels,
		MaxMapPairs:     o.MaxMapPairs,
	}
	if o.RejectDupKeys {
		do.DupMapKey = cbor.DupMapKeyEnforcedAPF
	}
	dm, err := do.DecMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{enc: em, dec: dm}, nil
}

// MustCBOR is NewCBOR for options known to be valid; it panics on error.
func MustCBOR[V any](o CBOROptions) CBOR[V] {
	c, err := NewCBOR[V](o)
	if err != nil {
		panic(err)
	}
	return c
}

// Encode marshals v.
func (c CBOR[V]) Encode(v V) ([]byte, error) { return c.enc.Marshal(v) }

// Decode unmarshals b into a fresh V within the configured limits.
func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	err := c.dec.Unmarshal(b, &v)
	return v, err
}
