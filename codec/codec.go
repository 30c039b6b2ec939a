// Package codec turns raw asset bytes into typed resources and back.
//
// Sources deliver bytes; a Codec decides what a "resource" is. The asset
// package combines the two into a cache.Loader.
package codec

// Codec encodes/decodes values V to []byte.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Func adapts a pair of plain functions to Codec. A nil EncodeFn makes
// Encode fail with ErrEncodeUnsupported; decode-only codecs are common for
// assets that are produced by an external pipeline.
type Func[V any] struct {
	EncodeFn func(V) ([]byte, error)
	DecodeFn func([]byte) (V, error)
}

// Encode calls EncodeFn.
func (f Func[V]) Encode(v V) ([]byte, error) {
	if f.EncodeFn == nil {
		return nil, ErrEncodeUnsupported
	}
	return f.EncodeFn(v)
}

// Decode calls DecodeFn.
func (f Func[V]) Decode(b []byte) (V, error) { return f.DecodeFn(b) }
