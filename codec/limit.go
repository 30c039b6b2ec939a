package codec

// Limit wraps another codec and rejects payloads larger than MaxDecode bytes
// before they reach Inner. MaxDecode <= 0 disables the check.
type Limit[V any] struct {
	Inner     Codec[V]
	MaxDecode int
}

// Encode forwards to Inner unchecked.
func (c Limit[V]) Encode(v V) ([]byte, error) { return c.Inner.Encode(v) }

// Decode returns *TooLargeError for oversized b without calling Inner.
func (c Limit[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, &TooLargeError{Size: len(b), Limit: c.MaxDecode}
	}
	return c.Inner.Decode(b)
}
