package codec

// Bytes is the identity codec: the resource is the payload itself.
// Decode copies so that callers never alias a source's buffer.
type Bytes struct{}

// Encode returns b unchanged.
func (Bytes) Encode(b []byte) ([]byte, error) { return b, nil }

// Decode returns a copy of b.
func (Bytes) Decode(b []byte) ([]byte, error) { return append([]byte(nil), b...), nil }

// String treats the payload as UTF-8 text without validation.
type String struct{}

// Encode returns the bytes of s.
func (String) Encode(s string) ([]byte, error) { return []byte(s), nil }

// Decode returns b as a string.
func (String) Decode(b []byte) (string, error) { return string(b), nil }
