package codec

import (
	"errors"
	"fmt"
)

// ErrEncodeUnsupported is returned by decode-only codecs.
var ErrEncodeUnsupported = errors.New("codec: encode not supported")

// ErrTrailingData is returned by strict decoders when input continues past
// the first value.
var ErrTrailingData = errors.New("codec: trailing data after value")

// TooLargeError is returned by Limit when a payload exceeds MaxDecode.
type TooLargeError struct {
	Size  int
	Limit int
}

// Error implements error.
func (e *TooLargeError) Error() string {
	return fmt.Sprintf("codec: payload too large: %d > %d", e.Size, e.Limit)
}
