package codec

import "google.golang.org/protobuf/proto"

// Protobuf serializes proto messages of type T. Encoding is deterministic
// and decoding drops unknown fields. Construct with NewProtobuf.
type Protobuf[T proto.Message] struct {
	ctor func() T
	mo   proto.MarshalOptions
	uo   proto.UnmarshalOptions
}

// NewProtobuf returns a codec that decodes into messages from ctor, which
// must return a fresh empty message (func() *pb.Sprite { return &pb.Sprite{} }).
func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{
		ctor: ctor,
		mo:   proto.MarshalOptions{Deterministic: true},
		uo:   proto.UnmarshalOptions{DiscardUnknown: true},
	}
}

// Encode marshals v.
func (c Protobuf[T]) Encode(v T) ([]byte, error) { return c.mo.Marshal(v) }

// Decode unmarshals b into a message from ctor.
func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.ctor()
	err := c.uo.Unmarshal(b, m)
	return m, err
}
