package codec

import (
	"errors"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/types/known/structpb"
)

type sprite struct {
	Name   string    `json:"name" msgpack:"name" cbor:"name"`
	Width  int       `json:"w" msgpack:"w" cbor:"w"`
	Height int       `json:"h" msgpack:"h" cbor:"h"`
	Built  time.Time `json:"built" msgpack:"built" cbor:"built"`
}

func TestCodecs_Sprite(t *testing.T) {
	in := sprite{Name: "logo", Width: 64, Height: 32, Built: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}

	codecs := map[string]Codec[sprite]{
		"json":    JSON[sprite]{},
		"msgpack": Msgpack[sprite]{},
		"cbor":    MustCBOR[sprite](CBOROptions{Deterministic: true}),
	}
	for name, c := range codecs {
		t.Run(name, func(t *testing.T) {
			b, err := c.Encode(in)
			require.NoError(t, err)
			out, err := c.Decode(b)
			require.NoError(t, err)
			assert.Equal(t, in.Name, out.Name)
			assert.Equal(t, in.Width, out.Width)
			assert.True(t, in.Built.Equal(out.Built))
		})
	}
}

func TestCBOR_Deterministic(t *testing.T) {
	c := MustCBOR[map[string]int](CBOROptions{Deterministic: true})
	a, err := c.Encode(map[string]int{"b": 2, "a": 1, "c": 3})
	require.NoError(t, err)
	b, err := c.Encode(map[string]int{"c": 3, "a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCBOR_RejectDupKeys(t *testing.T) {
	// {"a": 1, "a": 2}
	dup := []byte{0xa2, 0x61, 'a', 0x01, 0x61, 'a', 0x02}

	_, err := MustCBOR[map[string]int](CBOROptions{}).Decode(dup)
	require.NoError(t, err)

	_, err = MustCBOR[map[string]int](CBOROptions{RejectDupKeys: true}).Decode(dup)
	var de *cbor.DupMapKeyError
	assert.True(t, errors.As(err, &de), "got %v", err)
}

func TestCBOR_InvalidLimits(t *testing.T) {
	_, err := NewCBOR[sprite](CBOROptions{MaxNestedLevels: 1})
	assert.Error(t, err)
	assert.Panics(t, func() { MustCBOR[sprite](CBOROptions{MaxMapPairs: 1}) })
}

func TestJSON_Strict(t *testing.T) {
	loose := JSON[sprite]{}
	strict := JSON[sprite]{Strict: true}

	extra := []byte(`{"name":"logo","w":1,"alpha":true}`)
	v, err := loose.Decode(extra)
	require.NoError(t, err)
	assert.Equal(t, "logo", v.Name)
	_, err = strict.Decode(extra)
	assert.Error(t, err)

	_, err = strict.Decode([]byte(`{"name":"a"} {"name":"b"}`))
	assert.ErrorIs(t, err, ErrTrailingData)

	v, err = strict.Decode([]byte("{\"name\":\"a\"}\n"))
	require.NoError(t, err)
	assert.Equal(t, "a", v.Name)
}

func TestMsgpack_CustomTag(t *testing.T) {
	type level struct {
		Title string `json:"title"`
		Tiles []int  `json:"tiles"`
	}
	c := Msgpack[level]{Tag: "json", CompactInts: true}
	b, err := c.Encode(level{Title: "one", Tiles: []int{1, 2, 300}})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, msgpack.Unmarshal(b, &raw))
	assert.Contains(t, raw, "title")
	assert.NotContains(t, raw, "Title")

	out, err := c.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 300}, out.Tiles)
}

func TestProtobuf(t *testing.T) {
	c := NewProtobuf(func() *structpb.Struct { return &structpb.Struct{} })
	in, err := structpb.NewStruct(map[string]any{"name": "logo", "w": 64.0})
	require.NoError(t, err)

	b, err := c.Encode(in)
	require.NoError(t, err)
	out, err := c.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, "logo", out.Fields["name"].GetStringValue())
	assert.Equal(t, 64.0, out.Fields["w"].GetNumberValue())
}

func TestLimit(t *testing.T) {
	c := Limit[string]{Inner: String{}, MaxDecode: 4}

	v, err := c.Decode([]byte("abcd"))
	require.NoError(t, err)
	assert.Equal(t, "abcd", v)

	_, err = c.Decode([]byte("abcde"))
	var tl *TooLargeError
	require.True(t, errors.As(err, &tl))
	assert.Equal(t, 5, tl.Size)

	unlimited := Limit[string]{Inner: String{}}
	_, err = unlimited.Decode(make([]byte, 1<<16))
	assert.NoError(t, err)
}

func TestBytes_DecodeCopies(t *testing.T) {
	src := []byte("abc")
	out, err := Bytes{}.Decode(src)
	require.NoError(t, err)
	src[0] = 'x'
	assert.Equal(t, "abc", string(out))
}

func TestFunc_DecodeOnly(t *testing.T) {
	c := Func[int]{DecodeFn: func(b []byte) (int, error) { return len(b), nil }}
	n, err := c.Decode([]byte("four"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = c.Encode(1)
	assert.ErrorIs(t, err, ErrEncodeUnsupported)
}
