package checkpoint

import (
	"encoding/json"

	"github.com/hashicorp/go-msgpack/codec"

	"github.com/randalmurphal/rxgraph/pkg/rxgraph/registry"
)

// Codec encodes operator state structs into blobs.
// Operator state types use exported fields so any codec can round-trip them.
type Codec interface {
	// Name identifies the codec in envelopes and configuration.
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type jsonCodec struct{}

func (jsonCodec) Name() string                       { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type msgpackCodec struct {
	handle *codec.MsgpackHandle
}

func (msgpackCodec) Name() string { return "msgpack" }

func (m msgpackCodec) Marshal(v any) ([]byte, error) {
	var out []byte
	if err := codec.NewEncoderBytes(&out, m.handle).Encode(v); err != nil {
		return nil, err
	}
	return out, nil
}

func (m msgpackCodec) Unmarshal(data []byte, v any) error {
	return codec.NewDecoderBytes(data, m.handle).Decode(v)
}

var (
	// JSON is the default codec.
	JSON Codec = jsonCodec{}

	// Msgpack encodes state with MessagePack; blobs are smaller than JSON.
	Msgpack Codec = msgpackCodec{handle: &codec.MsgpackHandle{}}
)

var codecs = func() *registry.Registry[Codec] {
	r := registry.New[Codec]("codec")
	r.Register(JSON.Name(), JSON)
	r.Register(Msgpack.Name(), Msgpack)
	return r
}()

// RegisterCodec makes a codec available to CodecByName and Restore.
func RegisterCodec(c Codec) {
	codecs.Register(c.Name(), c)
}

// CodecByName resolves a registered codec.
func CodecByName(name string) (Codec, error) {
	return codecs.Resolve(name)
}
