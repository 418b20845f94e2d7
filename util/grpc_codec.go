package util

import (
	jsoniter "github.com/json-iterator/go"
	"google.golang.org/grpc/encoding"
)

// JSONCodecName is the gRPC content subtype of messages encoded by jsonCodec.
const JSONCodecName = "json"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonCodec lets plain Go structs travel over gRPC.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return JSONCodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
