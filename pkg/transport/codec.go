package transport

import (
	"bytes"
	"encoding/gob"
)

// GobCodec is the grpc.Codec this package forces on both client and server
// connections. The pack this module was grounded on imports grpc together
// with protoc-generated stubs that are not present here, so instead of
// hand-fabricating proto.Message implementations, RPC envelopes are plain
// Go structs carried over gRPC's framing via grpc.ForceCodec — a
// documented escape hatch for non-protobuf payloads.
type GobCodec struct{}

// Name implements encoding.Codec.
func (GobCodec) Name() string { return "gob" }

// Marshal implements encoding.Codec.
func (GobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal implements encoding.Codec.
func (GobCodec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
