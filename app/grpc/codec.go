// Package grpc serves auth.v1.AuthService over gRPC. There is no .proto file:
// the service is declared by hand in service.go and messages are the structs
// from app/types encoded as JSON. Callers other than AuthServiceClient must
// send every call with grpc.CallContentSubtype(ContentSubtype), which sets the
// content type to application/grpc+json. Calls using the default proto codec
// fail to marshal.
package grpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// ContentSubtype selects the JSON codec; clients pass it with
// grpc.CallContentSubtype.
const ContentSubtype = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec carries the shared request and response structs from app/types
// as JSON, so the service needs no generated protobuf code.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return ContentSubtype
}
