package ingest

import (
	"io"

	"github.com/ugorji/go/codec"
)

var (
	// jsonEncHandle produces canonical output: map keys in order,
	// indented, so the CLI and audit file reads are diffable
	jsonEncHandle codec.JsonHandle

	jsonDecHandle codec.JsonHandle
)

func init() {
	jsonEncHandle.BasicHandle.EncodeOptions.Canonical = true
	jsonEncHandle.Indent = -1
}

// EncodeResponse encodes a pipeline response to canonical JSON
func EncodeResponse(value interface{}) ([]byte, error) {
	var b []byte
	err := codec.NewEncoderBytes(&b, &jsonEncHandle).Encode(value)
	return b, err
}

// WriteResponse encodes a pipeline response to the writer
func WriteResponse(w io.Writer, value interface{}) error {
	return codec.NewEncoder(w, &jsonEncHandle).Encode(value)
}

// DecodeResponse decodes a JSON-encoded pipeline response
func DecodeResponse(data []byte, result interface{}) error {
	return codec.NewDecoderBytes(data, &jsonDecHandle).Decode(result)
}
