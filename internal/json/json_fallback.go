//go:build !((amd64 || arm64) && !nosonic)

package json

import (
	"io"

	jsoniter "github.com/json-iterator/go"
)

var api = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	UseNumber:              true,
	ValidateJsonRawMessage: true,
}.Froze()

func Engine() string { return "jsoniter" }

func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}

func Valid(data []byte) bool {
	return api.Valid(data)
}

func NewDecoder(r io.Reader) Decoder {
	return api.NewDecoder(r)
}

type Decoder interface {
	Decode(v any) error
}
