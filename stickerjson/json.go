// Package stickerjson picks the fastest JSON codec available for the
// platform. Both platform clients and the update intake decode through it.
package stickerjson

import (
	"encoding/json"
	"io"
	"runtime"

	"github.com/bytedance/sonic"
	jsoniter "github.com/json-iterator/go"
)

const UseSonic = runtime.GOARCH == "amd64" && runtime.GOOS == "linux"

var iter = jsoniter.ConfigCompatibleWithStandardLibrary

// RawMessage is a raw encoded JSON value, decoded lazily by the caller.
type RawMessage = json.RawMessage

func Unmarshal(data []byte, v any) error {
	if UseSonic {
		return sonic.Unmarshal(data, v)
	}

	return iter.Unmarshal(data, v)
}

func UnmarshalReader(reader io.Reader, v any) error {
	if UseSonic {
		return sonic.ConfigDefault.NewDecoder(reader).Decode(v)
	}

	return iter.NewDecoder(reader).Decode(v)
}

func Marshal(v any) ([]byte, error) {
	if UseSonic {
		return sonic.Marshal(v)
	}

	return iter.Marshal(v)
}

func MarshalToWriter(writer io.Writer, v any) error {
	if UseSonic {
		return sonic.ConfigDefault.NewEncoder(writer).Encode(v)
	}

	return iter.NewEncoder(writer).Encode(v)
}
