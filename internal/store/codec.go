package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// Codec encodes a whole record sequence to bytes and back.
type Codec interface {
	// Name identifies the codec in configuration ("json", "cbor").
	Name() string
	// Ext is the file extension used for files written with this codec.
	Ext() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec writes indented JSON arrays, the format of the legacy data files.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }
func (JSONCodec) Ext() string  { return ".json" }

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") }

func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// CBORCodec writes compact CBOR arrays.
type CBORCodec struct{}

func (CBORCodec) Name() string { return "cbor" }
func (CBORCodec) Ext() string  { return ".cbor" }

func (CBORCodec) Marshal(v any) ([]byte, error) { return cbor.Marshal(v) }

func (CBORCodec) Unmarshal(data []byte, v any) error { return cbor.Unmarshal(data, v) }

// CodecByName resolves a codec from its configuration name.
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSONCodec{}, nil
	case "cbor":
		return CBORCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown store codec %q", name)
	}
}
