package oplog

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Codec converts operation inputs, outputs and errors to and from a
// versioned byte representation. Encoding must be deterministic: the same
// logical value always produces equivalent bytes, since replay compares
// recorded outcomes against nothing but the log itself.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// envelopeVersion is bumped whenever the envelope layout changes
// incompatibly. A record written under a different version cannot be
// decoded and must not be silently coerced.
const envelopeVersion = 1

type envelope struct {
	V    int             `json:"v"`
	Data json.RawMessage `json:"data"`
}

// JSONCodec encodes values as JSON inside a versioned envelope.
// encoding/json sorts map keys, so encoding is deterministic for any
// value built from maps, slices, strings and numbers.
type JSONCodec struct{}

func (JSONCodec) Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &CodecError{Op: "encode", Cause: err}
	}
	buf, err := json.Marshal(envelope{V: envelopeVersion, Data: data})
	if err != nil {
		return nil, &CodecError{Op: "encode", Cause: err}
	}
	return buf, nil
}

func (JSONCodec) Decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var env envelope
	if err := dec.Decode(&env); err != nil {
		return &CodecError{Op: "decode", Cause: err}
	}
	if env.V != envelopeVersion {
		return &CodecError{
			Op:    "decode",
			Cause: fmt.Errorf("unsupported envelope version %d (want %d)", env.V, envelopeVersion),
		}
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return &CodecError{Op: "decode", Cause: err}
	}
	return nil
}
