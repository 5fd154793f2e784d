package oplog

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

type fakePayload struct {
	Text  string         `json:"text"`
	Count int            `json:"count"`
	Tags  map[string]any `json:"tags,omitempty"`
}

func TestJSONCodec_RoundTrip(t *testing.T) {
	codec := JSONCodec{}
	in := fakePayload{
		Text:  "hello",
		Count: 3,
		Tags:  map[string]any{"locale": "en", "retries": "2"},
	}

	data, err := codec.Encode(in)
	if err != nil {
		t.Fatal(err)
	}

	var out fakePayload
	if err := codec.Decode(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.Text != in.Text || out.Count != in.Count || len(out.Tags) != len(in.Tags) {
		t.Errorf("round trip diverged: %+v != %+v", out, in)
	}
}

func TestJSONCodec_Deterministic(t *testing.T) {
	codec := JSONCodec{}
	in := fakePayload{Text: "x", Count: 1, Tags: map[string]any{"b": "2", "a": "1", "c": "3"}}

	first, err := codec.Encode(in)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, err := codec.Encode(in)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encoding is not deterministic:\n%s\n%s", first, again)
		}
	}
}

func TestJSONCodec_VersionMismatch(t *testing.T) {
	codec := JSONCodec{}

	stale, err := json.Marshal(envelope{V: envelopeVersion + 1, Data: json.RawMessage(`"x"`)})
	if err != nil {
		t.Fatal(err)
	}

	var out string
	err = codec.Decode(stale, &out)
	var codecErr *CodecError
	if !errors.As(err, &codecErr) {
		t.Fatalf("expected *CodecError, got: %v", err)
	}
	if codecErr.Op != "decode" {
		t.Errorf("expected decode op, got %q", codecErr.Op)
	}
	if !IsFatal(err) {
		t.Error("codec errors must be fatal")
	}
}

func TestJSONCodec_MalformedData(t *testing.T) {
	codec := JSONCodec{}

	var out fakePayload
	err := codec.Decode([]byte("{not json"), &out)
	var codecErr *CodecError
	if !errors.As(err, &codecErr) {
		t.Fatalf("expected *CodecError, got: %v", err)
	}
}

func TestJSONCodec_EncodeUnsupportedValue(t *testing.T) {
	codec := JSONCodec{}

	_, err := codec.Encode(func() {})
	var codecErr *CodecError
	if !errors.As(err, &codecErr) {
		t.Fatalf("expected *CodecError, got: %v", err)
	}
	if codecErr.Op != "encode" {
		t.Errorf("expected encode op, got %q", codecErr.Op)
	}
}
