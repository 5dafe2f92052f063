// Package stream serves a dispatch pipeline over a byte stream such as
// stdin/stdout or a socket.
//
// A Codec frames discrete messages on the stream. JSONCodec is plain
// newline-delimited JSON; CBORCodec wraps each JSON-encoded message in a
// CBOR byte string for transports that want self-delimiting binary frames.
package stream

import (
	"encoding/json"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/mnehpets/onerpc/rpc"
)

// Codec frames messages and responses on a byte stream.
type Codec interface {
	// Name identifies the codec in logs and negotiation.
	Name() string
	NewDecoder(r io.Reader) Decoder
	NewEncoder(w io.Writer) Encoder
}

// Decoder reads one framed message per call. It returns io.EOF at a clean
// end of stream.
type Decoder interface {
	Decode(*rpc.Message) error
}

// Encoder writes one framed response per call.
type Encoder interface {
	Encode(*rpc.Response) error
}

// JSONCodec frames messages as newline-delimited JSON text.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) NewDecoder(r io.Reader) Decoder { return jsonDecoder{json.NewDecoder(r)} }

func (JSONCodec) NewEncoder(w io.Writer) Encoder { return jsonEncoder{json.NewEncoder(w)} }

type jsonDecoder struct{ dec *json.Decoder }

func (d jsonDecoder) Decode(m *rpc.Message) error { return d.dec.Decode(m) }

type jsonEncoder struct{ enc *json.Encoder }

func (e jsonEncoder) Encode(r *rpc.Response) error { return e.enc.Encode(r) }

// CBORCodec frames each JSON-encoded message as a CBOR byte string. The
// payload stays JSON so wire semantics (opaque ids, raw params) are
// identical to JSONCodec; only the framing differs.
type CBORCodec struct{}

func (CBORCodec) Name() string { return "cbor" }

func (CBORCodec) NewDecoder(r io.Reader) Decoder { return cborDecoder{cbor.NewDecoder(r)} }

func (CBORCodec) NewEncoder(w io.Writer) Encoder { return cborEncoder{cbor.NewEncoder(w)} }

type cborDecoder struct{ dec *cbor.Decoder }

func (d cborDecoder) Decode(m *rpc.Message) error {
	var frame []byte
	if err := d.dec.Decode(&frame); err != nil {
		return err
	}
	return json.Unmarshal(frame, m)
}

type cborEncoder struct{ enc *cbor.Encoder }

func (e cborEncoder) Encode(r *rpc.Response) error {
	frame, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return e.enc.Encode(frame)
}
