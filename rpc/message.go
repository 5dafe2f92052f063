package rpc

import (
	"bytes"
	"encoding/json"
)

// Version is the protocol version string required in every message.
const Version = "2.0"

// Kind classifies a parsed Message.
type Kind int

const (
	// KindInvalid marks a message that is not a valid request, notification,
	// or response (e.g. missing both method and result/error).
	KindInvalid Kind = iota
	// KindRequest is a call with an id; it is owed exactly one response.
	KindRequest
	// KindNotification is a call without an id; it must never produce a response.
	KindNotification
	// KindResponse is a result or error produced by a peer.
	KindResponse
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNotification:
		return "notification"
	case KindResponse:
		return "response"
	default:
		return "invalid"
	}
}

// Message is the generic protocol envelope before it is known to be a
// request, notification, or response. Fields not present on the wire are
// left zero.
//
// ID and Params are kept as raw JSON: ids are opaque and echoed back
// unmodified, and params are decoded only once a method signature has been
// resolved.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

var jsonNull = []byte("null")

// HasID reports whether the message carries a non-null id.
func (m *Message) HasID() bool {
	return len(m.ID) > 0 && !bytes.Equal(m.ID, jsonNull)
}

// Kind classifies the message. A method name makes it a request or
// notification depending on the presence of an id; a result or error makes
// it a response; anything else is invalid.
func (m *Message) Kind() Kind {
	switch {
	case m.Method != "" && m.HasID():
		return KindRequest
	case m.Method != "":
		return KindNotification
	case len(m.Result) > 0 || m.Error != nil:
		return KindResponse
	default:
		return KindInvalid
	}
}

// IsCall reports whether the message is request-shaped (request or
// notification) and therefore eligible for dispatch.
func (m *Message) IsCall() bool {
	k := m.Kind()
	return k == KindRequest || k == KindNotification
}
