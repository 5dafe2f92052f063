// Package rpc defines the JSON-RPC 2.0 wire model shared by every transport
// and by the dispatch pipeline.
//
// This package implements the message, response, and error object shapes from
// the JSON-RPC 2.0 specification (https://www.jsonrpc.org/specification). It
// holds no behavior beyond classification, construction, and serialization;
// method resolution and invocation live in package contract, and the
// concurrency pipeline lives in package dispatch.
//
// # Messages
//
// A Message is the generic parsed envelope. Its Kind method classifies it:
//
//	msg := &rpc.Message{Method: "math.Add", Params: raw, ID: id}
//	switch msg.Kind() {
//	case rpc.KindRequest:      // has an id; owed exactly one response
//	case rpc.KindNotification: // no id; must never produce a response
//	case rpc.KindResponse:     // a result or error from a peer
//	}
//
// Request ids are opaque: they are carried as json.RawMessage and echoed back
// byte-for-byte, never interpreted.
//
// # Errors
//
// Error carries a wire-visible code from the reserved JSON-RPC space.
// Application handlers may return *rpc.Error to control the code; any other
// error is mapped to CodeInternalError by ErrorFromFault. Codes in
// [CodeServerErrorMin, CodeServerErrorMax] are available for
// application-defined faults.
//
// # Responses
//
// Responses are built through NewResultResponse and NewErrorResponse only,
// which enforce the exactly-one-of result/error invariant. A success with a
// nil result serializes as an explicit "result": null.
package rpc
