package rpc

import (
	"context"
	"errors"
	"fmt"
)

// Wire-visible error codes from the JSON-RPC 2.0 reserved space.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// CodeServerErrorMin..CodeServerErrorMax is the implementation-defined
	// fault range available to application handlers.
	CodeServerErrorMin = -32099
	CodeServerErrorMax = -32000
)

// CodeCancelled is the server-fault code reported when a request is cut off
// by its cancellation signal while a response is still owed.
const CodeCancelled = -32001

// Error is a JSON-RPC error object. It implements the error interface so
// handlers can return it directly to control the wire code.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc: %s (code %d)", e.Message, e.Code)
}

// NewError creates an Error with the given code and message.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates an Error with a formatted message.
func Errorf(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrorFromFault maps an arbitrary failure surfaced by resolution,
// unmarshalling, or invocation onto a protocol error object.
//
// A *rpc.Error passes through with its code preserved, including errors
// wrapped with fmt.Errorf %w. Cancellation maps to CodeCancelled. Everything
// else becomes CodeInternalError carrying the failure text. The mapping is
// pure: calling it twice on the same fault yields structurally identical
// errors.
func ErrorFromFault(err error) *Error {
	if err == nil {
		return NewError(CodeInternalError, "internal error")
	}
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Code: CodeCancelled, Message: "request cancelled", Data: err.Error()}
	}
	return &Error{Code: CodeInternalError, Message: err.Error()}
}
