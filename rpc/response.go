package rpc

import (
	"encoding/json"
	"fmt"
)

// Response is a JSON-RPC response object. It always carries the originating
// request's id and exactly one of a result or an error. Construct responses
// through NewResultResponse and NewErrorResponse; the zero value is not a
// valid response.
type Response struct {
	ID     json.RawMessage
	Result json.RawMessage
	Error  *Error

	isError bool
}

// NewResultResponse builds a success response for the request id. A nil
// result becomes an explicit JSON null. Results that cannot be serialized
// are reported as an internal error response so the caller still gets a
// protocol-compliant reply.
func NewResultResponse(id json.RawMessage, result any) *Response {
	raw, err := json.Marshal(result)
	if err != nil {
		return NewErrorResponse(id, &Error{
			Code:    CodeInternalError,
			Message: fmt.Sprintf("marshal result: %s", err),
		})
	}
	return &Response{ID: id, Result: raw}
}

// NewRawResultResponse builds a success response from an already-encoded
// result value.
func NewRawResultResponse(id, result json.RawMessage) *Response {
	if len(result) == 0 {
		result = json.RawMessage(jsonNull)
	}
	return &Response{ID: id, Result: result}
}

// NewErrorResponse builds an error response for the request id.
func NewErrorResponse(id json.RawMessage, e *Error) *Response {
	if e == nil {
		e = NewError(CodeInternalError, "internal error")
	}
	return &Response{ID: id, Error: e, isError: true}
}

// IsError reports whether the response carries an error object.
func (r *Response) IsError() bool {
	return r.isError
}

// wireResponse controls serialization: result must appear (even as null) on
// success and must be absent on error, which omitempty alone cannot express.
type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r *Response) MarshalJSON() ([]byte, error) {
	w := wireResponse{JSONRPC: Version, ID: r.ID}
	if len(w.ID) == 0 {
		w.ID = json.RawMessage(jsonNull)
	}
	if r.isError {
		w.Error = r.Error
		return json.Marshal(w)
	}
	w.Result = r.Result
	if len(w.Result) == 0 {
		w.Result = json.RawMessage(jsonNull)
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Response) UnmarshalJSON(data []byte) error {
	var w wireResponse
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.JSONRPC != Version {
		return fmt.Errorf("jsonrpc: response version must be %q", Version)
	}
	r.ID = w.ID
	r.Result = w.Result
	r.Error = w.Error
	r.isError = w.Error != nil
	if r.isError {
		r.Result = nil
	}
	return nil
}
