package httprpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/mnehpets/onerpc/dispatch"
	"github.com/mnehpets/onerpc/rpc"
)

// StatusError is a transport-level error that maps directly to an HTTP
// status code. Processor and handler errors that are not StatusErrors render
// as 500.
type StatusError struct {
	Status  int
	Message string
	Cause   error
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *StatusError) Unwrap() error { return e.Cause }

// Error creates a StatusError.
func Error(status int, message string) error {
	return &StatusError{Status: status, Message: message}
}

// defaultMaxBodyBytes bounds the request body a handler will read.
const defaultMaxBodyBytes int64 = 1 << 20 // 1 MiB

// Handler is the http.Handler for a JSON-RPC route.
type Handler struct {
	pipe         *dispatch.Pipeline
	processors   []Processor
	log          *zap.Logger
	maxBodyBytes int64
	session      func(*http.Request) *dispatch.Session
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithProcessors sets the processor chain, run in order before RPC handling.
func WithProcessors(ps ...Processor) HandlerOption {
	return func(h *Handler) { h.processors = ps }
}

// WithHandlerLogger sets the transport logger.
func WithHandlerLogger(l *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

// WithMaxBodyBytes overrides the request body size limit.
func WithMaxBodyBytes(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// WithSessionFunc derives a dispatch session from each HTTP request, made
// visible to handlers through their context.
func WithSessionFunc(fn func(*http.Request) *dispatch.Session) HandlerOption {
	return func(h *Handler) { h.session = fn }
}

// NewHandler creates the handler for a pipeline.
func NewHandler(pipe *dispatch.Pipeline, opts ...HandlerOption) *Handler {
	h := &Handler{
		pipe:         pipe,
		log:          zap.NewNop(),
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Run each processor in order, ending at the RPC handler.
	var run func(i int, w http.ResponseWriter, r *http.Request) error
	run = func(i int, w http.ResponseWriter, r *http.Request) error {
		if i < len(h.processors) {
			return h.processors[i].Process(w, r, func(w http.ResponseWriter, r *http.Request) error {
				return run(i+1, w, r)
			})
		}
		return h.handleRPC(w, r)
	}

	if err := run(0, w, r); err != nil {
		status := http.StatusInternalServerError
		var se *StatusError
		if errors.As(err, &se) && se.Status >= 100 {
			status = se.Status
		}
		if status == http.StatusNoContent {
			w.WriteHeader(status)
			return
		}
		http.Error(w, err.Error(), status)
	}
}

func (h *Handler) handleRPC(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodPost {
		return Error(http.StatusMethodNotAllowed, "JSON-RPC requires POST")
	}
	// Per JSON-RPC over HTTP, Content-Type must be application/json.
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return Error(http.StatusUnsupportedMediaType, "Content-Type must be application/json")
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return Error(http.StatusRequestEntityTooLarge, "request body too large")
		}
		return &StatusError{Status: http.StatusBadRequest, Message: "read body", Cause: err}
	}

	var session *dispatch.Session
	if h.session != nil {
		session = h.session(r)
	}
	return h.handleBody(w, r, body, session)
}

// handleBody parses the request body into envelopes, runs the call-shaped
// ones through the pipeline, and renders the combined responses.
func (h *Handler) handleBody(w http.ResponseWriter, r *http.Request, body []byte, session *dispatch.Session) error {
	var raws []json.RawMessage
	single := true

	trimmed := leftTrim(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		single = false
		if err := json.Unmarshal(body, &raws); err != nil {
			return writeResponses(w, []*rpc.Response{parseErrorResponse()}, true)
		}
		if len(raws) == 0 {
			return writeResponses(w, []*rpc.Response{
				rpc.NewErrorResponse(nil, rpc.NewError(rpc.CodeInvalidRequest, "empty batch")),
			}, true)
		}
	} else {
		raws = []json.RawMessage{body}
	}

	// Envelopes that fail validation never enter the pipeline; their error
	// responses are appended after the processed ones. JSON-RPC batch
	// responses are matched by id, not position.
	msgs := make([]*rpc.Message, 0, len(raws))
	var invalid []*rpc.Response
	for _, raw := range raws {
		var msg rpc.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			invalid = append(invalid, parseErrorResponse())
			continue
		}
		if msg.JSONRPC != rpc.Version || !msg.IsCall() {
			invalid = append(invalid, rpc.NewErrorResponse(msg.ID, rpc.NewError(rpc.CodeInvalidRequest, "invalid request")))
			continue
		}
		msgs = append(msgs, &msg)
	}

	responses := h.pipe.Process(r.Context(), msgs, dispatch.WithSession(session))
	responses = append(responses, invalid...)

	if len(responses) == 0 {
		// Only notifications; nothing is owed.
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
	return writeResponses(w, responses, single)
}

func parseErrorResponse() *rpc.Response {
	return rpc.NewErrorResponse(nil, rpc.NewError(rpc.CodeParseError, "parse error"))
}

func leftTrim(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t' || b[0] == '\r' || b[0] == '\n') {
		b = b[1:]
	}
	return b
}

func writeResponses(w http.ResponseWriter, responses []*rpc.Response, single bool) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	if single {
		if err := enc.Encode(responses[0]); err != nil {
			return fmt.Errorf("httprpc: write response: %w", err)
		}
		return nil
	}
	if err := enc.Encode(responses); err != nil {
		return fmt.Errorf("httprpc: write response: %w", err)
	}
	return nil
}
