package dispatch

import (
	"context"

	"github.com/mnehpets/onerpc/rpc"
)

// HostInfo identifies the serving host to handlers.
type HostInfo struct {
	Name    string
	Version string
}

// Session carries per-connection state established by a transport. A nil
// session means an anonymous caller; the core never requires one.
type Session struct {
	ID     string
	Values map[string]any
}

// RequestContext is the immutable per-invocation bundle handed to the
// executor: host identity, the transport session (possibly nil), the
// originating message, and the cancellation signal. It is created by the
// pipeline immediately before execution, owned exclusively by that request's
// processing path, and discarded after response construction.
type RequestContext struct {
	host    *HostInfo
	session *Session
	msg     *rpc.Message
	ctx     context.Context
}

// NewRequestContext builds the bundle for one incoming message. ctx carries
// the request's cancellation signal; handlers observe it cooperatively
// through Context().
func NewRequestContext(ctx context.Context, host *HostInfo, session *Session, msg *rpc.Message) *RequestContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &RequestContext{host: host, session: session, msg: msg, ctx: ctx}
}

// Host returns the serving host's identity, or nil if none was configured.
func (rc *RequestContext) Host() *HostInfo { return rc.host }

// Session returns the transport session, or nil for an anonymous caller.
func (rc *RequestContext) Session() *Session { return rc.session }

// Request returns the originating message.
func (rc *RequestContext) Request() *rpc.Message { return rc.msg }

// Context returns the request's cancellation signal.
func (rc *RequestContext) Context() context.Context { return rc.ctx }

type sessionKey struct{}

// ContextWithSession returns a context carrying the session, so handlers
// that only receive a context.Context can still reach it.
func ContextWithSession(ctx context.Context, s *Session) context.Context {
	if s == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session stored by ContextWithSession, or
// nil.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}
