package dispatch

import (
	"errors"

	"go.uber.org/zap"

	"github.com/mnehpets/onerpc/contract"
	"github.com/mnehpets/onerpc/rpc"
)

// Executor sequences the per-request lifecycle: resolve, bind, decode,
// invoke, respond. It is safe for concurrent use; the registry and binder it
// holds are read-only.
type Executor struct {
	registry *contract.Registry
	binder   contract.Binder
	log      *zap.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithBinder overrides the default contract.ShapeBinder.
func WithBinder(b contract.Binder) ExecutorOption {
	return func(e *Executor) {
		if b != nil {
			e.binder = b
		}
	}
}

// WithExecutorLogger sets the logger used for swallowed notification
// failures.
func WithExecutorLogger(l *zap.Logger) ExecutorOption {
	return func(e *Executor) {
		if l != nil {
			e.log = l
		}
	}
}

// NewExecutor creates an Executor over the given registry.
func NewExecutor(registry *contract.Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry: registry,
		binder:   contract.ShapeBinder{},
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one request-shaped message to completion and returns its
// response, or nil when no response is owed (the message is a notification,
// whatever the outcome). Every failure is caught here and converted to an
// error response; nothing propagates to the caller.
func (e *Executor) Execute(rc *RequestContext) *rpc.Response {
	msg := rc.Request()
	respond := msg.Kind() == rpc.KindRequest

	// fail maps an outcome to an error response, or swallows it (with a log
	// line) when the originating message carries no id.
	fail := func(errObj *rpc.Error) *rpc.Response {
		if !respond {
			e.log.Warn("notification failed",
				zap.String("method", msg.Method),
				zap.Int("code", errObj.Code),
				zap.String("error", errObj.Message))
			return nil
		}
		return rpc.NewErrorResponse(msg.ID, errObj)
	}

	// Resolve.
	candidates := e.registry.Lookup(msg.Method)
	if len(candidates) == 0 {
		return fail(rpc.Errorf(rpc.CodeMethodNotFound, "method not found: %s", msg.Method))
	}
	method, err := e.binder.Bind(candidates, msg)
	if err != nil {
		switch {
		case errors.Is(err, contract.ErrAmbiguous):
			return fail(rpc.Errorf(rpc.CodeInvalidRequest, "method %s: ambiguous call, multiple signatures match", msg.Method))
		case errors.Is(err, contract.ErrNoMatch):
			return fail(rpc.Errorf(rpc.CodeMethodNotFound, "method %s: no matching signature", msg.Method))
		default:
			return fail(rpc.ErrorFromFault(err))
		}
	}

	// Unmarshal.
	params, err := method.DecodeParams(msg.Params)
	if err != nil {
		return fail(rpc.ErrorFromFault(err))
	}

	// Invoke. An InvokeError means the invocation mechanism wrapped the
	// handler's own fault; unwrap exactly one level before mapping.
	ctx := ContextWithSession(rc.Context(), rc.Session())
	result, err := method.Invoke(ctx, params)
	if err != nil {
		var ie *contract.InvokeError
		if errors.As(err, &ie) {
			err = ie.Cause
		}
		return fail(rpc.ErrorFromFault(err))
	}

	if !respond {
		return nil
	}

	// Respond. A handler may signal a structured protocol error by returning
	// *rpc.Error as its result value.
	if errObj, ok := result.(*rpc.Error); ok {
		return rpc.NewErrorResponse(msg.ID, errObj)
	}
	if result == nil {
		return rpc.NewRawResultResponse(msg.ID, nil)
	}
	raw, err := method.EncodeResult(result)
	if err != nil {
		return fail(rpc.ErrorFromFault(err))
	}
	return rpc.NewRawResultResponse(msg.ID, raw)
}
