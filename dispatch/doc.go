// Package dispatch turns a stream of parsed JSON-RPC envelopes into
// protocol-compliant responses.
//
// The Executor runs one request end to end: resolve the method through a
// contract.Registry, disambiguate overloads through a contract.Binder,
// decode params, invoke the handler, and map every failure mode onto the
// JSON-RPC error model. Nothing escapes its boundary; one request's fault
// never affects another's.
//
// The Pipeline is the concurrency stage around it. Attach wires a source
// channel of messages to a sink channel of responses:
//
//	pipe := dispatch.NewPipeline(exec, dispatch.WithOrdered(true))
//	h := pipe.Attach(ctx, source, sink)
//	...
//	h.Close() // stop intake, drain in-flight work, close the sink
//
// Non-call messages are ignored, notifications never produce sink output,
// and each accepted message runs as an independent unit of concurrent work,
// optionally bounded by WithMaxConcurrency. With WithOrdered the sink
// observes responses in request acceptance order; a reorder buffer withholds
// a completed response until every earlier request has completed.
package dispatch
