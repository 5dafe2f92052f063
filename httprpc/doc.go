// Package httprpc serves a dispatch pipeline over HTTP POST, per JSON-RPC
// over HTTP (https://www.simple-is-better.org/json-rpc/transport_http.html).
//
// # Basic usage
//
//	reg := contract.NewRegistry()
//	reg.Register("math", &MathMethods{})
//	pipe := dispatch.NewPipeline(dispatch.NewExecutor(reg))
//	http.Handle("/rpc", httprpc.NewHandler(pipe))
//	http.ListenAndServe(":8080", nil)
//
// Single and batch request bodies are supported. Batch calls run through the
// pipeline concurrently; with dispatch.WithOrdered the processed responses
// come back in request order. A body containing only notifications yields
// 204 No Content.
//
// # Processors
//
// Processors intercept the HTTP request before RPC handling, for
// cross-cutting concerns that belong to the transport rather than to
// methods:
//
//	h := httprpc.NewHandler(pipe,
//	    httprpc.WithProcessors(
//	        httprpc.SecurityHeaders(),
//	        httprpc.RateLimit(50, 100),
//	        httprpc.RequestLog(logger),
//	    ))
//
// A processor must call next unless it intends to short-circuit the request;
// a returned error stops the chain and is rendered as an HTTP error, not a
// JSON-RPC error.
package httprpc
