// Package contract maps JSON-RPC method names to application handlers.
//
// A Registry holds the read-mostly set of registered Method descriptors. A
// name may carry several descriptors (overloads) as long as their parameter
// shapes differ; a Binder picks exactly one candidate for a given request, or
// reports ErrNoMatch / ErrAmbiguous as first-class outcomes.
//
// # Registering handlers
//
// Handlers are exported methods on a receiver struct with the signature
//
//	func (m *Methods) Add(ctx context.Context, params AddParams) (int, error)
//
// where the params type is a struct whose fields define the parameter names
// (via json tags) and positional order (by declaration order). A `_` field
// with a `jsonrpc` tag overrides the wire name:
//
//	type AddParams struct {
//	    _ struct{} `jsonrpc:"add"`
//	    A int      `json:"a"`
//	    B int      `json:"b"`
//	}
//
// Overloads are expressed by pointing two methods with different param
// structs at the same wire name. Free functions can be registered directly
// with RegisterFunc.
//
// # Concurrency
//
// Registration is guarded by a mutex, but the intended use is to register
// everything at startup and treat the registry as an immutable snapshot
// while serving. Lookup and all Method operations are safe for concurrent
// use without further locking.
package contract
