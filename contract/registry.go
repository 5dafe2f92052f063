package contract

import (
	"fmt"
	"reflect"
	"sync"
)

// Registry maps method names to their candidate descriptors. Register
// everything at startup; while serving, the registry is a read-only snapshot
// shared by all in-flight requests.
type Registry struct {
	mu      sync.RWMutex
	methods map[string][]*Method
}

// NewRegistry creates an empty method registry.
func NewRegistry() *Registry {
	return &Registry{methods: make(map[string][]*Method)}
}

// Register adds the exported methods of a receiver struct. The namespace
// prefixes all wire names (e.g. "math" + "Add" -> "math.Add"); use the empty
// string for none. Methods whose signatures do not match
// func(ctx, P) (R, error) are skipped.
//
// Registering a second handler under an existing name is allowed when the
// parameter shapes differ (an overload); a duplicate shape panics, since
// that is a programming error no binder could ever disambiguate.
func (r *Registry) Register(namespace string, receiver any) {
	val := reflect.ValueOf(receiver)
	typ := val.Type()

	for i := 0; i < val.NumMethod(); i++ {
		mt := typ.Method(i)
		if !mt.IsExported() {
			continue
		}
		m := newMethod(val.Method(i), typ.String()+"."+mt.Name, mt.Name)
		if m == nil {
			continue
		}
		if namespace != "" {
			m.name = namespace + "." + m.name
		}
		r.add(m)
	}
}

// RegisterFunc adds a single handler func of type func(ctx, P) (R, error)
// under the given wire name. It panics if the signature is invalid.
func (r *Registry) RegisterFunc(name string, fn any) {
	m := newMethod(reflect.ValueOf(fn), name, name)
	if m == nil {
		panic(fmt.Sprintf("contract: %s: handler must be func(context.Context, P) (R, error) with struct P", name))
	}
	m.name = name
	r.add(m)
}

func (r *Registry) add(m *Method) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.methods[m.name] {
		if sameShape(existing, m) {
			panic(fmt.Sprintf("contract: duplicate signature for method %s (%s and %s)",
				m.name, existing.funcName, m.funcName))
		}
	}
	r.methods[m.name] = append(r.methods[m.name], m)
}

// Lookup returns the candidates registered under name, in registration
// order, or nil when the name is unknown. The returned slice must not be
// mutated.
func (r *Registry) Lookup(name string) []*Method {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.methods[name]
}

// Names returns the registered wire names in unspecified order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	return names
}

// sameShape reports whether two candidates are indistinguishable to a
// shape-based binder: equal arity and equal parameter name sets.
func sameShape(a, b *Method) bool {
	if len(a.paramNames) != len(b.paramNames) {
		return false
	}
	names := make(map[string]bool, len(a.paramNames))
	for _, n := range a.paramNames {
		names[n] = true
	}
	for _, n := range b.paramNames {
		if !names[n] {
			return false
		}
	}
	return true
}
