package contract

import (
	"encoding/json"
	"errors"

	"github.com/mnehpets/onerpc/rpc"
)

// Binder selects exactly one candidate descriptor for a request, or reports
// why it cannot.
type Binder interface {
	// Bind returns the single matching candidate. It returns ErrNoMatch when
	// no candidate accepts the request's parameter shape and ErrAmbiguous
	// when more than one does.
	Bind(candidates []*Method, msg *rpc.Message) (*Method, error)
}

// Binding outcomes. Both are ordinary values: ambiguity is an expected
// result of overload resolution, not an exceptional condition.
var (
	ErrNoMatch   = errors.New("contract: no candidate matches the parameter shape")
	ErrAmbiguous = errors.New("contract: parameter shape matches multiple candidates")
)

// ShapeBinder is the default Binder. It disambiguates on the JSON shape of
// the params payload alone: positional arrays match on arity, objects match
// on the declared parameter name set, and absent params match zero-parameter
// candidates. It never inspects parameter values or types.
type ShapeBinder struct{}

// paramShape is the decoded outline of a params payload.
type paramShape struct {
	positional bool
	count      int
	keys       map[string]bool
}

func shapeOf(params json.RawMessage) paramShape {
	if len(params) == 0 || string(params) == "null" {
		return paramShape{positional: true, count: 0}
	}
	var positional []json.RawMessage
	if err := json.Unmarshal(params, &positional); err == nil {
		return paramShape{positional: true, count: len(positional)}
	}
	var named map[string]json.RawMessage
	if err := json.Unmarshal(params, &named); err == nil {
		keys := make(map[string]bool, len(named))
		for k := range named {
			keys[k] = true
		}
		return paramShape{keys: keys}
	}
	// Scalar params are not valid JSON-RPC; treat as matching nothing.
	return paramShape{count: -1}
}

func (s paramShape) matches(m *Method) bool {
	if s.positional {
		return s.count == len(m.paramFields)
	}
	if s.keys == nil {
		return false
	}
	// Named params: every declared parameter must be present, and no unknown
	// keys are allowed, so overloads differing only in a name set remain
	// distinguishable.
	if len(s.keys) != len(m.paramNames) {
		return false
	}
	for _, name := range m.paramNames {
		if !s.keys[name] {
			return false
		}
	}
	return true
}

// Bind implements Binder.
func (ShapeBinder) Bind(candidates []*Method, msg *rpc.Message) (*Method, error) {
	shape := shapeOf(msg.Params)

	var found *Method
	for _, m := range candidates {
		if !shape.matches(m) {
			continue
		}
		if found != nil {
			return nil, ErrAmbiguous
		}
		found = m
	}
	if found == nil {
		return nil, ErrNoMatch
	}
	return found, nil
}
