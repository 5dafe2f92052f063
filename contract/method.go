package contract

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/mnehpets/onerpc/rpc"
)

// Method is a resolved handler descriptor: a wire name, an ordered parameter
// signature, a result converter, and the invocation capability. Descriptors
// are immutable once built; the dispatch core only ever reads them.
type Method struct {
	name string

	fn       reflect.Value // func(ctx, P) (R, error), receiver pre-bound
	funcName string        // Go-level name, for diagnostics

	paramType   reflect.Type
	paramNames  []string // json names in declaration order
	paramFields []int    // struct field index per parameter
	resultType  reflect.Type
}

// Name returns the wire-visible method name.
func (m *Method) Name() string { return m.name }

// NumParams returns the number of declared parameters.
func (m *Method) NumParams() int { return len(m.paramFields) }

// InvokeError marks a failure raised by the invocation mechanism itself
// (currently: a panic inside the handler) rather than an error the handler
// chose to return. Callers unwrap one level to reach the underlying fault.
type InvokeError struct {
	Method string
	Cause  error
}

func (e *InvokeError) Error() string {
	return fmt.Sprintf("invoke %s: %s", e.Method, e.Cause)
}

func (e *InvokeError) Unwrap() error { return e.Cause }

// DecodeParams converts the request's raw params into a value of the
// method's parameter struct type.
//
// A JSON array is treated as positional parameters mapped to struct fields
// in declaration order; a JSON object is treated as named parameters matched
// by json tag, with every declared parameter required. Shape and arity
// mismatches are reported as *rpc.Error with CodeInvalidParams.
func (m *Method) DecodeParams(params json.RawMessage) (reflect.Value, error) {
	pv := reflect.New(m.paramType)

	if len(params) == 0 || string(params) == "null" {
		if len(m.paramFields) > 0 {
			return reflect.Value{}, rpc.Errorf(rpc.CodeInvalidParams,
				"%s: missing params (want %d)", m.name, len(m.paramFields))
		}
		return pv.Elem(), nil
	}

	var positional []json.RawMessage
	if err := json.Unmarshal(params, &positional); err == nil {
		if len(positional) != len(m.paramFields) {
			return reflect.Value{}, rpc.Errorf(rpc.CodeInvalidParams,
				"%s: got %d positional params, want %d", m.name, len(positional), len(m.paramFields))
		}
		for i, raw := range positional {
			field := pv.Elem().Field(m.paramFields[i])
			if err := json.Unmarshal(raw, field.Addr().Interface()); err != nil {
				return reflect.Value{}, rpc.Errorf(rpc.CodeInvalidParams,
					"%s: param %q: %s", m.name, m.paramNames[i], err)
			}
		}
		return pv.Elem(), nil
	}

	var named map[string]json.RawMessage
	if err := json.Unmarshal(params, &named); err != nil {
		return reflect.Value{}, rpc.Errorf(rpc.CodeInvalidParams,
			"%s: params must be an array or object", m.name)
	}
	for i, name := range m.paramNames {
		raw, ok := named[name]
		if !ok {
			return reflect.Value{}, rpc.Errorf(rpc.CodeInvalidParams,
				"%s: missing param %q", m.name, name)
		}
		field := pv.Elem().Field(m.paramFields[i])
		if err := json.Unmarshal(raw, field.Addr().Interface()); err != nil {
			return reflect.Value{}, rpc.Errorf(rpc.CodeInvalidParams,
				"%s: param %q: %s", m.name, name, err)
		}
	}
	return pv.Elem(), nil
}

// EncodeResult converts a native handler result to its JSON form.
func (m *Method) EncodeResult(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result of %s: %w", m.name, err)
	}
	return raw, nil
}

// Invoke calls the handler with the decoded parameter struct. A handler
// panic is recovered and reported as *InvokeError wrapping the panic value;
// errors the handler returns deliberately pass through untouched.
func (m *Method) Invoke(ctx context.Context, params reflect.Value) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			cause, ok := r.(error)
			if !ok {
				cause = fmt.Errorf("%v", r)
			}
			result = nil
			err = &InvokeError{Method: m.name, Cause: cause}
		}
	}()

	out := m.fn.Call([]reflect.Value{reflect.ValueOf(ctx), params})
	if !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return out[0].Interface(), nil
}

var (
	ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType = reflect.TypeOf((*error)(nil)).Elem()
)

// newMethod builds a descriptor from a bound handler func of type
// func(context.Context, P) (R, error). It returns nil if the signature does
// not match. The wire name defaults to defaultName but may be overridden by
// a `_` field carrying a `jsonrpc` tag on the params struct.
func newMethod(fn reflect.Value, funcName, defaultName string) *Method {
	ft := fn.Type()
	if ft.Kind() != reflect.Func || ft.NumIn() != 2 || ft.NumOut() != 2 {
		return nil
	}
	if ft.In(0) != ctxType || ft.Out(1) != errType {
		return nil
	}
	paramType := ft.In(1)
	if paramType.Kind() != reflect.Struct {
		return nil
	}

	m := &Method{
		name:       defaultName,
		fn:         fn,
		funcName:   funcName,
		paramType:  paramType,
		resultType: ft.Out(0),
	}

	for i := 0; i < paramType.NumField(); i++ {
		field := paramType.Field(i)
		if field.Name == "_" {
			if tag := field.Tag.Get("jsonrpc"); tag != "" {
				m.name = tag
			}
			continue
		}
		if field.PkgPath != "" { // unexported
			continue
		}
		name := field.Name
		if tag := field.Tag.Get("json"); tag != "" {
			tagName := strings.Split(tag, ",")[0]
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		m.paramNames = append(m.paramNames, name)
		m.paramFields = append(m.paramFields, i)
	}
	return m
}
