package contract

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mnehpets/onerpc/rpc"
)

func overloadRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	r.RegisterFunc("add", func(ctx context.Context, p struct {
		A int `json:"a"`
		B int `json:"b"`
	}) (int, error) {
		return p.A + p.B, nil
	})
	r.RegisterFunc("add", func(ctx context.Context, p struct {
		A int `json:"a"`
		B int `json:"b"`
		C int `json:"c"`
	}) (int, error) {
		return p.A + p.B + p.C, nil
	})
	r.RegisterFunc("scale", func(ctx context.Context, p struct {
		X      float64 `json:"x"`
		Factor float64 `json:"factor"`
	}) (float64, error) {
		return p.X * p.Factor, nil
	})
	return r
}

func callMsg(method, params string) *rpc.Message {
	msg := &rpc.Message{JSONRPC: rpc.Version, ID: json.RawMessage("1"), Method: method}
	if params != "" {
		msg.Params = json.RawMessage(params)
	}
	return msg
}

func TestShapeBinderPositionalArity(t *testing.T) {
	r := overloadRegistry(t)
	b := ShapeBinder{}

	m, err := b.Bind(r.Lookup("add"), callMsg("add", `[1,2]`))
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if m.NumParams() != 2 {
		t.Errorf("bound %d-param candidate, want 2", m.NumParams())
	}

	m, err = b.Bind(r.Lookup("add"), callMsg("add", `[1,2,3]`))
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if m.NumParams() != 3 {
		t.Errorf("bound %d-param candidate, want 3", m.NumParams())
	}
}

func TestShapeBinderNamedKeys(t *testing.T) {
	r := overloadRegistry(t)
	b := ShapeBinder{}

	m, err := b.Bind(r.Lookup("add"), callMsg("add", `{"a":1,"b":2,"c":3}`))
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if m.NumParams() != 3 {
		t.Errorf("bound %d-param candidate, want 3", m.NumParams())
	}
}

func TestShapeBinderNoMatch(t *testing.T) {
	r := overloadRegistry(t)
	b := ShapeBinder{}

	tests := []struct {
		name   string
		params string
	}{
		{"arity gap", `[1,2,3,4]`},
		{"unknown key", `{"a":1,"z":2}`},
		{"scalar params", `17`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Bind(r.Lookup("add"), callMsg("add", tt.params))
			if !errors.Is(err, ErrNoMatch) {
				t.Errorf("got %v, want ErrNoMatch", err)
			}
		})
	}
}

func TestShapeBinderAmbiguous(t *testing.T) {
	r := NewRegistry()
	// Same arity, different names: positional calls cannot be disambiguated.
	r.RegisterFunc("move", func(ctx context.Context, p struct {
		X int `json:"x"`
		Y int `json:"y"`
	}) (bool, error) {
		return true, nil
	})
	r.RegisterFunc("move", func(ctx context.Context, p struct {
		Row int `json:"row"`
		Col int `json:"col"`
	}) (bool, error) {
		return true, nil
	})

	b := ShapeBinder{}
	_, err := b.Bind(r.Lookup("move"), callMsg("move", `[1,2]`))
	if !errors.Is(err, ErrAmbiguous) {
		t.Errorf("got %v, want ErrAmbiguous", err)
	}

	// Named calls stay unambiguous because the key sets differ.
	m, err := b.Bind(r.Lookup("move"), callMsg("move", `{"row":1,"col":2}`))
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if m == nil {
		t.Fatal("expected a bound candidate")
	}
}

func TestShapeBinderAbsentParams(t *testing.T) {
	r := NewRegistry()
	r.RegisterFunc("ping", func(ctx context.Context, p struct{}) (string, error) {
		return "pong", nil
	})

	b := ShapeBinder{}
	if _, err := b.Bind(r.Lookup("ping"), callMsg("ping", "")); err != nil {
		t.Errorf("absent params should match the zero-param candidate: %v", err)
	}
	if _, err := b.Bind(r.Lookup("ping"), callMsg("ping", `null`)); err != nil {
		t.Errorf("null params should match the zero-param candidate: %v", err)
	}
}
