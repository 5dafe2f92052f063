package httprpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mnehpets/onerpc/contract"
	"github.com/mnehpets/onerpc/dispatch"
	"github.com/mnehpets/onerpc/rpc"
)

func testHandler(t *testing.T, opts ...HandlerOption) *Handler {
	t.Helper()
	r := contract.NewRegistry()
	r.RegisterFunc("add", func(ctx context.Context, p struct {
		A int `json:"a"`
		B int `json:"b"`
	}) (int, error) {
		return p.A + p.B, nil
	})
	r.RegisterFunc("whoami", func(ctx context.Context, p struct{}) (string, error) {
		s := dispatch.SessionFromContext(ctx)
		if s == nil {
			return "anonymous", nil
		}
		return s.ID, nil
	})
	pipe := dispatch.NewPipeline(dispatch.NewExecutor(r), dispatch.WithOrdered(true))
	return NewHandler(pipe, opts...)
}

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServeHTTPSingle(t *testing.T) {
	w := post(testHandler(t), `{"jsonrpc":"2.0","id":1,"method":"add","params":[2,3]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var resp rpc.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(resp.Result) != "5" {
		t.Errorf("result = %s, want 5", resp.Result)
	}
	if string(resp.ID) != "1" {
		t.Errorf("id = %s, want 1", resp.ID)
	}
}

func TestServeHTTPBatch(t *testing.T) {
	w := post(testHandler(t), `[
		{"jsonrpc":"2.0","id":1,"method":"add","params":[1,2]},
		{"jsonrpc":"2.0","method":"add","params":[3,4]},
		{"jsonrpc":"2.0","id":2,"method":"add","params":[5,6]}
	]`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var responses []rpc.Response
	if err := json.Unmarshal(w.Body.Bytes(), &responses); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(responses) != 2 {
		t.Fatalf("got %d responses, want 2", len(responses))
	}
	if string(responses[0].Result) != "3" || string(responses[1].Result) != "11" {
		t.Errorf("results = [%s, %s], want [3, 11]", responses[0].Result, responses[1].Result)
	}
}

func TestServeHTTPNotificationsOnly(t *testing.T) {
	w := post(testHandler(t), `[
		{"jsonrpc":"2.0","method":"add","params":[1,2]},
		{"jsonrpc":"2.0","method":"add","params":[3,4]}
	]`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", w.Body.String())
	}
}

func TestServeHTTPProtocolErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"parse error", `{not json`, rpc.CodeParseError},
		{"empty batch", `[]`, rpc.CodeInvalidRequest},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"add"}`, rpc.CodeInvalidRequest},
		{"response-shaped", `{"jsonrpc":"2.0","id":1,"result":true}`, rpc.CodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(testHandler(t), tt.body)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			var resp rpc.Response
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if !resp.IsError() || resp.Error.Code != tt.wantCode {
				t.Errorf("response = %+v, want error code %d", resp, tt.wantCode)
			}
		})
	}
}

func TestServeHTTPInvalidRequestEchoesID(t *testing.T) {
	w := post(testHandler(t), `{"jsonrpc":"1.0","id":42,"method":"add"}`)
	var resp rpc.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(resp.ID) != "42" {
		t.Errorf("id = %s, want 42", resp.ID)
	}
}

func TestServeHTTPMethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/rpc", nil)
	w := httptest.NewRecorder()
	testHandler(t).ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestServeHTTPUnsupportedMediaType(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	testHandler(t).ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", w.Code)
	}
}

func TestServeHTTPBodyTooLarge(t *testing.T) {
	h := testHandler(t, WithMaxBodyBytes(64))
	w := post(h, `{"jsonrpc":"2.0","id":1,"method":"add","params":{"a":1,"b":`+strings.Repeat("2", 128)+`}}`)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

func TestServeHTTPSessionFunc(t *testing.T) {
	h := testHandler(t, WithSessionFunc(func(r *http.Request) *dispatch.Session {
		if key := r.Header.Get("X-Api-Key"); key != "" {
			return &dispatch.Session{ID: key}
		}
		return nil
	}))

	req := httptest.NewRequest(http.MethodPost, "/rpc",
		strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"whoami"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", "key-7")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp rpc.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(resp.Result) != `"key-7"` {
		t.Errorf("result = %s, want \"key-7\"", resp.Result)
	}
}

func TestSecurityHeadersProcessor(t *testing.T) {
	h := testHandler(t, WithProcessors(SecurityHeaders()))
	w := post(h, `{"jsonrpc":"2.0","id":1,"method":"add","params":[1,2]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
	} {
		if got := w.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestRateLimitProcessor(t *testing.T) {
	h := testHandler(t, WithProcessors(RateLimit(1, 2)))
	body := `{"jsonrpc":"2.0","id":1,"method":"add","params":[1,2]}`

	// httptest gives every request the same remote address, so the requests
	// share one bucket.
	if w := post(h, body); w.Code != http.StatusOK {
		t.Fatalf("first request: status = %d, want 200", w.Code)
	}
	if w := post(h, body); w.Code != http.StatusOK {
		t.Fatalf("second request: status = %d, want 200", w.Code)
	}
	if w := post(h, body); w.Code != http.StatusTooManyRequests {
		t.Errorf("third request: status = %d, want 429", w.Code)
	}
}
