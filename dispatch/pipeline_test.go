package dispatch

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mnehpets/onerpc/contract"
	"github.com/mnehpets/onerpc/rpc"
)

// gatedPipeline builds a pipeline whose "slow" method blocks until release is
// closed and whose "fast" method signals fastDone on completion.
func gatedPipeline(t *testing.T, release, fastDone chan struct{}, opts ...Option) *Pipeline {
	t.Helper()
	r := contract.NewRegistry()
	r.RegisterFunc("slow", func(ctx context.Context, p struct{}) (string, error) {
		<-release
		return "slow", nil
	})
	r.RegisterFunc("fast", func(ctx context.Context, p struct{}) (string, error) {
		defer close(fastDone)
		return "fast", nil
	})
	return NewPipeline(NewExecutor(r), opts...)
}

func collect(sink <-chan *rpc.Response) <-chan []*rpc.Response {
	out := make(chan []*rpc.Response, 1)
	go func() {
		var got []*rpc.Response
		for resp := range sink {
			got = append(got, resp)
		}
		out <- got
	}()
	return out
}

func TestAttachOrdered(t *testing.T) {
	release := make(chan struct{})
	fastDone := make(chan struct{})
	p := gatedPipeline(t, release, fastDone, WithOrdered(true))

	source := make(chan *rpc.Message)
	sink := make(chan *rpc.Response)
	h := p.Attach(context.Background(), source, sink)
	got := collect(sink)

	source <- request("slow", "1", "")
	source <- request("fast", "2", "")
	close(source)

	// The second request finishes first, but its response must be withheld
	// until the first one completes.
	<-fastDone
	select {
	case responses := <-got:
		t.Fatalf("sink produced %d responses before the first request completed", len(responses))
	case <-time.After(20 * time.Millisecond):
	}
	close(release)

	responses := <-got
	<-h.Done()
	if len(responses) != 2 {
		t.Fatalf("got %d responses, want 2", len(responses))
	}
	if string(responses[0].ID) != "1" || string(responses[1].ID) != "2" {
		t.Errorf("response order = [%s, %s], want [1, 2]", responses[0].ID, responses[1].ID)
	}
}

func TestAttachUnordered(t *testing.T) {
	release := make(chan struct{})
	fastDone := make(chan struct{})
	p := gatedPipeline(t, release, fastDone)

	source := make(chan *rpc.Message)
	sink := make(chan *rpc.Response)
	h := p.Attach(context.Background(), source, sink)

	source <- request("slow", "1", "")
	source <- request("fast", "2", "")
	close(source)

	first := <-sink
	if string(first.ID) != "2" {
		t.Errorf("first response id = %s, want 2", first.ID)
	}
	close(release)
	second := <-sink
	if string(second.ID) != "1" {
		t.Errorf("second response id = %s, want 1", second.ID)
	}
	<-h.Done()
}

func TestProcessSuppressesNotifications(t *testing.T) {
	p := NewPipeline(NewExecutor(testRegistry(t)), WithOrdered(true))

	msgs := []*rpc.Message{
		request("add", "1", `[1,2]`),
		request("add", "", `[3,4]`),      // notification
		request("subtract", "", `[1,2]`), // failing notification
		request("add", "2", `[5,6]`),
	}
	responses := p.Process(context.Background(), msgs)
	if len(responses) != 2 {
		t.Fatalf("got %d responses, want 2", len(responses))
	}
	if string(responses[0].ID) != "1" || string(responses[1].ID) != "2" {
		t.Errorf("response ids = [%s, %s], want [1, 2]", responses[0].ID, responses[1].ID)
	}
}

func TestProcessIgnoresNonCallMessages(t *testing.T) {
	p := NewPipeline(NewExecutor(testRegistry(t)))

	responseShaped := &rpc.Message{JSONRPC: rpc.Version, ID: json.RawMessage("9"), Result: json.RawMessage("true")}
	msgs := []*rpc.Message{responseShaped, nil, request("add", "1", `[1,2]`)}
	responses := p.Process(context.Background(), msgs)
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	if string(responses[0].Result) != "3" {
		t.Errorf("result = %s, want 3", responses[0].Result)
	}
}

func TestHandleClose(t *testing.T) {
	p := NewPipeline(NewExecutor(testRegistry(t)))

	source := make(chan *rpc.Message, 1)
	sink := make(chan *rpc.Response, 1)
	h := p.Attach(context.Background(), source, sink)
	source <- request("add", "1", `[1,2]`)

	resp := <-sink
	if resp == nil || string(resp.Result) != "3" {
		t.Fatalf("got %+v, want result 3", resp)
	}

	if err := h.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, ok := <-sink; ok {
		t.Error("sink still open after Close")
	}
	select {
	case <-h.Done():
	default:
		t.Error("Done not closed after Close")
	}
}

func TestHandleAbort(t *testing.T) {
	r := contract.NewRegistry()
	started := make(chan struct{})
	r.RegisterFunc("hang", func(ctx context.Context, p struct{}) (bool, error) {
		close(started)
		<-ctx.Done()
		return false, ctx.Err()
	})
	p := NewPipeline(NewExecutor(r))

	source := make(chan *rpc.Message, 1)
	sink := make(chan *rpc.Response, 1)
	h := p.Attach(context.Background(), source, sink)
	source <- request("hang", "1", "")

	<-started
	h.Abort()

	resp := <-sink
	if resp == nil || !resp.IsError() {
		t.Fatalf("got %+v, want error response", resp)
	}
	if resp.Error.Code != rpc.CodeCancelled {
		t.Errorf("code = %d, want %d", resp.Error.Code, rpc.CodeCancelled)
	}
	if _, ok := <-sink; ok {
		t.Error("sink still open after Abort")
	}
}

func TestMaxConcurrency(t *testing.T) {
	var current, peak atomic.Int64
	r := contract.NewRegistry()
	r.RegisterFunc("work", func(ctx context.Context, p struct{}) (bool, error) {
		n := current.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		current.Add(-1)
		return true, nil
	})
	p := NewPipeline(NewExecutor(r), WithMaxConcurrency(2))

	msgs := make([]*rpc.Message, 8)
	for i := range msgs {
		msgs[i] = request("work", "1", "")
	}
	responses := p.Process(context.Background(), msgs)
	if len(responses) != 8 {
		t.Fatalf("got %d responses, want 8", len(responses))
	}
	if got := peak.Load(); got > 2 {
		t.Errorf("observed %d concurrent handlers, want at most 2", got)
	}
}

func TestAttachContextCancelStopsIntake(t *testing.T) {
	p := NewPipeline(NewExecutor(testRegistry(t)))
	ctx, cancel := context.WithCancel(context.Background())

	source := make(chan *rpc.Message)
	sink := make(chan *rpc.Response, 1)
	h := p.Attach(ctx, source, sink)

	cancel()
	<-h.Done()
	if _, ok := <-sink; ok {
		t.Error("sink still open after context cancellation")
	}
}
