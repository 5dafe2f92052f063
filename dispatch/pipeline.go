package dispatch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/mnehpets/onerpc/metrics"
	"github.com/mnehpets/onerpc/rpc"
)

// Pipeline fans incoming call messages out to the Executor and forwards the
// resulting responses to a sink. One Pipeline may serve many attachments
// concurrently; it holds no per-attachment state.
type Pipeline struct {
	exec           *Executor
	host           *HostInfo
	ordered        bool
	maxConcurrency int64
	log            *zap.Logger
	metrics        *metrics.Pipeline
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithOrdered makes every attachment emit responses in the order their
// requests were accepted, at the cost of head-of-line buffering. The default
// is completion order.
func WithOrdered(ordered bool) Option {
	return func(p *Pipeline) { p.ordered = ordered }
}

// WithMaxConcurrency bounds the call messages processed concurrently per
// attachment. Zero or negative means unbounded.
func WithMaxConcurrency(n int) Option {
	return func(p *Pipeline) { p.maxConcurrency = int64(n) }
}

// WithHost sets the host identity exposed to handlers through the request
// context.
func WithHost(h *HostInfo) Option {
	return func(p *Pipeline) { p.host = h }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Pipeline) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// NewPipeline creates a Pipeline around the given Executor.
func NewPipeline(exec *Executor, opts ...Option) *Pipeline {
	p := &Pipeline{exec: exec, log: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AttachOption configures a single attachment.
type AttachOption func(*attachment)

// WithSession associates a transport session with every request processed by
// the attachment.
func WithSession(s *Session) AttachOption {
	return func(a *attachment) { a.session = s }
}

type attachment struct {
	session *Session
}

// Handle represents one live source→sink attachment.
type Handle struct {
	cancel    context.CancelFunc
	stop      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	abortOnce sync.Once
}

// Close unlinks the attachment gracefully: intake stops, in-flight requests
// run to completion, buffered ordered responses flush, then the sink is
// closed. It blocks until the drain finishes.
func (h *Handle) Close() error {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.done
	return nil
}

// Abort cancels the context of every in-flight request and then closes the
// attachment. Handlers that observe their context promptly complete with a
// cancellation fault; responses still owed are emitted during the drain.
func (h *Handle) Abort() {
	h.abortOnce.Do(h.cancel)
	_ = h.Close()
}

// Done is closed once the attachment has fully drained and the sink is
// closed.
func (h *Handle) Done() <-chan struct{} { return h.done }

// completion pairs a processed unit with its intake sequence number. A nil
// response marks a unit that owes nothing (a notification, or intake after
// shutdown began).
type completion struct {
	seq  uint64
	resp *rpc.Response
}

// Attach wires a producer of messages to a consumer of responses. The
// attachment runs until the source closes, ctx is cancelled, or the handle
// is closed; the sink is closed exactly once, after all in-flight work has
// drained. Messages that are not requests or notifications are ignored.
func (p *Pipeline) Attach(ctx context.Context, source <-chan *rpc.Message, sink chan<- *rpc.Response, opts ...AttachOption) *Handle {
	if ctx == nil {
		ctx = context.Background()
	}
	var att attachment
	for _, opt := range opts {
		opt(&att)
	}

	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		cancel: cancel,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go p.run(ctx, h, att.session, source, sink)
	return h
}

func (p *Pipeline) run(ctx context.Context, h *Handle, session *Session, source <-chan *rpc.Message, sink chan<- *rpc.Response) {
	defer h.cancel()

	completions := make(chan completion)
	emitterDone := make(chan struct{})
	go func() {
		defer close(emitterDone)
		if p.ordered {
			p.emitOrdered(completions, sink)
		} else {
			p.emitUnordered(completions, sink)
		}
	}()

	var wg sync.WaitGroup
	var sem *semaphore.Weighted
	if p.maxConcurrency > 0 {
		sem = semaphore.NewWeighted(p.maxConcurrency)
	}

	var seq uint64
intake:
	for {
		select {
		case <-h.stop:
			break intake
		case <-ctx.Done():
			break intake
		case msg, ok := <-source:
			if !ok {
				break intake
			}
			if msg == nil || !msg.IsCall() {
				p.log.Debug("ignoring non-call message")
				continue
			}
			if sem != nil {
				if err := sem.Acquire(ctx, 1); err != nil {
					break intake
				}
			}
			wg.Add(1)
			p.metrics.RequestStarted()
			go func(seq uint64, msg *rpc.Message) {
				defer wg.Done()
				if sem != nil {
					defer sem.Release(1)
				}
				completions <- completion{seq: seq, resp: p.process(ctx, session, msg)}
			}(seq, msg)
			seq++
		}
	}

	wg.Wait()
	close(completions)
	<-emitterDone
	close(sink)
	close(h.done)
	p.log.Debug("attachment drained", zap.Uint64("accepted", seq))
}

// process runs one accepted unit. Shutdown that lands before entry drops the
// unit entirely; everything after entry is the Executor's problem.
func (p *Pipeline) process(ctx context.Context, session *Session, msg *rpc.Message) *rpc.Response {
	start := time.Now()
	kind := msg.Kind()

	var resp *rpc.Response
	if ctx.Err() == nil {
		rc := NewRequestContext(ctx, p.host, session, msg)
		resp = p.exec.Execute(rc)
	}

	code := 0
	if resp != nil && resp.IsError() {
		code = resp.Error.Code
	}
	p.metrics.RequestFinished(kind.String(), code, time.Since(start).Seconds())
	return resp
}

// emitUnordered forwards responses in completion order, discarding units that
// owe nothing.
func (p *Pipeline) emitUnordered(completions <-chan completion, sink chan<- *rpc.Response) {
	for c := range completions {
		if c.resp != nil {
			sink <- c.resp
		}
	}
}

// emitOrdered releases responses in intake order. A response for sequence N
// is withheld until every sequence below N has completed; units that owe
// nothing advance the head immediately and are never buffered as payloads.
func (p *Pipeline) emitOrdered(completions <-chan completion, sink chan<- *rpc.Response) {
	pending := make(map[uint64]*rpc.Response)
	var next uint64
	for c := range completions {
		if c.seq != next {
			pending[c.seq] = c.resp
			p.metrics.ReorderDepth(len(pending))
			continue
		}
		if c.resp != nil {
			sink <- c.resp
		}
		next++
		for {
			resp, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			if resp != nil {
				sink <- resp
			}
			next++
		}
		p.metrics.ReorderDepth(len(pending))
	}
}

// Process runs a batch of messages through the pipeline and collects the
// responses. With ordered mode the result preserves request order; otherwise
// it is completion order. Cancellation of ctx aborts outstanding work.
func (p *Pipeline) Process(ctx context.Context, msgs []*rpc.Message, opts ...AttachOption) []*rpc.Response {
	source := make(chan *rpc.Message, len(msgs))
	for _, m := range msgs {
		source <- m
	}
	close(source)

	sink := make(chan *rpc.Response, len(msgs))
	h := p.Attach(ctx, source, sink, opts...)

	responses := make([]*rpc.Response, 0, len(msgs))
	for resp := range sink {
		responses = append(responses, resp)
	}
	<-h.Done()
	return responses
}
