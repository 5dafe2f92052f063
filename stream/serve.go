package stream

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/mnehpets/onerpc/dispatch"
	"github.com/mnehpets/onerpc/rpc"
)

// Serve decodes messages from r, runs them through the pipeline, and encodes
// the responses to w. It returns when the stream ends (io.EOF), after first
// draining all in-flight work, or when a frame cannot be decoded, in which
// case a parse-error response with a null id is written before returning.
//
// Decoding blocks on r; to interrupt an idle Serve, close the reader.
// Cancelling ctx aborts in-flight requests but takes effect at the next
// frame boundary.
func Serve(ctx context.Context, codec Codec, r io.Reader, w io.Writer, pipe *dispatch.Pipeline, opts ...dispatch.AttachOption) error {
	source := make(chan *rpc.Message)
	sink := make(chan *rpc.Response)
	h := pipe.Attach(ctx, source, sink, opts...)

	// out is the single write path: pipeline responses are forwarded into
	// it, and the read loop injects parse-error responses directly.
	out := make(chan *rpc.Response)
	var forward sync.WaitGroup
	forward.Add(1)
	go func() {
		defer forward.Done()
		for resp := range sink {
			out <- resp
		}
	}()

	writeErr := make(chan error, 1)
	go func() {
		enc := codec.NewEncoder(w)
		for resp := range out {
			if err := enc.Encode(resp); err != nil {
				writeErr <- err
				// Drain so producers never block on a dead writer.
				for range out {
				}
				return
			}
		}
		writeErr <- nil
	}()

	var readErr error
	dec := codec.NewDecoder(r)
read:
	for {
		var msg rpc.Message
		err := dec.Decode(&msg)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			break read
		case ctx.Err() != nil:
			break read
		default:
			out <- rpc.NewErrorResponse(nil, rpc.NewError(rpc.CodeParseError, "parse error"))
			readErr = err
			break read
		}

		select {
		case source <- &msg:
		case <-ctx.Done():
			break read
		}
	}

	close(source)
	_ = h.Close()
	forward.Wait()
	close(out)

	if err := <-writeErr; err != nil {
		return err
	}
	return readErr
}
