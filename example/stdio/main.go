package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/mnehpets/onerpc/contract"
	"github.com/mnehpets/onerpc/dispatch"
	"github.com/mnehpets/onerpc/stream"
)

type EchoParams struct {
	_    struct{} `jsonrpc:"echo"`
	Text string   `json:"text"`
}

type UpperParams struct {
	_    struct{} `jsonrpc:"upper"`
	Text string   `json:"text"`
}

func main() {
	reg := contract.NewRegistry()
	reg.RegisterFunc("echo", func(ctx context.Context, p EchoParams) (string, error) {
		return p.Text, nil
	})
	reg.RegisterFunc("upper", func(ctx context.Context, p UpperParams) (string, error) {
		return strings.ToUpper(p.Text), nil
	})

	// Ordered mode keeps stdout responses in request order even though
	// requests run concurrently.
	pipe := dispatch.NewPipeline(dispatch.NewExecutor(reg), dispatch.WithOrdered(true))

	if err := stream.Serve(context.Background(), stream.JSONCodec{}, os.Stdin, os.Stdout, pipe); err != nil {
		log.Fatal(err)
	}
}
