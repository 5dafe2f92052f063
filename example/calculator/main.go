package main

import (
	"context"
	"flag"
	"log"
	"net/http"

	"go.uber.org/zap"

	"github.com/mnehpets/onerpc/config"
	"github.com/mnehpets/onerpc/contract"
	"github.com/mnehpets/onerpc/dispatch"
	"github.com/mnehpets/onerpc/httprpc"
	"github.com/mnehpets/onerpc/logging"
	"github.com/mnehpets/onerpc/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type MathMethods struct{}

type AddParams struct {
	_ struct{} `jsonrpc:"add"`
	A int      `json:"a"`
	B int      `json:"b"`
}

func (m *MathMethods) Add(ctx context.Context, p AddParams) (int, error) {
	return p.A + p.B, nil
}

// AddThree overloads "add" with a third positional parameter.
type AddThreeParams struct {
	_ struct{} `jsonrpc:"add"`
	A int      `json:"a"`
	B int      `json:"b"`
	C int      `json:"c"`
}

func (m *MathMethods) AddThree(ctx context.Context, p AddThreeParams) (int, error) {
	return p.A + p.B + p.C, nil
}

type DivParams struct {
	_ struct{} `jsonrpc:"div"`
	A int      `json:"a"`
	B int      `json:"b"`
}

func (m *MathMethods) Div(ctx context.Context, p DivParams) (int, error) {
	return p.A / p.B, nil // a zero divisor surfaces as an internal error
}

func main() {
	configPath := flag.String("config", "", "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	reg := contract.NewRegistry()
	reg.Register("math", &MathMethods{})

	exec := dispatch.NewExecutor(reg, dispatch.WithExecutorLogger(logger))
	pipe := dispatch.NewPipeline(exec,
		dispatch.WithOrdered(cfg.Pipeline.Ordered),
		dispatch.WithMaxConcurrency(cfg.Pipeline.MaxConcurrency),
		dispatch.WithHost(&dispatch.HostInfo{Name: "calculator", Version: "1.0.0"}),
		dispatch.WithLogger(logger),
		dispatch.WithMetrics(metrics.NewPipeline(prometheus.DefaultRegisterer)),
	)

	handler := httprpc.NewHandler(pipe,
		httprpc.WithHandlerLogger(logger),
		httprpc.WithProcessors(
			httprpc.SecurityHeaders(),
			httprpc.RateLimit(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
			httprpc.RequestLog(logger),
		))

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.RPCPath, handler)
	if cfg.Server.MetricsPath != "" {
		mux.Handle(cfg.Server.MetricsPath, metrics.Handler())
	}

	logger.Info("starting server", zap.String("addr", cfg.Server.Addr))
	log.Fatal(http.ListenAndServe(cfg.Server.Addr, mux))
}
