// Package config loads host configuration from a YAML file with environment
// overrides.
//
// A .env file in the working directory is loaded first (when present), then
// the YAML file, then ONERPC_* environment variables, which win. Example:
// ONERPC_PIPELINE_ORDERED=true.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mnehpets/onerpc/logging"
)

// Config is the root host configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Log      logging.Config `yaml:"log"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	// Addr is the host:port to bind.
	Addr string `yaml:"addr"`
	// RPCPath is the JSON-RPC route.
	RPCPath string `yaml:"rpcPath"`
	// MetricsPath is the Prometheus scrape route; empty disables it.
	MetricsPath string `yaml:"metricsPath"`
	// RateLimitRPS throttles per-client request rates; zero disables
	// throttling.
	RateLimitRPS   float64 `yaml:"rateLimitRPS"`
	RateLimitBurst int     `yaml:"rateLimitBurst"`
}

// PipelineConfig controls response sequencing and fan-out.
type PipelineConfig struct {
	// Ordered selects response emission in request acceptance order.
	Ordered bool `yaml:"ordered"`
	// MaxConcurrency bounds concurrently processed calls per attachment;
	// zero means unbounded.
	MaxConcurrency int `yaml:"maxConcurrency"`
}

// Default returns the configuration used when no file or overrides are
// present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			RPCPath:        "/rpc",
			MetricsPath:    "/metrics",
			RateLimitBurst: 10,
		},
		Log: logging.Config{Level: "info", Format: "console"},
	}
}

// Load reads the config file at path (optional: empty path skips the file)
// and applies environment overrides. A missing file at an explicit path is
// an error; env-only operation requires an empty path.
func Load(path string) (Config, error) {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setString("ONERPC_SERVER_ADDR", &c.Server.Addr)
	setString("ONERPC_SERVER_RPC_PATH", &c.Server.RPCPath)
	setString("ONERPC_SERVER_METRICS_PATH", &c.Server.MetricsPath)
	setString("ONERPC_LOG_LEVEL", &c.Log.Level)
	setString("ONERPC_LOG_FORMAT", &c.Log.Format)
	setString("ONERPC_LOG_FILE", &c.Log.File)

	if v, ok := os.LookupEnv("ONERPC_PIPELINE_ORDERED"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: ONERPC_PIPELINE_ORDERED: %w", err)
		}
		c.Pipeline.Ordered = b
	}
	if v, ok := os.LookupEnv("ONERPC_PIPELINE_MAX_CONCURRENCY"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: ONERPC_PIPELINE_MAX_CONCURRENCY: %w", err)
		}
		c.Pipeline.MaxConcurrency = n
	}
	if v, ok := os.LookupEnv("ONERPC_SERVER_RATE_LIMIT_RPS"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("config: ONERPC_SERVER_RATE_LIMIT_RPS: %w", err)
		}
		c.Server.RateLimitRPS = f
	}
	return nil
}

func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config: server.addr must not be empty")
	}
	if c.Pipeline.MaxConcurrency < 0 {
		return fmt.Errorf("config: pipeline.maxConcurrency must be >= 0")
	}
	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("config: server.rateLimitRPS must be >= 0")
	}
	if c.Server.RPCPath == "" {
		c.Server.RPCPath = "/rpc"
	}
	return nil
}
