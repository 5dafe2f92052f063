// Package logging builds the zap logger shared by the host, pipeline, and
// transports.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls logger construction. The zero value logs info-level
// console output to stderr.
type Config struct {
	// Level: debug, info, warn, or error.
	Level string `yaml:"level"`
	// Format: console or json.
	Format string `yaml:"format"`
	// File is an optional log file path; when set, output goes to the file
	// with rotation instead of stderr.
	File string `yaml:"file"`

	// Rotation settings apply only when File is set.
	MaxSizeMB  int  `yaml:"maxSizeMB"`
	MaxBackups int  `yaml:"maxBackups"`
	MaxAgeDays int  `yaml:"maxAgeDays"`
	Compress   bool `yaml:"compress"`
}

// New builds a zap.Logger from the config. The caller should defer Sync.
func New(c Config) (*zap.Logger, error) {
	level := zap.InfoLevel
	switch strings.ToLower(strings.TrimSpace(c.Level)) {
	case "", "info":
	case "debug":
		level = zap.DebugLevel
	case "warn", "warning":
		level = zap.WarnLevel
	case "error":
		level = zap.ErrorLevel
	default:
		return nil, fmt.Errorf("logging: invalid level %q", c.Level)
	}

	var encoder zapcore.Encoder
	switch strings.ToLower(strings.TrimSpace(c.Format)) {
	case "", "console":
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	case "json":
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	default:
		return nil, fmt.Errorf("logging: invalid format %q", c.Format)
	}

	var ws zapcore.WriteSyncer
	if c.File != "" {
		ws = zapcore.AddSync(&lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    orDefault(c.MaxSizeMB, 50),
			MaxBackups: orDefault(c.MaxBackups, 3),
			MaxAge:     orDefault(c.MaxAgeDays, 28),
			Compress:   c.Compress,
		})
	} else {
		ws = zapcore.AddSync(os.Stderr)
	}

	core := zapcore.NewCore(encoder, ws, level)
	return zap.New(core, zap.AddStacktrace(zap.ErrorLevel)), nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
