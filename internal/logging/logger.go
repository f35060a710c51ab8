// Package logging builds the zap logger cycletee reports diagnostics with.
//
// Diagnostics go to a single stream (standard error in practice) using the
// console encoder. Timestamps and callers are only emitted in development
// mode, and levels are coloured when the stream is a terminal.
//
// Example:
//
//	logger, err := logging.New(cfg.Log, os.Stderr)
//	logger.Error("write failed", zap.String("sink", name), zap.Error(err))
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/Geun-Oh/cycletee/internal/config"
)

// Name is the logger name shown on every line.
const Name = "cycletee"

// New creates a logger writing to w at the configured level.
func New(cfg config.LogConfig, w io.Writer) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("logging: parse level %q: %w", cfg.Level, err)
	}

	enc := zapcore.NewConsoleEncoder(encoderConfig(cfg.Development, isTerminal(w)))
	core := zapcore.NewCore(enc, zapcore.AddSync(w), zap.NewAtomicLevelAt(level))

	var opts []zap.Option
	if cfg.Development {
		opts = append(opts, zap.AddCaller(), zap.Development())
	}
	return zap.New(core, opts...).Named(Name), nil
}

// NewNop returns a logger that discards everything.
func NewNop() *zap.Logger {
	return zap.NewNop()
}

func encoderConfig(development, color bool) zapcore.EncoderConfig {
	cfg := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		NameKey:        "logger",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	if color {
		cfg.EncodeLevel = zapcore.LowercaseColorLevelEncoder
	}
	if development {
		cfg.TimeKey = "ts"
		cfg.CallerKey = "caller"
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncodeCaller = zapcore.ShortCallerEncoder
	}
	return cfg
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
