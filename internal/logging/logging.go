// Package logging provides the diagnostic logger used across pandock.
//
// Library packages depend only on the Logger interface and default to a no-op
// implementation. The CLI wires a zap-backed logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides structured logging with key-value pairs.
type Logger interface {
	// Debug logs debug-level messages with optional key-value pairs.
	Debug(msg string, keysAndValues ...interface{})

	// Info logs info-level messages with optional key-value pairs.
	Info(msg string, keysAndValues ...interface{})

	// Warn logs warning-level messages with optional key-value pairs.
	Warn(msg string, keysAndValues ...interface{})

	// Error logs error-level messages with optional key-value pairs.
	Error(msg string, keysAndValues ...interface{})
}

// noopLogger is a Logger implementation that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Error(msg string, keysAndValues ...interface{}) {}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return noopLogger{}
}

// Format selects the zap encoder.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// Options configures New.
type Options struct {
	Level  string // debug, info, warn, error
	Format Format
	Output io.Writer // defaults to os.Stderr
}

// zapLogger adapts a SugaredLogger to Logger.
type zapLogger struct {
	sugar *zap.SugaredLogger
}

func (z *zapLogger) Debug(msg string, kv ...interface{}) { z.sugar.Debugw(msg, kv...) }
func (z *zapLogger) Info(msg string, kv ...interface{})  { z.sugar.Infow(msg, kv...) }
func (z *zapLogger) Warn(msg string, kv ...interface{})  { z.sugar.Warnw(msg, kv...) }
func (z *zapLogger) Error(msg string, kv ...interface{}) { z.sugar.Errorw(msg, kv...) }

// New builds a zap-backed Logger. The returned sync function flushes buffered
// entries and should be deferred by the caller.
func New(opts Options) (Logger, func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch opts.Format {
	case FormatJSON:
		enc = zapcore.NewJSONEncoder(encCfg)
	case FormatConsole, "":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, nil, fmt.Errorf("unknown log format: %q", opts.Format)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(out), level)
	z := zap.New(core)
	return &zapLogger{sugar: z.Sugar()}, z.Sync, nil
}

// ParseLevel maps a level name to a zap level. Empty means info.
func ParseLevel(name string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level: %q", name)
	}
}
