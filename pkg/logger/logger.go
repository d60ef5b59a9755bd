// Package logger provides structured logging for reservoir
package logger

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *zap.Logger
	once         sync.Once
)

type contextKey int

const (
	poolKey contextKey = iota
	runIDKey
)

// Config represents logger configuration
type Config struct {
	Level       string
	Development bool
	Encoding    string // json or console
	OutputPaths []string
}

// Init initializes the global logger. Only the first call has an effect.
func Init(cfg Config) error {
	var err error
	once.Do(func() {
		globalLogger, err = newLogger(cfg)
	})
	return err
}

func newLogger(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.Sampling = nil
	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.MessageKey = "message"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	zapCfg.Encoding = "json"
	if cfg.Encoding != "" {
		zapCfg.Encoding = cfg.Encoding
	}
	zapCfg.OutputPaths = []string{"stdout"}
	if len(cfg.OutputPaths) > 0 {
		zapCfg.OutputPaths = cfg.OutputPaths
	}

	opts := []zap.Option{}
	if cfg.Development {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}
	logger, err := zapCfg.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// Get returns the global logger, initializing it at info level on first use.
func Get() *zap.Logger {
	if globalLogger == nil {
		if err := Init(Config{Level: "info"}); err != nil || globalLogger == nil {
			globalLogger = zap.NewNop()
		}
	}
	return globalLogger
}

// Named returns a named child of the global logger
func Named(name string) *zap.Logger {
	return Get().Named(name)
}

// WithPool returns a copy of ctx that tags log entries with a pool name.
func WithPool(ctx context.Context, pool string) context.Context {
	return context.WithValue(ctx, poolKey, pool)
}

// WithRunID returns a copy of ctx that tags log entries with a workload run ID.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// Fields returns the log fields carried by ctx.
func Fields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if pool, ok := ctx.Value(poolKey).(string); ok {
		fields = append(fields, zap.String("pool", pool))
	}
	if runID, ok := ctx.Value(runIDKey).(string); ok {
		fields = append(fields, zap.String("run_id", runID))
	}
	return fields
}

// WithContext returns the global logger tagged with the fields of ctx.
func WithContext(ctx context.Context) *zap.Logger {
	return Get().With(Fields(ctx)...)
}

// Sync flushes any buffered log entries
func Sync() error {
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}
