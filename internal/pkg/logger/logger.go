package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"

	slogzap "github.com/samber/slog-zap/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// slog -> zap bridges.
const (
	BridgeSlogZap = "slogzap"
	BridgeZapslog = "zapslog"
)

var (
	globalLogger *slog.Logger
	zapLogger    *zap.Logger
)

// Options configures the process logger.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json or console
	File   string // optional extra output path
	Bridge string // slogzap (default) or zapslog
}

// Init builds the zap logger and installs it as the slog default through the
// selected bridge. It returns the zap logger so callers can Sync it on exit.
func Init(opts Options) (*zap.Logger, error) {
	level, levelErr := zapcore.ParseLevel(strings.ToLower(opts.Level))
	if levelErr != nil {
		level = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Sampling = nil
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if strings.EqualFold(opts.Format, "console") {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if opts.File != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, opts.File)
	}

	zl, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	zapLogger = zl
	globalLogger = slog.New(newHandler(zl, level, opts.Bridge))
	slog.SetDefault(globalLogger)
	if levelErr != nil && opts.Level != "" {
		Warn("Invalid log level string, defaulting to INFO", "input", opts.Level)
	}
	return zl, nil
}

func newHandler(zl *zap.Logger, level zapcore.Level, bridge string) slog.Handler {
	if strings.EqualFold(bridge, BridgeZapslog) {
		return zapslog.NewHandler(zl.Core())
	}
	// Используем samber/slog-zap адаптер
	return slogzap.Option{Level: slogLevel(level), Logger: zl}.NewZapHandler()
}

func slogLevel(level zapcore.Level) slog.Level {
	switch {
	case level <= zapcore.DebugLevel:
		return slog.LevelDebug
	case level == zapcore.InfoLevel:
		return slog.LevelInfo
	case level == zapcore.WarnLevel:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// Zap returns the process zap logger, or a no-op logger before Init.
func Zap() *zap.Logger {
	if zapLogger == nil {
		return zap.NewNop()
	}
	return zapLogger
}

// ensureInitialized falls back to slog's default handler until Init is called.
func ensureInitialized() {
	if globalLogger == nil {
		globalLogger = slog.Default()
	}
}

// Debug logs a message at DebugLevel.
func Debug(msg string, args ...any) {
	ensureInitialized()
	if globalLogger.Enabled(context.Background(), slog.LevelDebug) {
		globalLogger.Debug(msg, args...)
	}
}

// Info logs a message at InfoLevel.
func Info(msg string, args ...any) {
	ensureInitialized()
	globalLogger.Info(msg, args...)
}

// Warn logs a message at WarnLevel.
func Warn(msg string, args ...any) {
	ensureInitialized()
	globalLogger.Warn(msg, args...)
}

// Error logs a message at ErrorLevel.
func Error(msg string, args ...any) {
	ensureInitialized()
	globalLogger.Error(msg, args...)
}

// Fatal logs a message at ErrorLevel then exits.
func Fatal(msg string, args ...any) {
	ensureInitialized()
	globalLogger.Error(msg, args...)
	if zapLogger != nil {
		_ = zapLogger.Sync()
	}
	os.Exit(1)
}
