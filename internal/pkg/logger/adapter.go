package logger

import (
	"ist_tvl/internal/app/port"
)

// slogAdapter реализует интерфейс port.Logger, используя глобальные функции пакета logger.
type slogAdapter struct{}

// NewSlogAdapter создает новый экземпляр slogAdapter.
func NewSlogAdapter() port.Logger {
	return &slogAdapter{}
}

// Info логирует информационное сообщение.
func (a *slogAdapter) Info(msg string, args ...any) {
	Info(msg, args...)
}

// Debug логирует отладочное сообщение.
func (a *slogAdapter) Debug(msg string, args ...any) {
	Debug(msg, args...)
}

// Warn логирует предупреждающее сообщение.
func (a *slogAdapter) Warn(msg string, args ...any) {
	Warn(msg, args...)
}

// Error логирует сообщение об ошибке.
func (a *slogAdapter) Error(msg string, args ...any) {
	Error(msg, args...)
}

// With returns a logger that adds args to every record of l, e.g. a run id.
func With(l port.Logger, args ...any) port.Logger {
	return &boundLogger{l: l, args: args}
}

type boundLogger struct {
	l    port.Logger
	args []any
}

func (b *boundLogger) bind(args []any) []any {
	return append(append(make([]any, 0, len(b.args)+len(args)), b.args...), args...)
}

func (b *boundLogger) Info(msg string, args ...any)  { b.l.Info(msg, b.bind(args)...) }
func (b *boundLogger) Debug(msg string, args ...any) { b.l.Debug(msg, b.bind(args)...) }
func (b *boundLogger) Warn(msg string, args ...any)  { b.l.Warn(msg, b.bind(args)...) }
func (b *boundLogger) Error(msg string, args ...any) { b.l.Error(msg, b.bind(args)...) }

// Nop returns a logger that discards everything.
func Nop() port.Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
