package types

import (
	"log/slog"
)

// Logger defines the structured logging interface used throughout the platform.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
// slog.Logger satisfies Info, Warn and Error directly, but its With returns
// *slog.Logger rather than Logger, so an adapter is necessary.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter wraps the given slog logger. A nil logger falls back to
// slog.Default().
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAdapter{logger: logger}
}

func (a *SlogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *SlogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *SlogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *SlogAdapter) With(args ...any) Logger {
	return &SlogAdapter{logger: a.logger.With(args...)}
}

var _ Logger = (*SlogAdapter)(nil)
