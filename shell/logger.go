package shell

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2/pkg/logger"
)

// NewLogger returns the app-wide logger.
// Dev mode writes human-readable output at debug level; otherwise JSON at info level.
func NewLogger(dev bool) zerolog.Logger {
	if dev {
		return newLogger(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}, zerolog.DebugLevel)
	}
	return newLogger(os.Stderr, zerolog.InfoLevel)
}

func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// WailsLogger routes the framework's own log output into zerolog
type WailsLogger struct {
	log zerolog.Logger
}

var _ logger.Logger = (*WailsLogger)(nil)

// NewWailsLogger wraps l for use as options.App.Logger
func NewWailsLogger(l zerolog.Logger) *WailsLogger {
	return &WailsLogger{log: l.With().Str("component", "wails").Logger()}
}

func (w *WailsLogger) Print(message string) {
	w.log.Log().Msg(message)
}

func (w *WailsLogger) Trace(message string) {
	w.log.Trace().Msg(message)
}

func (w *WailsLogger) Debug(message string) {
	w.log.Debug().Msg(message)
}

func (w *WailsLogger) Info(message string) {
	w.log.Info().Msg(message)
}

func (w *WailsLogger) Warning(message string) {
	w.log.Warn().Msg(message)
}

func (w *WailsLogger) Error(message string) {
	w.log.Error().Msg(message)
}

func (w *WailsLogger) Fatal(message string) {
	w.log.Fatal().Msg(message)
}

// wailsLogLevel maps the zerolog level onto the framework's level filter
func wailsLogLevel(l zerolog.Level) logger.LogLevel {
	switch {
	case l <= zerolog.TraceLevel:
		return logger.TRACE
	case l == zerolog.DebugLevel:
		return logger.DEBUG
	case l == zerolog.InfoLevel:
		return logger.INFO
	case l == zerolog.WarnLevel:
		return logger.WARNING
	default:
		return logger.ERROR
	}
}
