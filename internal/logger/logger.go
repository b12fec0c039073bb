// Package logger wraps zerolog with the settings used by the chat server.
package logger

import (
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Config logger settings
type Config struct {
	Level             string `yaml:"level"`
	TimeFieldFormat   string `yaml:"time_field_format"`
	PrettyPrint       bool   `yaml:"pretty_print"`
	RedirectStdLogger bool   `yaml:"redirect_std_logger"`
	ErrorStack        bool   `yaml:"error_stack"`
	ShowCaller        bool   `yaml:"show_caller"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Level:             "info",
		TimeFieldFormat:   time.RFC3339,
		PrettyPrint:       false,
		RedirectStdLogger: true,
		ErrorStack:        true,
	}
}

// Logger writes regular events to one writer and warnings/errors to another.
type Logger struct {
	zero    zerolog.Logger
	zeroErr zerolog.Logger
}

// New creates a Logger writing to stdout and stderr.
func New(cfg Config) *Logger {
	return newLogger(cfg, os.Stdout, os.Stderr)
}

// NewWithWriter creates a Logger that sends every level to w. Pretty printing
// and std logger redirection are ignored.
func NewWithWriter(cfg Config, w io.Writer) *Logger {
	cfg.PrettyPrint = false
	cfg.RedirectStdLogger = false
	return newLogger(cfg, w, w)
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return &Logger{zero: zerolog.Nop(), zeroErr: zerolog.Nop()}
}

func newLogger(cfg Config, out, errOut io.Writer) *Logger {
	zerolog.SetGlobalLevel(getZerologLevel(cfg.Level))
	if cfg.TimeFieldFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFieldFormat
	}
	if cfg.ErrorStack {
		zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	}

	if cfg.PrettyPrint {
		out = zerolog.ConsoleWriter{Out: out}
		errOut = zerolog.ConsoleWriter{Out: errOut}
	}

	l := &Logger{
		zero:    zerolog.New(out).With().Timestamp().Logger(),
		zeroErr: zerolog.New(errOut).With().Timestamp().Logger(),
	}
	if cfg.ShowCaller {
		l.zero = l.zero.With().Caller().Logger()
		l.zeroErr = l.zeroErr.With().Caller().Logger()
	}

	if cfg.RedirectStdLogger {
		log.SetFlags(0)
		log.SetOutput(l.zero)
	}

	return l
}

// Debug starts a new message with debug level
func (l *Logger) Debug() *zerolog.Event {
	return l.zero.Debug()
}

// Info starts a new message with info level
func (l *Logger) Info() *zerolog.Event {
	return l.zero.Info()
}

// Warn starts a new message with warn level
func (l *Logger) Warn() *zerolog.Event {
	return l.zeroErr.Warn()
}

// Error starts a new message with error level
func (l *Logger) Error() *zerolog.Event {
	return l.zeroErr.Error()
}

// Fatalf sends the event with formatted msg with fatal level
func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.zeroErr.Fatal().Msgf(format, v...)
}

// Printf sends the event with formatted msg with debug level.
// It makes Logger usable as a printf-style sink for other libraries.
func (l *Logger) Printf(format string, v ...interface{}) {
	l.zero.Debug().Msgf(format, v...)
}

// With returns a child logger with the fields added by fn.
func (l *Logger) With(fn func(zerolog.Context) zerolog.Context) *Logger {
	return &Logger{
		zero:    fn(l.zero.With()).Logger(),
		zeroErr: fn(l.zeroErr.With()).Logger(),
	}
}

func getZerologLevel(lvl string) zerolog.Level {
	switch strings.ToLower(lvl) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "disabled":
		return zerolog.Disabled
	}
	return zerolog.InfoLevel
}

// ValidLevel reports whether lvl names a known level.
func ValidLevel(lvl string) bool {
	switch strings.ToLower(lvl) {
	case "debug", "info", "warn", "error", "fatal", "panic", "disabled":
		return true
	}
	return false
}
