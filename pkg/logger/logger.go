// Package logger provides structured logging for the ledger services. It
// wraps zerolog with component loggers, ledger-specific fields and
// redaction of key material.
package logger

import (
	"io"
	"math/big"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string

	// Output is where logs are written (default: os.Stdout)
	Output io.Writer

	// Pretty enables human-readable console output
	Pretty bool

	// CallerEnabled adds file and line number to logs
	CallerEnabled bool
}

// New creates a logger. The level applies to this logger only.
func New(cfg *Config) *Logger {
	if cfg == nil {
		cfg = &Config{Level: "info"}
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	zlog := zerolog.New(output).Level(parseLevel(cfg.Level)).With().Timestamp().Logger()
	if cfg.CallerEnabled {
		zlog = zlog.With().Caller().Logger()
	}
	return &Logger{zlog: zlog}
}

// ValidLevel reports whether level is a recognised level name
func ValidLevel(level string) bool {
	_, ok := levels[level]
	return ok
}

var levels = map[string]zerolog.Level{
	"debug": zerolog.DebugLevel,
	"info":  zerolog.InfoLevel,
	"warn":  zerolog.WarnLevel,
	"error": zerolog.ErrorLevel,
}

func parseLevel(level string) zerolog.Level {
	if l, ok := levels[level]; ok {
		return l
	}
	return zerolog.InfoLevel
}

// With creates a child logger with additional context
func (l *Logger) With() *Context {
	return &Context{zctx: l.zlog.With()}
}

// Info logs a bare info message
func (l *Logger) Info(msg string) {
	l.zlog.Info().Msg(msg)
}

// DebugEvent returns a debug event
func (l *Logger) DebugEvent() *Event {
	return &Event{zevent: l.zlog.Debug()}
}

// InfoEvent returns an info event
func (l *Logger) InfoEvent() *Event {
	return &Event{zevent: l.zlog.Info()}
}

// WarnEvent returns a warn event
func (l *Logger) WarnEvent() *Event {
	return &Event{zevent: l.zlog.Warn()}
}

// ErrorEvent returns an error event
func (l *Logger) ErrorEvent() *Event {
	return &Event{zevent: l.zlog.Error()}
}

// Context adds fields to a child logger
type Context struct {
	zctx zerolog.Context
}

// Str adds a string field
func (c *Context) Str(key, val string) *Context {
	c.zctx = c.zctx.Str(key, val)
	return c
}

// Node tags the logger with a replica name
func (c *Context) Node(name string) *Context {
	return c.Str("node", name)
}

// Logger returns the configured logger
func (c *Context) Logger() *Logger {
	return &Logger{zlog: c.zctx.Logger()}
}

// Event is a log entry under construction. Methods are nil-safe when the
// level is disabled.
type Event struct {
	zevent *zerolog.Event
}

// Str adds a string field
func (e *Event) Str(key, val string) *Event {
	e.zevent.Str(key, val)
	return e
}

// Strs adds a string slice field
func (e *Event) Strs(key string, vals []string) *Event {
	e.zevent.Strs(key, vals)
	return e
}

// Int adds an int field
func (e *Event) Int(key string, val int) *Event {
	e.zevent.Int(key, val)
	return e
}

// Uint64 adds a uint64 field
func (e *Event) Uint64(key string, val uint64) *Event {
	e.zevent.Uint64(key, val)
	return e
}

// Bool adds a boolean field
func (e *Event) Bool(key string, val bool) *Event {
	e.zevent.Bool(key, val)
	return e
}

// Dur adds a duration field
func (e *Event) Dur(key string, val time.Duration) *Event {
	e.zevent.Dur(key, val)
	return e
}

// Err adds an error field
func (e *Event) Err(err error) *Event {
	e.zevent.AnErr("error", err)
	return e
}

// Node adds the replica name
func (e *Event) Node(name string) *Event {
	return e.Str("node", name)
}

// Seq adds a consensus sequence number
func (e *Event) Seq(seq uint64) *Event {
	return e.Uint64("sequence", seq)
}

// View adds a consensus view number
func (e *Event) View(view uint64) *Event {
	return e.Uint64("view", view)
}

// BigInt adds a public integer, abbreviated to its leading and trailing
// digits
func (e *Event) BigInt(key string, v *big.Int) *Event {
	if v == nil {
		return e.Str(key, "<nil>")
	}
	return e.Str(key, Abbreviate(v.String(), 12))
}

// Secret adds a redacted form of a secret value
func (e *Event) Secret(key, val string) *Event {
	return e.Str(key, RedactSecret(val))
}

// Msg completes the event with a message
func (e *Event) Msg(msg string) {
	e.zevent.Msg(msg)
}

// Abbreviate keeps the first and last keep/2 characters of s
func Abbreviate(s string, keep int) string {
	if keep <= 0 || len(s) <= keep+3 {
		return s
	}
	half := keep / 2
	return s[:half] + "..." + s[len(s)-half:]
}

// RedactSecret hides secret values. Never log raw keys, passphrases or
// identity secrets.
func RedactSecret(secret string) string {
	if len(secret) == 0 {
		return "<empty>"
	}
	if len(secret) <= 8 {
		return "<redacted>"
	}
	return secret[:4] + "..." + "<redacted>"
}

var globalLogger = New(nil)

// SetGlobalLogger sets the logger that Component derives from
func SetGlobalLogger(logger *Logger) {
	if logger != nil {
		globalLogger = logger
	}
}

// L returns the global logger
func L() *Logger {
	return globalLogger
}

// Component returns a child of the global logger tagged with a component name
func Component(name string) *Logger {
	return globalLogger.With().Str("component", name).Logger()
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}
