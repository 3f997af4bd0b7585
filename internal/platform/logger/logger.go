package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return Debug
	case "info", "":
		return Info
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "info"
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case Debug:
		return zerolog.DebugLevel
	case Warn:
		return zerolog.WarnLevel
	case Error:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON
	default:
		return FormatText
	}
}

type Logger interface {
	With(fields map[string]any) Logger

	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)

	// Zerolog expone el logger subyacente (middleware de requests).
	Zerolog() zerolog.Logger
}

type Options struct {
	Level  Level
	Format Format
	App    string

	// Out por defecto es os.Stdout.
	Out io.Writer
}

type zlogger struct {
	z zerolog.Logger
}

func New(opts Options) Logger {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	if opts.Format != FormatJSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: true}
	}

	ctx := zerolog.New(out).Level(opts.Level.zerolog()).With().Timestamp()
	if app := strings.TrimSpace(opts.App); app != "" {
		ctx = ctx.Str("app", app)
	}
	return &zlogger{z: ctx.Logger()}
}

// Nop descarta todo (tests).
func Nop() Logger {
	return &zlogger{z: zerolog.Nop()}
}

func (l *zlogger) With(fields map[string]any) Logger {
	if len(fields) == 0 {
		return l
	}
	return &zlogger{z: l.z.With().Fields(clean(fields)).Logger()}
}

func (l *zlogger) Debug(msg string, fields map[string]any) { l.log(l.z.Debug(), msg, fields) }
func (l *zlogger) Info(msg string, fields map[string]any)  { l.log(l.z.Info(), msg, fields) }
func (l *zlogger) Warn(msg string, fields map[string]any)  { l.log(l.z.Warn(), msg, fields) }
func (l *zlogger) Error(msg string, fields map[string]any) { l.log(l.z.Error(), msg, fields) }

func (l *zlogger) Zerolog() zerolog.Logger { return l.z }

func (l *zlogger) log(evt *zerolog.Event, msg string, fields map[string]any) {
	if evt == nil {
		return
	}
	fields = clean(fields)
	if err, ok := fields["error"].(error); ok {
		evt = evt.Err(err)
		delete(fields, "error")
	}
	evt.Fields(fields).Msg(msg)
}

// clean descarta keys vacías.
func clean(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if strings.TrimSpace(k) == "" {
			continue
		}
		out[k] = v
	}
	return out
}
