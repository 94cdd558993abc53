package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/oarkflow/smpp-engine/pkg/smpp"
)

// ZeroLogger implements smpp.Logger on top of zerolog, grounded on
// danmuck-edgectl/internal/observability/logger.go's
// zerolog.ConsoleWriter + .With().Timestamp() construction. Format
// "json" emits raw zerolog JSON; anything else uses the console
// writer.
type ZeroLogger struct {
	log zerolog.Logger
}

// NewZeroLogger builds a Logger writing to output ("stderr", or "file"
// to append to the path in file; any other value writes to stdout) at
// the given level, in either "json" or console format.
func NewZeroLogger(level, format, output, file string) (smpp.Logger, error) {
	w, err := resolveWriter(output, file)
	if err != nil {
		return nil, err
	}

	var writer io.Writer = w
	if format != "json" {
		writer = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	base := zerolog.New(writer).Level(parseLevel(level)).With().Timestamp().Logger()
	return &ZeroLogger{log: base}, nil
}

func resolveWriter(output, file string) (*os.File, error) {
	switch output {
	case "stderr":
		return os.Stderr, nil
	case "file":
		return os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	default:
		return os.Stdout, nil
	}
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l *ZeroLogger) Debug(msg string, fields ...interface{}) { withFields(l.log.Debug(), fields).Msg(msg) }
func (l *ZeroLogger) Info(msg string, fields ...interface{})  { withFields(l.log.Info(), fields).Msg(msg) }
func (l *ZeroLogger) Warn(msg string, fields ...interface{})  { withFields(l.log.Warn(), fields).Msg(msg) }
func (l *ZeroLogger) Error(msg string, fields ...interface{}) { withFields(l.log.Error(), fields).Msg(msg) }

func (l *ZeroLogger) Fatal(msg string, fields ...interface{}) {
	withFields(l.log.Fatal(), fields).Msg(msg)
}

func (l *ZeroLogger) WithFields(fields map[string]interface{}) smpp.Logger {
	ctx := l.log.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &ZeroLogger{log: ctx.Logger()}
}

// withFields folds the alternating key/value variadic args smpp.Logger
// callers pass (matching the teacher's logging convention) onto a
// zerolog event.
func withFields(event *zerolog.Event, fields []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		event = event.Interface(key, fields[i+1])
	}
	if len(fields)%2 == 1 {
		event = event.Interface("extra", fields[len(fields)-1])
	}
	return event
}
