// Package log wraps a process-wide zerolog logger with the leveled helpers
// used across the node.
package log

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"path"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
	LogLevelFatal = "fatal"

	RFC3339Milli = "2006-01-02T15:04:05.000Z07:00"
)

var (
	log   zerolog.Logger
	logMu sync.RWMutex
)

func init() {
	// $LOG_LEVEL lets tests raise verbosity without touching code.
	Init(cmp.Or(os.Getenv("LOG_LEVEL"), LogLevelError), "stderr", nil)
}

// Logger returns a copy of the global logger.
func Logger() *zerolog.Logger {
	l := current()
	return &l
}

func current() zerolog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return log
}

func replace(l zerolog.Logger) {
	logMu.Lock()
	log = l
	logMu.Unlock()
}

// warnLevelWriter forwards only warn and above, used for the optional error
// output file.
type warnLevelWriter struct {
	io.Writer
}

var _ zerolog.LevelWriter = (*warnLevelWriter)(nil)

func (*warnLevelWriter) Write(_ []byte) (int, error) {
	panic("should be calling WriteLevel")
}

func (w *warnLevelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < zerolog.WarnLevel {
		return len(p), nil
	}
	return w.Writer.Write(p)
}

// Init configures the global logger. Output can be "stdout", "stderr" or a
// file path; paths ending in .json get raw JSON lines in the file and the
// console format on stdout. If errorOutput is not nil, warnings and errors are
// copied there without colors.
func Init(level, output string, errorOutput io.Writer) {
	var out io.Writer
	outputs := []io.Writer{}
	switch output {
	case "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			panic(fmt.Sprintf("cannot create log output: %v", err))
		}
		out = f
		if strings.HasSuffix(output, ".json") {
			outputs = append(outputs, f)
			out = os.Stdout
		}
	}
	outputs = append(outputs, zerolog.ConsoleWriter{Out: out, TimeFormat: RFC3339Milli})
	if errorOutput != nil {
		outputs = append(outputs, &warnLevelWriter{zerolog.ConsoleWriter{
			Out:        errorOutput,
			TimeFormat: RFC3339Milli,
			NoColor:    true,
		}})
	}
	if len(outputs) > 1 {
		out = zerolog.MultiLevelWriter(outputs...)
	} else {
		out = outputs[0]
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	zerolog.CallerSkipFrameCount = 3
	zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
		return fmt.Sprintf("%s/%s:%d", path.Base(path.Dir(file)), path.Base(file), line)
	}
	logger := zerolog.New(out).With().Timestamp().Caller().Logger()

	switch level {
	case LogLevelDebug:
		logger = logger.Level(zerolog.DebugLevel)
	case LogLevelInfo:
		logger = logger.Level(zerolog.InfoLevel)
	case LogLevelWarn:
		logger = logger.Level(zerolog.WarnLevel)
	case LogLevelError:
		logger = logger.Level(zerolog.ErrorLevel)
	case LogLevelFatal:
		logger = logger.Level(zerolog.FatalLevel)
	default:
		panic(fmt.Sprintf("invalid log level: %q", level))
	}

	replace(logger)
	logger.Info().Msgf("logger initialized at level %s with output %s", level, output)
}

// Level returns the current log level name.
func Level() string {
	switch l := current().GetLevel(); l {
	case zerolog.DebugLevel:
		return LogLevelDebug
	case zerolog.InfoLevel:
		return LogLevelInfo
	case zerolog.WarnLevel:
		return LogLevelWarn
	case zerolog.ErrorLevel:
		return LogLevelError
	case zerolog.FatalLevel:
		return LogLevelFatal
	default:
		panic(fmt.Sprintf("invalid log level: %q", l))
	}
}

// Warn sends a warn level log message
func Warn(args ...any) {
	l := current()
	l.Warn().Msg(fmt.Sprint(args...))
}

// Error logs the arguments at error level.
func Error(args ...any) {
	Logger().Error().Msg(fmt.Sprint(args...))
}

// Fatalf logs with the stack trace and exits.
func Fatalf(template string, args ...any) {
	Logger().Fatal().Msgf(template+"\n"+string(debug.Stack()), args...)
}

// Debugw sends a debug level log message with key-value pairs.
func Debugw(msg string, keyvalues ...any) {
	Logger().Debug().Fields(keyvalues).Msg(msg)
}

// Infow sends an info level log message with key-value pairs.
func Infow(msg string, keyvalues ...any) {
	Logger().Info().Fields(keyvalues).Msg(msg)
}

// Warnw sends a warning level log message with key-value pairs.
func Warnw(msg string, keyvalues ...any) {
	Logger().Warn().Fields(keyvalues).Msg(msg)
}

// Errorw logs err under the "error" field.
func Errorw(err error, msg string) {
	Logger().Error().Err(err).Msg(msg)
}

// Since is a small helper for "took" fields.
func Since(start time.Time) string {
	return time.Since(start).Round(time.Millisecond).String()
}
