// Package logging builds the process logger: a zap core exposed through logr,
// writing to stdout and to latest.log in the configured output directory.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Verbosity levels for logger.V().
const (
	DEFAULT = 0
	VERBOSE = 1
	DEBUG   = 2
	TRACE   = 3
)

// LatestLog is the name of the log file written by the running process.
const LatestLog = "latest.log"

// Options configures New.
type Options struct {
	// OutputDir holds latest.log and its archives. Empty disables the file sink.
	OutputDir string
	// Level is one of error, warn, info, debug or trace.
	Level string
	// Format is console or json.
	Format string
	// Stdout defaults to os.Stdout.
	Stdout io.Writer
}

// ParseLevel maps a configured level name onto a zap level. logr verbosity n
// is zap level -n, so debug shows V(DEBUG) and trace shows everything.
func ParseLevel(name string) (zapcore.Level, error) {
	switch strings.ToLower(name) {
	case "error":
		return zapcore.ErrorLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.Level(-DEBUG), nil
	case "trace":
		return zapcore.Level(-TRACE), nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", name)
}

// Logger is the process logger together with the files it holds open.
type Logger struct {
	logr.Logger
	zap  *zap.Logger
	file *os.File
}

// New archives any previous latest.log and returns a logger writing to stdout
// and a fresh latest.log.
func New(opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	var enc zapcore.Encoder
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	switch opts.Format {
	case "", "console":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	// Each stream gets its own lock so concurrent workers never interleave lines.
	cores := []zapcore.Core{zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(stdout)), level)}

	l := &Logger{}
	if opts.OutputDir != "" {
		if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		if _, err := Archive(opts.OutputDir); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(filepath.Join(opts.OutputDir, LatestLog), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", LatestLog, err)
		}
		l.file = f
		cores = append(cores, zapcore.NewCore(enc.Clone(), zapcore.Lock(f), level))
	}

	l.zap = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	l.Logger = zapr.NewLogger(l.zap)
	return l, nil
}

// Close flushes the sinks and closes latest.log.
func (l *Logger) Close() error {
	l.zap.Sync()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

var exit = os.Exit

// Fatal logs err at error level and exits the process.
func Fatal(logger logr.Logger, err error, msg string, keysAndValues ...any) {
	logger.Error(err, msg, keysAndValues...)
	exit(1)
}

// NewTestLogger creates a development logger that prints every level.
func NewTestLogger() logr.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.Level(-TRACE))
	z, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return logr.Discard()
	}
	return zapr.NewLogger(z)
}
