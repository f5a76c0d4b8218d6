// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/writer"
)

// Options selects level and output format.
type Options struct {
	Level  string
	Format string
}

// Entries at errorLevels go to the error stream, the rest to regular output.
var errorLevels = []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel}

var outLevels = []logrus.Level{logrus.WarnLevel, logrus.InfoLevel, logrus.DebugLevel, logrus.TraceLevel}

// New returns a logger writing to stdout and stderr.
func New(opts Options) (*logrus.Logger, error) {
	return NewWithWriters(opts, os.Stdout, os.Stderr)
}

// NewWithWriters returns a logger that writes to out, and error-level
// entries to errOut.
func NewWithWriters(opts Options, out, errOut io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	// logrus has a single output, so entries are routed by level through
	// writer hooks and the output itself is discarded.
	logger.SetOutput(io.Discard)
	logger.AddHook(&writer.Hook{Writer: out, LogLevels: outLevels})
	logger.AddHook(&writer.Hook{Writer: errOut, LogLevels: errorLevels})

	level := opts.Level
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logger.SetLevel(lvl)

	switch strings.ToLower(opts.Format) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    true,
			DisableColors:    true,
			QuoteEmptyFields: true,
		})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("log format %q: must be text or json", opts.Format)
	}

	return logger, nil
}

// Discard returns a logger that drops everything; handy for tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
