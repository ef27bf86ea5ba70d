// Package logging builds the logrus loggers used across ast2vec.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options controls logger construction.
type Options struct {
	// Level is one of trace, debug, info, warn, error. Empty means info.
	Level string

	// Format is "text" (default) or "json".
	Format string

	// Output defaults to os.Stderr.
	Output io.Writer

	// ReportPosition adds a short "position" field (dir/file.go:line) to
	// every entry.
	ReportPosition bool
}

// New returns a configured *logrus.Logger.
func New(opts Options) (*logrus.Logger, error) {
	l := logrus.New()

	level := logrus.InfoLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		level = parsed
	}
	l.SetLevel(level)

	switch strings.ToLower(opts.Format) {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("log format: unknown %q", opts.Format)
	}

	if opts.Output != nil {
		l.SetOutput(opts.Output)
	} else {
		l.SetOutput(os.Stderr)
	}

	if opts.ReportPosition {
		l.SetReportCaller(true)
		switch f := l.Formatter.(type) {
		case *logrus.TextFormatter:
			f.CallerPrettyfier = shortCaller
		case *logrus.JSONFormatter:
			f.CallerPrettyfier = shortCaller
		}
	}
	return l, nil
}

// Discard returns a logger that drops everything. Useful as a default for
// components constructed without a logger.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// shortCaller trims the caller file to its last two path elements.
func shortCaller(frame *runtime.Frame) (function string, file string) {
	dir := filepath.Base(filepath.Dir(frame.File))
	return "", fmt.Sprintf("%s/%s:%d", dir, filepath.Base(frame.File), frame.Line)
}
