// Package logging builds the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the log sink and verbosity.
type Options struct {
	Level   string
	File    string
	Console bool
}

// New returns a logger writing JSON lines to stdout, or to a size-rotated
// file when File is set. Console switches stdout to the human-readable
// writer used in development.
func New(opts Options) zerolog.Logger {
	return zerolog.New(writer(opts)).
		Level(parseLevel(opts.Level)).
		With().
		Timestamp().
		Str("service", "dispatch").
		Logger()
}

func writer(opts Options) io.Writer {
	if opts.File != "" {
		return &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
	}
	if opts.Console {
		return zerolog.ConsoleWriter{Out: os.Stdout}
	}
	return os.Stdout
}

func parseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
