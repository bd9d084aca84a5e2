// Package logger builds the zerolog writer configuration shared by the CLI
// and the workflow engine, adapted from the teacher repository's
// pkg/logger: info/debug/warn go to stdout, error/fatal/panic go to
// stderr, both with RFC3339 timestamps.
//
// Unlike the teacher, this package exposes no package-level logger: the
// engine is instantiated per run (spec.md §9, "Global state... is
// explicitly avoided"), so every component takes a zerolog.Logger at
// construction instead of reaching for a singleton.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a root logger at the given level.
func New(level zerolog.Level) zerolog.Logger {
	writer := zerolog.MultiLevelWriter(
		SpecificLevelWriter{
			Writer: zerolog.ConsoleWriter{
				Out:        os.Stdout,
				TimeFormat: time.RFC3339,
			},
			Levels: []zerolog.Level{
				zerolog.DebugLevel, zerolog.InfoLevel, zerolog.WarnLevel,
			},
		},
		SpecificLevelWriter{
			Writer: zerolog.ConsoleWriter{
				Out:        os.Stderr,
				TimeFormat: time.RFC3339,
			},
			Levels: []zerolog.Level{
				zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel,
			},
		},
	)
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// Nop returns a logger that discards everything, for tests and callers
// that don't want observability.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// SpecificLevelWriter routes to Writer only for the configured levels.
// From https://stackoverflow.com/questions/76858037 — kept from the
// teacher's implementation verbatim.
type SpecificLevelWriter struct {
	io.Writer
	Levels []zerolog.Level
}

func (w SpecificLevelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	for _, l := range w.Levels {
		if l == level {
			return w.Write(p)
		}
	}
	return len(p), nil
}
