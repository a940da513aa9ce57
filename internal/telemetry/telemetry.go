// Package telemetry wires TrocZen's structured logging. Every component logs
// through a named sub-logger obtained from Logger, so log lines always carry
// a "component" field back to the engine or daemon that produced them.
package telemetry

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu   sync.Mutex
	base zerolog.Logger
	init_ bool
)

// Options configures the process-wide logger. Zero value is a sane default
// (info level, console writer, no file).
type Options struct {
	Level      string // debug|info|warn|error, default info
	FilePath   string // rotating log file, empty disables file output
	Production bool   // true: compact JSON; false: human console writer
	MaxSizeMB  int    // rotation threshold, default 10 (spec §6 "10 MiB, 5 backups")
	MaxBackups int    // default 5
}

// Init configures the global base logger. It is safe to call once at process
// start; subsequent calls replace the base logger (tests call this per-case).
func Init(opts Options) {
	mu.Lock()
	defer mu.Unlock()

	level := parseLevel(opts.Level)

	var writers []io.Writer
	if opts.Production {
		writers = append(writers, os.Stdout)
	} else {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05"})
	}

	if opts.FilePath != "" {
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		maxBackups := opts.MaxBackups
		if maxBackups <= 0 {
			maxBackups = 5
		}
		writers = append(writers, newRotatingWriter(opts.FilePath, int64(maxSize)*1024*1024, maxBackups))
	}

	var out io.Writer
	if len(writers) == 1 {
		out = writers[0]
	} else {
		out = zerolog.MultiLevelWriter(writers...)
	}

	base = zerolog.New(out).Level(level).With().Timestamp().Logger()
	init_ = true
}

// Logger returns a component-scoped logger. It lazily initializes a default
// base logger (info level, console only) if Init was never called, so
// packages used as a library (the DRAGON engines, outside the daemon) never
// need to know about telemetry setup.
func Logger(component string) zerolog.Logger {
	mu.Lock()
	if !init_ {
		mu.Unlock()
		Init(Options{})
		mu.Lock()
	}
	l := base
	mu.Unlock()
	return l.With().Str("component", component).Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "critical", "fatal":
		return zerolog.FatalLevel
	case "":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}
