// Package logging installs and configures the process-wide zerolog logger.
package logging

import (
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// Config controls the global logger installed by Init.
type Config struct {
	// Format is "json", "console", or "auto" (console when stderr is a TTY).
	Format string
	// Level is one of debug/info/warn/error, case-insensitive.
	Level string
	// Component is attached to every record as the "component" field.
	Component string
}

var (
	mu            sync.RWMutex
	baseWriter    = os.Stderr
	baseComponent string
	baseLogger    = zerolog.New(baseWriter).With().Timestamp().Logger()
	isTerminalFn  = func(f *os.File) bool { return term.IsTerminal(int(f.Fd())) }
)

func init() {
	log.Logger = baseLogger
}

// Init installs the global logger. Safe to call concurrently; later calls
// replace the logger entirely rather than merge with the previous one.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	writer := selectWriter(cfg.Format)
	baseWriter = os.Stderr
	baseComponent = cfg.Component

	builder := zerolog.New(writer).With().Timestamp()
	if cfg.Component != "" {
		builder = builder.Str("component", cfg.Component)
	}
	baseLogger = builder.Logger()
	log.Logger = baseLogger

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
}

func selectWriter(format string) interface{ Write([]byte) (int, error) } {
	switch strings.ToLower(format) {
	case "json":
		return os.Stderr
	case "console":
		return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	case "auto":
		if isTerminalFn(os.Stderr) {
			return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
		}
		return os.Stderr
	default:
		return os.Stderr
	}
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Component returns a child logger tagged with the given component name,
// derived from the currently installed global logger.
func Component(name string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log.Logger.With().Str("component", name).Logger()
}

// IsLevelEnabled reports whether the current global level would emit at lvl.
func IsLevelEnabled(lvl zerolog.Level) bool {
	return lvl >= zerolog.GlobalLevel()
}
