// Package logging wraps a process-wide zerolog logger.
//
// Call Init once from startup; until then the logger writes JSON at info
// level to stderr.
//
//	logging.Init(logging.Config{Level: "debug", Format: "console"})
//	logging.Info().Str("habit", id).Msg("habit completed")
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level: debug, info, warn, error. Default: info.
	Level string

	// Format is json or console. Default: json.
	Format string

	// Output defaults to os.Stderr.
	Output io.Writer
}

var (
	log zerolog.Logger
	mu  sync.RWMutex
)

func init() {
	initLogger(Config{})
}

// Init configures the global logger. It is safe to call more than once.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	initLogger(cfg)
}

// initLogger must be called with mu held (or from init).
func initLogger(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	output := cfg.Output
	if strings.EqualFold(cfg.Format, "console") {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}

	log = zerolog.New(output).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger returns the global logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Component returns a child logger tagged with the given component name.
func Component(name string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log.With().Str("component", name).Logger()
}

// Writer returns an io.Writer that emits every write as one log line.
// It is used to route third-party line loggers (like the HTTP access log) through zerolog.
func Writer(component string) io.Writer {
	return Component(component)
}

func Debug() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Debug()
}

func Info() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Info()
}

func Warn() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Warn()
}

func Error() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Error()
}

// Fatal logs and then exits the process with status 1.
func Fatal() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Fatal()
}
