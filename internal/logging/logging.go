package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config contains logging configuration.
type Config struct {
	// Level is the minimum level: debug, info, warn or error.
	Level string

	// FilePath enables file logging. Empty logs to stderr only.
	FilePath string

	MaxSizeMB int
	MaxFiles  int

	// WriteToStderr also writes to stderr when FilePath is set.
	WriteToStderr bool

	// Text switches to slog's text handler, for interactive use.
	Text bool
}

// DefaultConfig logs warnings and errors to stderr.
func DefaultConfig() Config {
	return Config{
		Level:         "warn",
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
}

// DebugConfig logs everything to the default file and stderr.
func DebugConfig() Config {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	cfg.FilePath = DefaultLogPath()
	return cfg
}

// Setup builds a logger for cfg. The returned cleanup closes the log
// file, if any.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	var (
		output  io.Writer = os.Stderr
		cleanup           = func() {}
	)
	if cfg.FilePath != "" {
		writer, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
		if err != nil {
			return nil, nil, err
		}
		output = writer
		if cfg.WriteToStderr {
			output = io.MultiWriter(writer, os.Stderr)
		}
		cleanup = func() {
			_ = writer.Sync()
			_ = writer.Close()
		}
	}
	return slog.New(newHandler(output, cfg)), cleanup, nil
}

// SetupDefault installs the logger for cfg as slog's default.
func SetupDefault(cfg Config) (func(), error) {
	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return cleanup, nil
}

func newHandler(w io.Writer, cfg Config) slog.Handler {
	opts := &slog.HandlerOptions{Level: LevelFromString(cfg.Level)}
	if cfg.Text {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// LevelFromString maps a level name to slog.Level. Unknown names mean info.
func LevelFromString(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
