package server

import (
	"io"
	"log/slog"
	"os"
)

type LogConfig struct {
	Level  slog.Level
	Format string // "json" or "text"
	Output io.Writer
}

func DefaultLogConfig() *LogConfig {
	return &LogConfig{Level: slog.LevelInfo, Format: "json", Output: os.Stdout}
}

// SuppressedLogConfig discards all log output. Used by tests.
func SuppressedLogConfig() *LogConfig {
	return &LogConfig{Level: slog.LevelError, Format: "text", Output: io.Discard}
}

func setupLogger(cfg *LogConfig) {
	if cfg == nil {
		cfg = DefaultLogConfig()
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// ParseLogLevel maps a config string to a slog level, defaulting to Info.
func ParseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
