package internal

import (
	"io"
	"log/slog"
	"os"
)

func NewLogger(config *Config) *slog.Logger {
	return newLogger(config, os.Stdout)
}

func newLogger(config *Config, w io.Writer) *slog.Logger {

	var level slog.Level
	switch {
	case config.Env == Development, config.Debug:
		level = slog.LevelDebug
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	}

	return slog.New(slog.NewJSONHandler(w, opts)).With(
		slog.String("service", "ftmq-api"),
		slog.String("version", Version),
	)
}
