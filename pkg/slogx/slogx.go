package slogx

import (
	"log/slog"
	"os"
	"strings"
)

// Config selects the handler and the base attributes stamped on every line.
type Config struct {
	Service string // logged as "service" on every record
	Version string
	Env     string // "dev" enables source locations
	Level   string // "debug", "info", "warn", "error"; empty means info
	Format  string // "text" for local reading, anything else is JSON
}

// New builds the process logger and installs it as the slog default, so
// library code logging through the bare slog package lands in the same
// stream.
func New(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.Env == "dev",
	}

	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With(
		"service", cfg.Service,
		"version", cfg.Version,
		"env", cfg.Env,
	)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(lvl string) slog.Level {
	switch strings.ToLower(lvl) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
