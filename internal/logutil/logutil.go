// Package logutil builds the process-wide slog logger from configuration.
package logutil

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// LoggerFromViper returns a slog.Logger configured by the log.level and
// log.format keys. Format is "text" (default) or "json".
func LoggerFromViper() (*slog.Logger, error) {
	level, err := parseLevel(viper.GetString("log.level"))
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	format := strings.ToLower(strings.TrimSpace(viper.GetString("log.format")))
	switch format {
	case "", "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (expected text or json)", format)
	}
}

func parseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", raw)
	}
}
