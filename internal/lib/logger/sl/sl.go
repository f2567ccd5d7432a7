package sl

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

const (
	FormatJSON   = "json"
	FormatText   = "text"
	FormatPretty = "pretty"
)

// SetupLogger builds the process logger. Unknown levels fall back to info,
// unknown formats to json.
func SetupLogger(level, format string) *slog.Logger {
	return newLogger(os.Stdout, level, format)
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	lvl := ParseLevel(level)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatPretty:
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      lvl,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		}))
	case FormatText:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	default:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
	}
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
