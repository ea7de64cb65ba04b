// Package logger holds the process-wide JSON logger. It writes to stdout
// until SetOutput moves it; the terminal UI and the MCP server own stdout and
// must move it before logging anything.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var levelVar = new(slog.LevelVar)

var L = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: levelVar}))

// SetLevel configures the global log level (debug, info, warn, error).
func SetLevel(lvl string) {
	switch strings.ToLower(lvl) {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "warn":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
}

// SetOutput points the global logger at w, keeping the configured level.
// The stdio surfaces (terminal UI, MCP) use it to move logs off stdout.
func SetOutput(w io.Writer) {
	L = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: levelVar}))
}
