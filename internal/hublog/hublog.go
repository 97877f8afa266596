// Package hublog configures the process-wide slog.Default() logger once at
// startup from LOG_LEVEL and LOG_FILE, exactly as every other component
// reaches it via slog.Default()/slog.With(...) rather than constructing
// its own.
package hublog

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init configures slog.Default() from the given level string
// (DEBUG/INFO/WARN/ERROR/FATAL, case-insensitive) and an optional file
// path that output is teed to alongside stderr. Call once at process
// start, before any component logs.
func Init(levelStr, logFile string) error {
	level := parseLevel(levelStr)

	var out io.Writer = os.Stderr
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		out = io.MultiWriter(os.Stderr, f)
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	return nil
}

// parseLevel maps LOG_LEVEL values onto slog levels. FATAL has no slog
// equivalent; it is treated as the most restrictive, ERROR level — a
// FATAL-logged message still aborts the process via os.Exit at the call
// site, slog's level filter just keeps it from being suppressed.
func parseLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR", "FATAL":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
