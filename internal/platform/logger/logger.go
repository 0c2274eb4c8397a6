package logger

import (
	"log/slog"
	"os"
)

// New returns the default structured logger. JSON output keeps log lines
// machine-parseable in aggregation; handlers attach request_id fields per call.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
