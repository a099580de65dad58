package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. JSON output keeps gate
// audit context machine-parseable alongside the ledger.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
