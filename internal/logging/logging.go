package logging

import (
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// New builds the process logger. JSON is the default so log lines stay
// machine-readable in container output; LOG_FORMAT=text switches to a
// tinted handler for local runs.
func New(format string) *slog.Logger {
	if format == "text" {
		return slog.New(tint.NewHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
