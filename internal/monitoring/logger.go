package monitoring

import (
	"log/slog"
	"os"
	"time"
)

var startTime = time.Now()

// Logger provides structured JSON logging for the service.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a JSON logger at the given level.
func NewLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
				}
			}
			return a
		},
	})
	return &Logger{Logger: slog.New(handler)}
}

// RequestLogger logs HTTP request details.
func (l *Logger) RequestLogger(method, path, ip string, statusCode int, duration time.Duration) {
	l.Info("http request",
		"method", method,
		"path", path,
		"ip", ip,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	)
}

// MatchRunLogger logs the outcome of a matching run.
func (l *Logger) MatchRunLogger(runID string, participants, teams, unmatched, iterations int, duration time.Duration) {
	l.Info("matching run completed",
		"run_id", runID,
		"participants", participants,
		"teams", teams,
		"unmatched", unmatched,
		"iterations", iterations,
		"duration_ms", duration.Milliseconds(),
	)
}

// UploadLogger logs a CSV ingestion.
func (l *Logger) UploadLogger(filename string, rows, accepted, dropped int) {
	l.Info("csv upload ingested",
		"filename", filename,
		"rows", rows,
		"accepted", accepted,
		"dropped", dropped,
	)
}

// SystemLogger logs system-level events.
func (l *Logger) SystemLogger(event, details string) {
	l.Info("system event",
		"event", event,
		"details", details,
		"uptime", time.Since(startTime).String(),
	)
}
