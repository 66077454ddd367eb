package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// File names under the logs directory. Each line is a self-contained
// JSON record with a timestamp; files are append-only.
const (
	fileSecurity   = "security_audit.jsonl"
	fileRateLimits = "rate_limiting.jsonl"
	fileSuspicious = "suspicious_activity.jsonl"
)

// Logger appends audit events to line-delimited files. Write failures
// are logged and never propagated to the caller.
type Logger struct {
	dir   string
	mu    sync.Mutex
	clock func() time.Time
}

func NewLogger(dir string) *Logger {
	return &Logger{dir: dir, clock: time.Now}
}

// Security records a security-relevant pipeline or auth event.
func (l *Logger) Security(event string, fields map[string]interface{}) {
	l.write(fileSecurity, event, fields)
}

// RateLimiting records limiter decisions (exceeded, blocked, unblocked).
func (l *Logger) RateLimiting(event string, fields map[string]interface{}) {
	l.write(fileRateLimits, event, fields)
}

// Suspicious records suspicious-IP marks and clears.
func (l *Logger) Suspicious(event string, fields map[string]interface{}) {
	l.write(fileSuspicious, event, fields)
}

func (l *Logger) write(file, event string, fields map[string]interface{}) {
	record := make(map[string]interface{}, len(fields)+2)
	for k, v := range fields {
		record[k] = v
	}
	record["timestamp"] = l.clock().UTC().Format(time.RFC3339)
	record["event"] = event

	line, err := json.Marshal(record)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("Failed to marshal audit record")
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		log.Error().Err(err).Str("dir", l.dir).Msg("Failed to create logs directory")
		return
	}
	path := filepath.Join(l.dir, file)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Error().Err(err).Str("file", path).Msg("Failed to open audit log")
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		log.Error().Err(err).Str("file", path).Msg("Failed to append audit record")
	}
}
