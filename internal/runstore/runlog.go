package runstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RunLog is the per-run human-readable log file. Nil-safe: a nil log
// swallows writes so callers never guard.
type RunLog struct {
	mu   sync.Mutex
	file *os.File
}

func OpenRunLog(path string) (*RunLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open run log %s: %w", path, err)
	}
	return &RunLog{file: f}, nil
}

func (l *RunLog) Infof(format string, args ...any) {
	l.write("INFO", format, args...)
}

func (l *RunLog) Warnf(format string, args ...any) {
	l.write("WARN", format, args...)
}

func (l *RunLog) Errorf(format string, args ...any) {
	l.write("ERROR", format, args...)
}

func (l *RunLog) write(level, format string, args ...any) {
	if l == nil || l.file == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	line := fmt.Sprintf("[%s] [%s] %s\n", time.Now().Format(time.RFC3339), level, fmt.Sprintf(format, args...))
	_, _ = l.file.WriteString(line)
}

func (l *RunLog) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}
