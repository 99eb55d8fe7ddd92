// Package audit keeps an append-only JSONL trail of lifecycle
// operations: installs, uninstalls, downloads, pairing toggles.
package audit

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"xonemgr/internal/fsutil"
)

type Logger struct {
	path string
	mu   sync.Mutex
}

// Entry is one audit record. Outcome is "ok", "failed", or
// "reboot_required".
type Entry struct {
	Timestamp string            `json:"timestamp"`
	Operation string            `json:"operation"`
	Phase     string            `json:"phase"`
	Outcome   string            `json:"outcome"`
	Detail    string            `json:"detail,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

func New(path string) *Logger {
	return &Logger{path: path}
}

// Record appends an entry. A nil or pathless logger is a no-op so
// callers never have to guard audit calls.
func (l *Logger) Record(e Entry) error {
	if l == nil || l.path == "" {
		return nil
	}
	e.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	blob, err := json.Marshal(e)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := fsutil.EnsureDir(l.path); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(blob, '\n'))
	return err
}
