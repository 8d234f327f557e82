package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrorLog is an append-only JSONL diagnostics sink. One line per
// failure; the file is append-opened so successive runs accumulate.
type ErrorLog struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// ErrorEntry is one logged failure.
type ErrorEntry struct {
	TS       string `json:"ts_utc"`
	FQDN     string `json:"fqdn"`
	Stage    string `json:"stage"`
	Category string `json:"category,omitempty"`
	Error    string `json:"error"`
}

// OpenErrorLog opens (creating directories as needed) the JSONL file.
func OpenErrorLog(path string) (*ErrorLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create error log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open error log: %w", err)
	}
	return &ErrorLog{file: f, enc: json.NewEncoder(f)}, nil
}

// Append writes one entry. Safe for concurrent use.
func (l *ErrorLog) Append(entry ErrorEntry) error {
	if entry.TS == "" {
		entry.TS = time.Now().UTC().Format(time.RFC3339)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(entry)
}

func (l *ErrorLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
