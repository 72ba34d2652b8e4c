package dedup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	gosync "sync"
)

// AuditLog is an append-only JSON-lines log of attempted file operations.
// Every record is written and synced before the executor returns the
// result to the caller, so the log reflects exactly what was attempted
// even under a mid-batch crash.
type AuditLog struct {
	mu gosync.Mutex
	f  *os.File
}

// OpenAuditLog opens (or creates) the audit log at path for appending.
func OpenAuditLog(path string) (*AuditLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &AuditLog{f: f}, nil
}

// Append writes one record as a JSON line and syncs it to disk.
func (a *AuditLog) Append(rec ActionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	if err := a.f.Sync(); err != nil {
		return fmt.Errorf("sync audit log: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (a *AuditLog) Close() error {
	return a.f.Close()
}
