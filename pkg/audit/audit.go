// Package audit provides the append-only audit trail for the form
// automation pipeline. Every decision and action of a run is recorded as
// one JSON line; entries are never mutated or deleted.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/entrhq/formpilot/pkg/logging"
	"github.com/entrhq/formpilot/pkg/types"
)

// Log is a file-backed audit sink. Append is fire-and-forget from the
// pipeline's perspective: a write failure is reported on the component
// logger (the fallback channel) and counted, but never aborts the run.
type Log struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	logger   *logging.Logger
	lastTime time.Time
	appended uint64
	dropped  uint64
}

// NewLog opens (or creates) the audit file at path in append mode.
func NewLog(path string, logger *logging.Logger) (*Log, error) {
	if path == "" {
		return nil, fmt.Errorf("audit log path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	return &Log{file: file, path: path, logger: logger}, nil
}

// Append records one entry. A zero timestamp is stamped with the current
// time; timestamps are forced strictly increasing so entry order is always
// recoverable from the file alone.
func (l *Log) Append(entry types.AuditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if !entry.Timestamp.After(l.lastTime) {
		entry.Timestamp = l.lastTime.Add(time.Nanosecond)
	}
	l.lastTime = entry.Timestamp

	data, err := json.Marshal(entry)
	if err != nil {
		l.drop(entry, err)
		return
	}
	if _, err := l.file.Write(append(data, '\n')); err != nil {
		l.drop(entry, err)
		return
	}
	l.appended++
}

// drop records a failed write on the fallback channel. Callers hold l.mu.
func (l *Log) drop(entry types.AuditEntry, err error) {
	l.dropped++
	if l.logger != nil {
		l.logger.Errorf("audit write failed (run=%s action=%s): %v", entry.CorrelationID, entry.Action, err)
	}
}

// Stats returns how many entries were appended and how many were dropped
// to the fallback channel.
func (l *Log) Stats() (appended, dropped uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appended, l.dropped
}

// Path returns the audit file path.
func (l *Log) Path() string { return l.path }

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
