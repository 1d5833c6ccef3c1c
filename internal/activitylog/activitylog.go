// Package activitylog writes the plain-text activity log kept inside the
// backup directory.
package activitylog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"autobackup/internal/bt"
)

// FileName is the activity log's name inside the backup directory.
const FileName = "backup_log.txt"

// TimeLayout is the timestamp prefix of every line.
const TimeLayout = "2006-01-02 15:04:05"

// FileLog appends "<timestamp> - <message>" lines to a file. The file is
// opened for every record, so it may be moved or deleted while the worker
// runs; the next record recreates it.
type FileLog struct {
	mu    sync.Mutex
	path  string
	clock bt.Clock
}

// New returns a FileLog writing to <backupDir>/backup_log.txt.
func New(backupDir string, clock bt.Clock) *FileLog {
	return &FileLog{
		path:  filepath.Join(backupDir, FileName),
		clock: clock,
	}
}

// Path returns the log file location.
func (l *FileLog) Path() string {
	return l.path
}

// Record appends one line. The backup directory is created if needed.
func (l *FileLog) Record(message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening activity log: %w", err)
	}

	line := l.clock.Now().Format(TimeLayout) + " - " + message + "\n"
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("writing activity log: %w", err)
	}
	return f.Close()
}

var _ bt.ActivityLog = (*FileLog)(nil)
