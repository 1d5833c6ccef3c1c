package bt

import "time"

// WorkerRun identifies one worker process lifetime in the catalog.
type WorkerRun struct {
	ID        string
	Mode      Mode
	SourceDir string
	BackupDir string
	StartedAt time.Time
}

// BackupRecord is the catalog entry for one executed backup.
type BackupRecord struct {
	ID         int64
	RunID      string
	SourcePath string
	DestPath   string
	Outcome    Outcome
	Error      string
	CreatedAt  time.Time
}

// Catalog is a queryable history of backup executions. It is reporting only:
// the worker writes to it but never reads it back to decide what to do.
type Catalog interface {
	// StartRun registers a worker run. Records reference it by ID.
	StartRun(run *WorkerRun) error

	// RecordBackup appends one execution record.
	RecordBackup(rec *BackupRecord) error

	// ListBackups returns up to limit records, newest first.
	ListBackups(limit int) ([]*BackupRecord, error)

	// Close releases the underlying storage.
	Close() error
}

// NopCatalog discards everything. Used when the catalog is disabled.
type NopCatalog struct{}

func (NopCatalog) StartRun(*WorkerRun) error { return nil }
func (NopCatalog) RecordBackup(*BackupRecord) error { return nil }
func (NopCatalog) ListBackups(int) ([]*BackupRecord, error) { return nil, nil }
func (NopCatalog) Close() error { return nil }
